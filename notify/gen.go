package notify

//go:generate mockgen -self_package github.com/horodocs/horodocs/notify -package notify -destination mock_notifier.go github.com/horodocs/horodocs/notify Notifier

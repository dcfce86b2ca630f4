package ledger

//go:generate mockgen -self_package github.com/horodocs/horodocs/ledger -package ledger -destination mock_client.go github.com/horodocs/horodocs/ledger Client

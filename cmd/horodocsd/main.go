// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// The horodocsd binary runs the timestamping daemons: it seals epochs on
// schedule, anchors their roots on the ledger, tracks confirmations and keeps
// the local transaction index fresh.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis"
	"github.com/horodocs/horodocs/batch"
	"github.com/horodocs/horodocs/cmd"
	"github.com/horodocs/horodocs/config"
	"github.com/horodocs/horodocs/entropy"
	"github.com/horodocs/horodocs/ledger"
	"github.com/horodocs/horodocs/ledger/eth"
	"github.com/horodocs/horodocs/ledger/index"
	"github.com/horodocs/horodocs/monitoring"
	"github.com/horodocs/horodocs/monitoring/prometheus"
	"github.com/horodocs/horodocs/notify"
	"github.com/horodocs/horodocs/server"
	"github.com/horodocs/horodocs/tracker"
	"github.com/horodocs/horodocs/util"
	"github.com/horodocs/horodocs/util/clock"
	"github.com/horodocs/horodocs/util/election"
	etcdelection "github.com/horodocs/horodocs/util/election/etcd"
	k8selection "github.com/horodocs/horodocs/util/election/k8s"
	"github.com/horodocs/horodocs/verify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	clientv3 "go.etcd.io/etcd/client/v3"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

var (
	httpEndpoint = flag.String("http_endpoint", "localhost:8091", "Endpoint for HTTP metrics and health checks (host:port, empty means disabled)")
	location     = flag.String("location", "Europe/Zurich", "Time zone used for receipts, anchor payloads and working hours")

	ethURL       = flag.String("eth_url", "", "JSON-RPC endpoint of the Ethereum node")
	contract     = flag.String("contract_address", "", "Address of the anchoring contract")
	keyFile      = flag.String("private_key_file", "", "File holding the hex private key that signs anchoring transactions")
	minBalance   = flag.Int64("min_balance_ether", 1, "Warn operators when the account balance drops below this many ether (0 disables)")
	explorerURL  = flag.String("explorer_url", "https://sepolia.etherscan.io/tx/", "Prefix of transaction links")
	dropFailed   = flag.Bool("drop_failed_epochs", false, "Discard the leaves of an epoch whose anchoring failed instead of carrying them over")
	policyFile   = flag.String("policy_file", "", "YAML file describing working hours and fallback intervals")
	sweepEvery   = flag.Duration("sweep_interval", tracker.DefaultSweepInterval, "Time between confirmation sweeps")
	entropyURL   = flag.String("entropy_url", "", "Base URL of a true random number service; crypto/rand only if empty")
	indexerURL   = flag.String("indexer_url", "https://api-sepolia.etherscan.io/api", "Etherscan compatible API listing the contract transactions")
	indexerKey   = flag.String("indexer_api_key", "", "API key for the indexer")
	snapshotPath = flag.String("snapshot_path", "contract_transactions.json", "Where the transaction index snapshot is kept")
	refreshEvery = flag.Duration("index_refresh_interval", index.DefaultRefreshInterval, "Time between transaction index refreshes")

	configBackend = flag.String("config_backend", "memory", "Where sealing intervals are read from. One of: memory, mysql, postgres, pq, cockroach, sqlite, etcd")
	configDSN     = flag.String("config_dsn", "", "Data source name for the SQL config backends")
	configPrefix  = flag.String("config_etcd_prefix", "/horodocs/config/", "Key prefix of the etcd config backend")
	etcdServers   = flag.String("etcd_servers", "", "A comma-separated list of etcd servers")

	verifyCache = flag.String("verify_cache", "memory", "Cache of verification results. One of: memory, redis")
	redisAddr   = flag.String("redis_addr", "localhost:6379", "Redis server for --verify_cache=redis")

	forceMaster   = flag.Bool("force_master", false, "Run the daemons without master election even if etcd is configured")
	lockDir       = flag.String("lock_dir", "/horodocs/master", "etcd directory holding the election")
	lockNamespace = flag.String("lock_namespace", "", "Kubernetes namespace of the election Lease. Selects Lease based election over etcd when set")
	kubeconfig    = flag.String("kubeconfig", "", "Path to a kubeconfig. Only required if out-of-cluster")

	configFile = flag.String("config", "", "Config file containing flags, file contents can be overridden by command line flags")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if *configFile != "" {
		if err := cmd.ParseFlagFile(*configFile); err != nil {
			klog.Exitf("Failed to load flags from config file %q: %s", *configFile, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go util.AwaitSignal(ctx, cancel)

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		klog.Exitf("horodocsd: %v", err)
	}
	klog.Info("Stopping horodocsd")
}

func run(ctx context.Context) error {
	klog.Info("**** Horodocs Starting ****")
	loc, err := time.LoadLocation(*location)
	if err != nil {
		return fmt.Errorf("--location: %v", err)
	}
	mf := prometheus.MetricFactory{Prefix: "horodocs_"}
	notifier := notify.LogNotifier{}
	capability := ledger.NewCapability(mf)

	etcdClient, err := etcdelection.NewClient(*etcdServers)
	if err != nil {
		return fmt.Errorf("connecting to etcd at %v: %v", *etcdServers, err)
	}
	if etcdClient != nil {
		defer etcdClient.Close()
	}

	store, closeStore, err := openConfig(ctx, etcdClient)
	if err != nil {
		return err
	}
	defer closeStore()

	lc, err := dialLedger(ctx, capability, notifier, mf)
	if err != nil {
		return err
	}

	var rnd entropy.Source = entropy.Secure{}
	if *entropyURL != "" {
		rnd = entropy.NewFallback(&entropy.HTTPSource{URL: *entropyURL}, entropy.Secure{}, mf)
	}

	trk := tracker.New(lc, tracker.Options{Interval: *sweepEvery, Notifier: notifier, Metrics: mf})
	batcher := batch.New(batch.Options{
		Submitter:  lc,
		Capability: capability,
		Tracker:    trk,
		Notifier:   notifier,
		Witness:    rnd,
		Location:   loc,
		DropFailed: *dropFailed,
		Metrics:    mf,
	})
	policy := batch.DefaultPolicy(loc)
	if *policyFile != "" {
		if policy, err = batch.LoadPolicy(*policyFile, loc); err != nil {
			return fmt.Errorf("loading policy %s: %v", *policyFile, err)
		}
	}
	scheduler := &batch.Scheduler{Sealer: batcher, Policy: policy, Store: store}

	refresher := index.NewRefresher(
		&index.Client{URL: *indexerURL, APIKey: *indexerKey, Contract: *contract},
		*snapshotPath,
		index.RefresherOptions{Interval: *refreshEvery, Notifier: notifier, Metrics: mf},
	)
	verifier := verify.New(refresher, lc, lc, verify.Options{
		Cache:      newVerifyCache(),
		BlockTimes: lc,
		Metrics:    mf,
	})
	mastership := election.NewStatus(func(isMaster bool) {
		klog.Infof("Mastership changed: master=%v", isMaster)
	})
	srv := server.NewTimestampServer(server.Options{
		Batcher:    batcher,
		Capability: capability,
		Mastership: mastership,
		Salts:      rnd,
		Verifier:   verifier,
		Index:      refresher,
		Checker:    lc,
		Config:     store,
		Location:   loc,
		Metrics:    mf,
	})

	g, gctx := errgroup.WithContext(ctx)
	if *httpEndpoint != "" {
		g.Go(func() error { return serveHTTP(gctx, srv) })
	}
	// Every replica keeps its own transaction index fresh for verification.
	g.Go(func() error { return refresher.Run(gctx) })
	g.Go(func() error {
		el, err := newElection(etcdClient)
		if err != nil {
			return err
		}
		return election.RunAsMaster(gctx, el, "horodocsd", clock.System, func(mctx context.Context) error {
			mastership.Set(true)
			defer mastership.Set(false)
			dg, dctx := errgroup.WithContext(mctx)
			dg.Go(func() error { return scheduler.Run(dctx) })
			dg.Go(func() error { return trk.Run(dctx) })
			return dg.Wait()
		})
	})
	return g.Wait()
}

func dialLedger(ctx context.Context, capability *ledger.Capability, n notify.Notifier, mf monitoring.MetricFactory) (*eth.Client, error) {
	if *ethURL == "" || *contract == "" || *keyFile == "" {
		return nil, errors.New("--eth_url, --contract_address and --private_key_file are required")
	}
	if !common.IsHexAddress(*contract) {
		return nil, fmt.Errorf("--contract_address %q is not an address", *contract)
	}
	b, err := os.ReadFile(*keyFile)
	if err != nil {
		return nil, fmt.Errorf("reading key: %v", err)
	}
	key, err := eth.ParseKey(strings.TrimSpace(string(b)))
	if err != nil {
		return nil, fmt.Errorf("parsing key in %s: %v", *keyFile, err)
	}
	dctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	lc, err := eth.Dial(dctx, *ethURL, eth.Options{
		Contract:    common.HexToAddress(*contract),
		Key:         key,
		MinBalance:  *minBalance,
		ExplorerURL: *explorerURL,
	}, capability, n, mf)
	if err != nil {
		return nil, err
	}
	klog.Infof("Anchoring to %s from %s", *contract, lc.Address().Hex())
	return lc, nil
}

func openConfig(ctx context.Context, etcdClient *clientv3.Client) (config.ReadWriteStore, func(), error) {
	noop := func() {}
	switch *configBackend {
	case "memory":
		return config.NewMemoryStore(nil), noop, nil
	case "etcd":
		if etcdClient == nil {
			return nil, nil, errors.New("--config_backend=etcd needs --etcd_servers")
		}
		return &config.EtcdStore{KV: etcdClient, Prefix: *configPrefix}, noop, nil
	}
	drivers := map[string]string{
		"mysql":     config.DriverMySQL,
		"postgres":  config.DriverPostgres,
		"pq":        config.DriverPQ,
		"cockroach": config.DriverCockroach,
		"sqlite":    config.DriverSQLite,
	}
	driver, ok := drivers[*configBackend]
	if !ok {
		return nil, nil, fmt.Errorf("unknown --config_backend %q", *configBackend)
	}
	s, err := config.OpenSQL(driver, *configDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s config: %v", *configBackend, err)
	}
	if err := s.CreateSchema(ctx); err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("creating config schema: %v", err)
	}
	closeFn := func() {
		if err := s.Close(); err != nil {
			klog.Warningf("Closing config store: %v", err)
		}
	}
	return s, closeFn, nil
}

func newVerifyCache() verify.Cache {
	if *verifyCache == "redis" {
		return &verify.RedisCache{
			Client: redis.NewClient(&redis.Options{Addr: *redisAddr}),
			Prefix: "horodocs/verify/",
			TTL:    verify.DefaultCacheTTL,
		}
	}
	return verify.NewMemoryCache(verify.DefaultCacheSize, verify.DefaultCacheTTL, clock.System)
}

func newElection(etcdClient *clientv3.Client) (election.Election, error) {
	switch {
	case *forceMaster:
	case *lockNamespace != "":
		client, err := k8selection.NewClient(*kubeconfig)
		if err != nil {
			return nil, err
		}
		return k8selection.New(client, *lockNamespace, "horodocsd", k8selection.InstanceID("horodocsd"), k8selection.Options{}), nil
	case etcdClient != nil:
		return newEtcdElection(etcdClient)
	}
	klog.Warning("**** Acting as master ****")
	return election.Noop{}, nil
}

func newEtcdElection(etcdClient *clientv3.Client) (election.Election, error) {
	hostname, _ := os.Hostname()
	instanceID := fmt.Sprintf("%s.%d", hostname, os.Getpid())
	return etcdelection.New(etcdClient, instanceID, *lockDir, "horodocsd")
}

func serveHTTP(ctx context.Context, srv *server.TimestampServer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/horodating", func(w http.ResponseWriter, _ *http.Request) {
		if err := srv.CheckHorodating(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "enabled")
	})
	hs := &http.Server{Addr: *httpEndpoint, Handler: mux}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hs.Shutdown(sctx)
	}()
	klog.Infof("HTTP server listening on %v", *httpEndpoint)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

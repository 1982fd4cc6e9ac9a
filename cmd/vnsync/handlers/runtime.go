package handlers

import (
	"context"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/vnsync/internal/config"
	"github.com/imamik/vnsync/internal/model"
	"github.com/imamik/vnsync/internal/platform/contrail"
	"github.com/imamik/vnsync/internal/reconcile"
	"github.com/imamik/vnsync/internal/store"
	"github.com/imamik/vnsync/internal/util/labels"
	"github.com/imamik/vnsync/internal/util/naming"
	"github.com/imamik/vnsync/internal/util/retry"
)

// Factory function variables - can be replaced in tests.
var (
	// loadConfig reads the configuration file, or the defaults when path is empty.
	loadConfig = func(path string) (*config.Config, error) {
		if path == "" {
			return config.Parse(nil)
		}
		return config.LoadFile(path)
	}

	// openStore connects to local persistence.
	openStore = func(ctx context.Context, cfg *config.Config, t *config.Timeouts) (store.Reader, func(), error) {
		if cfg.Database.DSN == config.MemoryURL {
			return store.NewMemory(), func() {}, nil
		}
		var pg *store.Postgres
		err := retry.WithExponentialBackoff(ctx, func() error {
			var err error
			pg, err = store.NewPostgres(ctx, cfg.Database.DSN)
			return err
		}, startupRetry(ctx, "database", t)...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return pg, pg.Close, nil
	}

	// newAPI creates the controller client.
	newAPI = func(cfg *config.Config) contrail.API {
		if cfg.Controller.URL == config.MemoryURL {
			return contrail.NewMemoryController()
		}
		return contrail.NewRESTClient(cfg.Controller.URL,
			contrail.WithToken(cfg.Controller.Token),
			contrail.WithRateLimit(cfg.Controller.QPS, cfg.Controller.Burst),
		)
	}
)

// runtime bundles what every operation needs.
type runtime struct {
	cfg      *config.Config
	timeouts *config.Timeouts
	ctrl     *model.Controller
	locks    *reconcile.Locker
	close    func()
}

// newRuntime loads the configuration and connects both backends, retrying
// transient start-up failures.
func newRuntime(ctx context.Context, configPath string) (*runtime, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	t := config.LoadTimeouts()

	s, closeStore, err := openStore(ctx, cfg, t)
	if err != nil {
		return nil, err
	}

	api := reconcile.InstrumentAPI(newAPI(cfg))
	if err := waitForController(ctx, api, cfg.Namespace, t); err != nil {
		closeStore()
		return nil, err
	}

	return &runtime{
		cfg:      cfg,
		timeouts: t,
		ctrl: &model.Controller{
			Store:      s,
			API:        api,
			Names:      naming.NewManager(cfg.Naming.DefaultDomain, cfg.Naming.DefaultProject),
			Namespace:  cfg.Namespace,
			APITimeout: t.APICall,
		},
		locks: reconcile.NewLocker(),
		close: closeStore,
	}, nil
}

func (r *runtime) orchestrator() *reconcile.Orchestrator {
	return reconcile.NewOrchestrator(r.ctrl, reconcile.WithLocker(r.locks), reconcile.WithMetrics(true))
}

func (r *runtime) fullSync() *reconcile.FullSync {
	return reconcile.NewFullSync(r.ctrl,
		reconcile.WithLocker(r.locks),
		reconcile.WithParallelism(r.cfg.Sync.Parallelism),
		reconcile.WithTimeout(r.timeouts.FullSync),
		reconcile.WithMetrics(true),
	)
}

// waitForController lists the namespace's networks until the controller
// answers. Only transient errors are retried.
func waitForController(ctx context.Context, api contrail.API, namespace string, t *config.Timeouts) error {
	err := retry.WithExponentialBackoff(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, t.APICall)
		defer cancel()
		_, err := api.List(callCtx, contrail.KindVirtualNetwork, labels.Selector(namespace))
		if err != nil && !contrail.IsTransient(err) {
			return retry.Fatal(err)
		}
		return err
	}, startupRetry(ctx, "controller", t)...)
	if err != nil {
		return fmt.Errorf("controller not reachable: %w", err)
	}
	return nil
}

func startupRetry(ctx context.Context, target string, t *config.Timeouts) []retry.Option {
	logger := log.FromContext(ctx)
	return []retry.Option{
		retry.WithMaxRetries(t.RetryMaxAttempts),
		retry.WithInitialDelay(t.RetryInitialDelay),
		retry.WithOnRetry(func(attempt int, err error) {
			logger.Info("backend not reachable, retrying", "target", target, "attempt", attempt, "error", err.Error())
		}),
	}
}

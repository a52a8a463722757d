package daemon

import (
	"context"
	"errors"
	"time"

	"github.com/matheus3301/courier/internal/api"
	"github.com/matheus3301/courier/internal/auth"
	"github.com/matheus3301/courier/internal/bus"
	"github.com/matheus3301/courier/internal/chat"
	"github.com/matheus3301/courier/internal/config"
	"github.com/matheus3301/courier/internal/control"
	"github.com/matheus3301/courier/internal/delivery"
	"github.com/matheus3301/courier/internal/instance"
	"github.com/matheus3301/courier/internal/lock"
	"github.com/matheus3301/courier/internal/logging"
	"github.com/matheus3301/courier/internal/media"
	"github.com/matheus3301/courier/internal/metrics"
	"github.com/matheus3301/courier/internal/presence"
	"github.com/matheus3301/courier/internal/seen"
	"github.com/matheus3301/courier/internal/status"
	"github.com/matheus3301/courier/internal/store"
	"github.com/matheus3301/courier/internal/ws"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Params holds the resolved instance configuration passed to the fx module.
type Params struct {
	InstanceName string
	Config       *config.Config
	SocketPath   string // optional override for testing; empty = use default
	Debug        bool
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideRegistry,
			provideDispatcher,
			provideReconciler,
			provideHealer,
			provideMedia,
			provideTokens,
			provideAuthService,
			provideChatService,
			provideRecorder,
			provideLimiter,
			provideAPIDeps,
			NewHTTPServer,
			provideControlServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if p.Debug {
		level = zapcore.DebugLevel
	}
	return logging.New(instance.LogPath(p.InstanceName), p.InstanceName, level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := instance.EnsureDir(p.InstanceName); err != nil {
		return nil, err
	}
	logger.Info("acquiring instance lock", zap.String("instance", p.InstanceName))
	l, err := lock.Acquire(instance.Dir(p.InstanceName))
	if err != nil {
		return nil, err
	}
	logger.Info("instance lock acquired")
	return l, nil
}

// provideStore depends on the lock so two daemons never migrate the same file.
func provideStore(p Params, _ *lock.Lock, machine *status.Machine, logger *zap.Logger) (*store.DB, error) {
	dbPath := instance.DBPath(p.InstanceName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := machine.Transition(status.Migrating); err != nil {
		_ = db.Close()
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = machine.Transition(status.Error)
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}

	drifted, err := db.RebuildUnseenIndex(context.Background())
	if err != nil {
		_ = machine.Transition(status.Error)
		_ = db.Close()
		return nil, err
	}
	if drifted > 0 {
		logger.Warn("unseen index repaired at startup", zap.Int("pairs", drifted))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRegistry(b *bus.Bus, logger *zap.Logger) *presence.Registry {
	return presence.NewRegistry(b, logger)
}

func provideDispatcher(r *presence.Registry, b *bus.Bus, logger *zap.Logger) *delivery.Dispatcher {
	return delivery.NewDispatcher(r, b, logger)
}

func provideReconciler(db *store.DB, d *delivery.Dispatcher, b *bus.Bus, logger *zap.Logger) *seen.Reconciler {
	return seen.NewReconciler(db, d, b, logger)
}

func provideHealer(db *store.DB, b *bus.Bus, m *status.Machine, logger *zap.Logger) *seen.Healer {
	return seen.NewHealer(db, b, m, logger)
}

func provideMedia(p Params, logger *zap.Logger) (*media.Uploader, error) {
	st, err := media.New(context.Background(), p.Config.Media, instance.MediaDir(p.InstanceName))
	if err != nil {
		return nil, err
	}
	logger.Info("media backend ready", zap.String("backend", p.Config.Media.Backend))
	return media.NewUploader(st, p.Config.Limits.MaxImageBytes), nil
}

func provideTokens(p Params) (*auth.Tokens, error) {
	if p.Config.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is not set; run `courierctl init`")
	}
	return auth.NewTokens(p.Config.Auth.JWTSecret, p.Config.Auth.TokenTTL.Duration)
}

func provideAuthService(db *store.DB, t *auth.Tokens, u *media.Uploader, logger *zap.Logger) *auth.Service {
	return auth.NewService(db, t, u, logger)
}

func provideChatService(db *store.DB, r *seen.Reconciler, d *delivery.Dispatcher, u *media.Uploader, b *bus.Bus, logger *zap.Logger) *chat.Service {
	return chat.NewService(db, r, d, u, b, logger)
}

func provideRecorder(b *bus.Bus, logger *zap.Logger) *metrics.Recorder {
	return metrics.NewRecorder(b, logger)
}

func provideLimiter(p Params) *api.Limiter {
	return api.NewLimiter(p.Config.Limits.RPS, p.Config.Limits.Burst)
}

func provideAPIDeps(
	p Params,
	a *auth.Service,
	c *chat.Service,
	r *presence.Registry,
	d *delivery.Dispatcher,
	m *status.Machine,
	l *api.Limiter,
	rec *metrics.Recorder,
	logger *zap.Logger,
) *api.Deps {
	mediaDir := ""
	if b := p.Config.Media.Backend; b == "" || b == "local" {
		mediaDir = p.Config.Media.LocalDir
		if mediaDir == "" {
			mediaDir = instance.MediaDir(p.InstanceName)
		}
	}
	hb := p.Config.Heartbeat
	return &api.Deps{
		Auth:       a,
		Chat:       c,
		Registry:   r,
		Dispatcher: d,
		Machine:    m,
		Limiter:    l,
		Metrics:    rec.Handler(),
		MediaDir:   mediaDir,
		Heartbeat: ws.Heartbeat{
			PingPeriod: hb.PingPeriod.Duration,
			PongWait:   hb.PongWait.Duration,
			WriteWait:  hb.WriteWait.Duration,
		},
		MaxUpload: p.Config.Limits.MaxImageBytes,
		Logger:    logger,
	}
}

func provideControlServer(p Params, m *status.Machine, b *bus.Bus, logger *zap.Logger) (*control.Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = instance.SocketPath(p.InstanceName)
	}
	return control.NewServer(socketPath, m, b, logger)
}

// registerLifecycle appends one hook per layer so that fx unwinds them in
// reverse: HTTP first, the store and lock last.
func registerLifecycle(
	lc fx.Lifecycle,
	httpSrv *HTTPServer,
	ctl *control.Server,
	lk *lock.Lock,
	db *store.DB,
	registry *presence.Registry,
	healer *seen.Healer,
	recorder *metrics.Recorder,
	limiter *api.Limiter,
	machine *status.Machine,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			recorder.Start(ctx)
			healer.Start(ctx)
			go limiter.Run(ctx, time.Minute)
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			healer.Stop()
			recorder.Stop()
			return nil
		},
	})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := ctl.Start(); err != nil {
					logger.Error("control server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			ctl.Stop(stopCtx)
			return nil
		},
	})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := httpSrv.Start(); err != nil {
				_ = machine.Transition(status.Error)
				return err
			}
			return machine.Transition(status.Ready)
		},
		OnStop: func(stopCtx context.Context) error {
			_ = machine.Transition(status.Stopping)
			registry.CloseAll()
			httpSrv.Stop(stopCtx)
			return nil
		},
	})
}

// Package app composes the session daemon: logger, bus, config,
// profile lock, credential store, REST client, chat store, router,
// session manager, and syncer, all wired through fx.
package app

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tbaldin/wirechat/internal/bus"
	"github.com/tbaldin/wirechat/internal/chat"
	"github.com/tbaldin/wirechat/internal/config"
	"github.com/tbaldin/wirechat/internal/creds"
	"github.com/tbaldin/wirechat/internal/lock"
	"github.com/tbaldin/wirechat/internal/logging"
	"github.com/tbaldin/wirechat/internal/rest"
	"github.com/tbaldin/wirechat/internal/router"
	"github.com/tbaldin/wirechat/internal/session"
	"github.com/tbaldin/wirechat/internal/syncer"
)

// Params holds the resolved profile configuration passed to the fx
// module.
type Params struct {
	Profile string
}

// Module returns the fx module composing all providers and lifecycle
// hooks.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideConfig,
			provideLock,
			provideCreds,
			provideRESTClient,
			provideChatStore,
			provideRouter,
			provideSession,
			provideSyncer,
			NewClient,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(creds.LogPath(p.Profile), p.Profile)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideConfig(logger *zap.Logger) (*config.Config, error) {
	cfg, err := config.Load(creds.ConfigPath())
	if err != nil {
		return nil, err
	}
	logger.Info("config loaded", zap.String("server_url", cfg.ServerURL))
	return cfg, nil
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := creds.EnsureProfileDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(creds.ProfileDir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideCreds(p Params, logger *zap.Logger) *creds.Store {
	return creds.NewStore(p.Profile, logger)
}

func provideRESTClient(cfg *config.Config, cs *creds.Store, logger *zap.Logger) *rest.Client {
	return rest.NewClient(cfg.ServerURL, cs, logger)
}

func provideChatStore(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *chat.Store {
	return chat.NewStore(b, logger, cfg.Session.ReconcileWindow())
}

func provideRouter(store *chat.Store, cs *creds.Store, b *bus.Bus, logger *zap.Logger) *router.Router {
	return router.New(store, cs, b, logger)
}

func provideSession(cfg *config.Config, cs *creds.Store, rt *router.Router, b *bus.Bus, logger *zap.Logger) *session.Manager {
	return session.NewManager(cfg.Session, cfg.ServerURL, cs, rt, nil, b, logger)
}

func provideSyncer(rc *rest.Client, store *chat.Store, logger *zap.Logger) *syncer.Loader {
	return syncer.NewLoader(rc, store, logger)
}

func registerLifecycle(lc fx.Lifecycle, client *Client, cs *creds.Store, store *chat.Store, mgr *session.Manager, loader *syncer.Loader, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			mgr.SetOnReady(func() {
				if err := loader.LoadOfflineMessages(context.Background()); err != nil {
					logger.Warn("offline load after connect failed", zap.Error(err))
				}
			})

			if err := cs.Restore(time.Now()); err != nil {
				logger.Info("no stored credentials, login required", zap.Error(err))
				return nil
			}
			store.SetLocalUser(cs.UserID())
			logger.Info("credentials restored", zap.Int64("user_id", cs.UserID()))

			go func() {
				if err := mgr.Connect(context.Background()); err != nil {
					logger.Error("auto-connect failed", zap.Error(err))
					return
				}
				loader.Bootstrap(context.Background())
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			mgr.Disconnect()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

package daemon

import (
	"context"

	"github.com/matheus3301/inbox/internal/api"
	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/config"
	"github.com/matheus3301/inbox/internal/entity"
	"github.com/matheus3301/inbox/internal/lock"
	"github.com/matheus3301/inbox/internal/logging"
	"github.com/matheus3301/inbox/internal/message"
	"github.com/matheus3301/inbox/internal/outbox"
	"github.com/matheus3301/inbox/internal/persist"
	"github.com/matheus3301/inbox/internal/profile"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/status"
	"github.com/matheus3301/inbox/internal/store"
	intsync "github.com/matheus3301/inbox/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	SocketPath  string // optional override for testing; empty = use default
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
			provideProfileConfig,
			provideCredentials,
			provideRemote,
			provideEntityStore,
			providePersister,
			provideCheckpoints,
			provideSyncEngine,
			provideSender,
			provideStatusService,
			provideConversationService,
			provideMessageService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is never opened by two daemons.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	mode, err := db.JournalMode()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("store initialized", zap.String("path", db.Path()), zap.String("journal_mode", mode))
	return db, nil
}

func provideProfileConfig(p Params) (*config.Profile, error) {
	return config.LoadProfile(profile.ConfigPath(p.ProfileName))
}

func provideCredentials(p Params, cfg *config.Profile, logger *zap.Logger) (config.Credentials, error) {
	if err := config.LoadEnv(profile.EnvPath(p.ProfileName)); err != nil {
		return config.Credentials{}, err
	}
	creds, err := config.ResolveCredentials(cfg)
	if err != nil {
		logger.Error("credentials not configured", zap.Error(err))
		return config.Credentials{}, err
	}
	logger.Info("api configured", zap.String("url", creds.APIURL))
	return creds, nil
}

func provideRemote(creds config.Credentials, cfg *config.Profile, logger *zap.Logger) *remote.Client {
	return remote.New(creds.APIURL, creds.APIKey,
		remote.WithTimeout(cfg.RequestTimeout),
		remote.WithLogger(logger.Named("remote")),
	)
}

func provideEntityStore() *entity.Store {
	return entity.NewStore()
}

func providePersister(db *store.DB, s *entity.Store, logger *zap.Logger) *persist.Persister {
	return persist.New(db, s, logger.Named("persist"))
}

func provideCheckpoints(db *store.DB) *intsync.Checkpoints {
	return intsync.NewCheckpoints(db)
}

func provideSyncEngine(client *remote.Client, s *entity.Store, b *bus.Bus, m *status.Machine, cfg *config.Profile, cp *intsync.Checkpoints, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(client, s, b, intsync.Options{
		Intervals: intsync.Intervals{
			Conversations: cfg.Poll.Conversations,
			Messages:      cfg.Poll.Messages,
		},
		Format:      message.Formatter{Layout: cfg.TimeLayout},
		Machine:     m,
		Checkpoints: cp,
	}, logger.Named("sync"))
}

func provideSender(db *store.DB, client *remote.Client, s *entity.Store, engine *intsync.Engine, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	refresh := outbox.RefresherFunc(func(ctx context.Context, uuid string, opts ...remote.QueryOption) error {
		_, err := engine.RefreshMessages(ctx, uuid, opts...)
		return err
	})
	return outbox.NewSender(db, client, s, refresh, b, logger.Named("outbox"))
}

func provideStatusService(p Params, creds config.Credentials, m *status.Machine, s *entity.Store, engine *intsync.Engine, cp *intsync.Checkpoints) *api.StatusService {
	return api.NewStatusService(p.ProfileName, creds.APIURL, m, s, engine, cp)
}

func provideConversationService(p Params, s *entity.Store, engine *intsync.Engine, client *remote.Client, b *bus.Bus, logger *zap.Logger) *api.ConversationService {
	return api.NewConversationService(p.ProfileName, s, engine, client, b, logger.Named("api"))
}

func provideMessageService(db *store.DB, engine *intsync.Engine, sender *outbox.Sender) *api.MessageService {
	return api.NewMessageService(db, engine, sender)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, persister *persist.Persister, engine *intsync.Engine, sender *outbox.Sender, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			_ = machine.Transition(status.Hydrating)
			if err := persister.Load(); err != nil {
				logger.Warn("hydration failed, starting empty", zap.Error(err))
			}
			persister.Start(context.Background())

			// The first conversation poll settles SYNCING into READY or DEGRADED.
			_ = machine.Transition(status.Syncing)
			engine.Start(context.Background())
			sender.Start(context.Background())

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			sender.Stop()
			engine.Stop()
			if err := persister.Stop(); err != nil {
				logger.Warn("final state flush failed", zap.Error(err))
			}
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
}

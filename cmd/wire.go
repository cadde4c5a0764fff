package cmd

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	authadapter "github.com/bnema/stellar-site/internal/adapters/auth"
	sessionrender "github.com/bnema/stellar-site/internal/adapters/render/session"
	tomlrepo "github.com/bnema/stellar-site/internal/adapters/repo/toml"
	"github.com/bnema/stellar-site/internal/adapters/secrets/pass"
	"github.com/bnema/stellar-site/internal/adapters/storage/chain"
	"github.com/bnema/stellar-site/internal/adapters/storage/file"
	"github.com/bnema/stellar-site/internal/adapters/storage/memory"
	"github.com/bnema/stellar-site/internal/adapters/storage/sqlite"
	"github.com/bnema/stellar-site/internal/adapters/web"
	"github.com/bnema/stellar-site/internal/adapters/widget/probe"
	"github.com/bnema/stellar-site/internal/application"
	"github.com/bnema/stellar-site/internal/config"
	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/platform/logger"
	"github.com/bnema/stellar-site/internal/ports"
	"github.com/spf13/viper"
)

const databaseFileName = "stellar.db"

type app struct {
	cfg           config.Config
	logger        *logger.Logger
	sessionRender func([]application.SessionStatus, sessionrender.RenderOptions) (string, error)
	probe         func(ctx context.Context, cfg probe.Config, pageURL string) (probe.Result, error)
	secrets       ports.KeyValueStore
	now           func() time.Time

	storesOnce sync.Once
	stores     *stores
	storesErr  error
}

// stores are opened on first use so commands that never touch storage do
// not create or lock the database.
type stores struct {
	visitors ports.VisitorStorage
	users    ports.UserRepository
	contacts ports.ContactRepository
	db       *sql.DB
}

func wireApp() (*app, error) {
	cfg, err := config.Load(viper.New())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Options{
		Mode:     cfg.Log.Mode,
		Level:    cfg.Log.Level,
		Redact:   cfg.Log.Redact,
		HashSalt: cfg.Auth.SessionSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	return &app{
		cfg:           cfg,
		logger:        log,
		sessionRender: sessionrender.Render,
		probe: func(ctx context.Context, pc probe.Config, pageURL string) (probe.Result, error) {
			return probe.New(pc, log.Named("probe")).Probe(ctx, pageURL)
		},
		secrets: pass.NewStore(),
		now:     time.Now,
	}, nil
}

func (a *app) openStores() (*stores, error) {
	a.storesOnce.Do(func() {
		a.stores, a.storesErr = openStores(a.cfg.Storage)
	})
	return a.stores, a.storesErr
}

func openStores(cfg config.StorageConfig) (*stores, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(filepath.Join(cfg.Path, databaseFileName))
		if err != nil {
			return nil, fmt.Errorf("wire sqlite storage: %w", err)
		}
		visitors, err := chain.NewVisitors(sqlite.NewVisitors(db), memory.NewVisitors())
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("wire visitor storage chain: %w", err)
		}
		return &stores{
			visitors: visitors,
			users:    sqlite.NewUsers(db),
			contacts: sqlite.NewContacts(db),
			db:       db,
		}, nil
	case config.DriverFile:
		records, err := tomlrepo.NewRepository(filepath.Join(cfg.Path, tomlrepo.RecordsFileName))
		if err != nil {
			return nil, fmt.Errorf("wire records repository: %w", err)
		}
		visitors, err := chain.NewVisitors(file.NewVisitors(filepath.Join(cfg.Path, "visitors")), memory.NewVisitors())
		if err != nil {
			return nil, fmt.Errorf("wire visitor storage chain: %w", err)
		}
		return &stores{visitors: visitors, users: records, contacts: records}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func (a *app) Close() error {
	var errs []error
	if a.stores != nil && a.stores.db != nil {
		if err := a.stores.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	a.logger.Sync()
	return errors.Join(errs...)
}

func (a *app) tabConfig() application.TabConfig {
	w := a.cfg.Widget
	return application.TabConfig{
		AppID:                  w.AppID,
		APIBase:                w.APIBase,
		ScriptBaseURL:          w.BaseURL,
		HideDefaultLauncher:    w.HideDefaultLauncher,
		CustomLauncherSelector: w.CustomLauncherSelector,
		ResetDelay:             w.ResetDelay,
		TrackPageViews:         w.TrackPageViews,
	}
}

func (a *app) visitorService() (*application.VisitorService, error) {
	s, err := a.openStores()
	if err != nil {
		return nil, err
	}
	return application.NewVisitorService(s.visitors, a.tabConfig(), ports.SystemClock{}, a.logger.Named("visitors")), nil
}

// authSessions picks the configured authentication backend.
func (a *app) authSessions(users ports.UserRepository) web.AuthSessions {
	log := a.logger.Named("auth")
	if a.cfg.Auth.Provider == config.ProviderMock {
		mock := a.cfg.Auth.Mock
		backend := authadapter.NewStaticBackend(authadapter.StaticUser{
			Email:       mock.Email,
			Password:    mock.Password,
			UID:         mock.UserID,
			DisplayName: mock.Name,
		}, log)
		return func(current *domain.AuthUser) ports.AuthProvider { return backend.Session(current) }
	}

	backend := authadapter.NewLocalBackend(users, authadapter.LocalOptions{}, log)
	return func(current *domain.AuthUser) ports.AuthProvider { return backend.Session(current) }
}

func (a *app) tokenCodec(ctx context.Context) (*authadapter.TokenCodec, error) {
	secret, err := a.sessionSecret(ctx, a.secrets)
	if err != nil {
		return nil, err
	}

	codec, err := authadapter.NewTokenCodec([]byte(secret), a.cfg.Auth.SessionTTL, ports.SystemClock{})
	if err != nil {
		return nil, fmt.Errorf("wire session tokens: %w", err)
	}
	return codec, nil
}

// sessionSecret resolves the cookie signing secret: the configured value,
// then the pass entry (generated and stored when missing), then a secret
// that lives only as long as the process.
func (a *app) sessionSecret(ctx context.Context, secrets ports.KeyValueStore) (string, error) {
	if a.cfg.Auth.SessionSecret != "" {
		return a.cfg.Auth.SessionSecret, nil
	}

	key := a.cfg.Auth.SessionSecretPass
	if key == "" {
		a.logger.Warn("no session secret configured; sessions end when the server stops")
		return generateSecret()
	}

	secret, err := secrets.Get(ctx, key)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, domain.ErrValueNotFound) {
		return "", fmt.Errorf("read session secret: %w", err)
	}

	secret, err = generateSecret()
	if err != nil {
		return "", err
	}
	if err := secrets.Put(ctx, key, secret); err != nil {
		return "", fmt.Errorf("store session secret: %w", err)
	}
	a.logger.Info("generated session secret", "entry", key)
	return secret, nil
}

func generateSecret() (string, error) {
	raw := make([]byte, authadapter.MinSecretLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/passverify/internal/adapter/driven/backend"
	boltadapter "github.com/ericfisherdev/passverify/internal/adapter/driven/bolt"
	"github.com/ericfisherdev/passverify/internal/adapter/driven/camera"
	sqliteadapter "github.com/ericfisherdev/passverify/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/passverify/internal/application"
	"github.com/ericfisherdev/passverify/internal/config"
	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

// dirFrameInterval paces frames replayed from a camera directory.
const dirFrameInterval = 200 * time.Millisecond

// App is the wired runtime shared by the commands of one invocation.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Vault     *application.TokenVault
	Session   *application.ConductorSession
	Auth      *application.AuthService
	Conductor *backend.Client
	User      *backend.UserAccount
	History   *application.HistoryService

	closers []func() error
}

// NewApp opens local storage and builds the backend clients and services.
// Logs go to logOut.
func NewApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*App, error) {
	logger, err := newLogger(cfg, logOut)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger}

	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, db.Close)

	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	logger.Debug("database ready", "path", cfg.DBPath, "schema_version", version)

	store, err := app.openTokenStore(db)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Vault = application.NewTokenVault(store, logger)
	app.Session = application.NewConductorSession()

	conductorTokens := app.Vault.Session(model.ActorConductor)
	refresher := backend.NewRefresher(cfg.APIURL, cfg.RefreshTimeout, nil, conductorTokens, logger)
	app.Conductor = backend.NewClient(backend.Options{
		BaseURL:        cfg.APIURL,
		Timeout:        cfg.RequestTimeout,
		Kind:           model.ActorConductor,
		Tokens:         conductorTokens,
		Refresher:      refresher,
		OnSessionEnded: app.Session.SessionEndedHandler(),
		Logger:         logger,
	})
	app.User = backend.NewUserAccount(backend.NewClient(backend.Options{
		BaseURL: cfg.APIURL,
		Timeout: cfg.RequestTimeout,
		Kind:    model.ActorUser,
		Tokens:  app.Vault.Session(model.ActorUser),
		Logger:  logger,
	}))

	app.Auth = application.NewAuthService(app.Conductor, app.Vault, app.Session, logger)
	app.History = application.NewHistoryService(app.Conductor, sqliteadapter.NewPendingRepo(db), logger)

	return app, nil
}

func (a *App) openTokenStore(db *sqliteadapter.DB) (driven.TokenStore, error) {
	switch a.Config.TokenBackend {
	case config.TokenBackendBolt:
		if a.Config.SecretKey != nil {
			a.Logger.Warn("secret key is ignored by the bolt token backend")
		}
		store, err := boltadapter.Open(a.Config.BoltPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.Logger.Debug("token store ready", "backend", "bolt", "path", a.Config.BoltPath)
		return store, nil
	default:
		repo, err := sqliteadapter.NewTokenRepo(db, a.Config.SecretKey)
		if err != nil {
			return nil, err
		}
		a.Logger.Debug("token store ready", "backend", "sqlite", "encrypted", a.Config.SecretKey != nil)
		return repo, nil
	}
}

// Opener returns the configured capture source: the snapshot URL when set,
// otherwise the frame directory.
func (a *App) Opener() (driven.DeviceOpener, error) {
	switch {
	case a.Config.CameraURL != "":
		return camera.NewSnapshotOpener(a.Config.CameraURL, nil, a.Logger), nil
	case a.Config.CameraDir != "":
		return camera.NewDirectoryOpener(a.Config.CameraDir, dirFrameInterval, a.Logger), nil
	default:
		return nil, errors.New("no camera configured: set PASSVERIFY_CAMERA_URL or PASSVERIFY_CAMERA_DIR")
	}
}

// VerifierDeps wires a Verifier against the conductor client and the camera.
func (a *App) VerifierDeps() (application.VerifierDeps, error) {
	opener, err := a.Opener()
	if err != nil {
		return application.VerifierDeps{}, err
	}
	return application.VerifierDeps{
		Opener:      opener,
		Faces:       a.Conductor,
		Passes:      a.Conductor,
		Decoder:     camera.QRDecoder{},
		Recorder:    a.History,
		Logger:      a.Logger,
		ScanRate:    a.Config.QRScanRate,
		ScanTimeout: a.Config.QRScanTimeout,
		NewID:       uuid.NewString,
	}, nil
}

// Close releases local storage in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// newLogger builds the slog logger for cfg's level and format.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

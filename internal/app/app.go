package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/codepadhq/codepad-server/internal/config"
	"github.com/codepadhq/codepad-server/internal/core"
	"github.com/codepadhq/codepad-server/internal/execengine/jdoodle"
	"github.com/codepadhq/codepad-server/internal/store"
	"github.com/codepadhq/codepad-server/internal/store/sqlite"
	transporthttp "github.com/codepadhq/codepad-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	rooms           *core.RoomDirectory
	history         store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	var history store.Store
	if cfg.DatabasePath != "" {
		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		history = st
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("execution history store initialized")
	}

	engineOpts := []jdoodle.Option{jdoodle.WithTimeout(cfg.Exec.Timeout)}
	if cfg.Exec.URL != "" {
		engineOpts = append(engineOpts, jdoodle.WithURL(cfg.Exec.URL))
	}
	engine := jdoodle.New(cfg.Exec.ClientID, cfg.Exec.ClientSecret, engineOpts...)

	sessions := core.NewSessionRegistry()
	rooms := core.NewRoomDirectory(core.DirectoryOptions{
		RoomLimit:     cfg.Rooms.Limit,
		RetireAfter:   cfg.Rooms.RetireAfter,
		SweepInterval: cfg.Rooms.SweepInterval,
	}, logger)
	router := core.NewRouter(sessions, rooms, engine, history, cfg.Run.Cooldown, logger)

	server := transporthttp.NewServer(router, rooms, history, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		rooms:           rooms,
		history:         history,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.rooms.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the history store and other resources.
func (a *App) cleanup() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

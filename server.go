package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"luacrypt/classifier"
	"luacrypt/obfuscator"
	"luacrypt/store"
)

// Server is the HTTP API over the script and access log stores.
type Server struct {
	config       *Config
	logger       *zerolog.Logger
	sqlDB        *sql.DB
	obfuscator   *obfuscator.Obfuscator
	classifier   *classifier.Classifier
	passwordHash []byte

	store struct {
		scriptStore    store.ScriptInterface
		accessLogStore store.AccessLogInterface
	}
}

// NewServer wires the stores and the pure transforms. sqlDB is used for
// health checks and may be nil.
func NewServer(config *Config, db *gorm.DB, sqlDB *sql.DB, logger zerolog.Logger) (*Server, error) {
	hash, err := hashPassword(config.Auth)
	if err != nil {
		return nil, fmt.Errorf("prepare password: %w", err)
	}

	s := &Server{
		config:       config,
		logger:       &logger,
		sqlDB:        sqlDB,
		obfuscator:   config.NewObfuscator(),
		classifier:   config.NewClassifier(),
		passwordHash: hash,
	}

	s.store.scriptStore = store.NewScriptStore(db, &logger)
	s.store.accessLogStore = store.NewAccessLogStore(db, &logger)

	return s, nil
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.HTTP.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Msgf("HTTP server listening on %s", s.config.HTTP.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

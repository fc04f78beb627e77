package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"luacrypt/store"
)

// dbInit migrates the schema and seeds the welcome script into an empty
// scripts table.
func dbInit(ctx context.Context, db *gorm.DB, logger zerolog.Logger, config *Config) error {
	if err := store.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	if !config.SeedWelcome {
		return nil
	}

	requestID := uuid.New()
	scripts := store.NewScriptStore(db, &logger)

	count, err := scripts.Count(ctx, requestID)
	if err != nil {
		return fmt.Errorf("count scripts: %w", err)
	}

	if count > 0 {
		return nil
	}

	if _, err = scripts.Create(ctx, requestID, welcomeScriptName, welcomeScriptContent); err != nil {
		return fmt.Errorf("seed welcome script: %w", err)
	}

	logger.Info().Msgf("Seeded %q", welcomeScriptName)

	return nil
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/jask/simdash/internal/database"
)

// MaintenanceService houses destructive ops actions surfaced through the CLI.
type MaintenanceService struct {
	DB *sql.DB
	// PrefsDir is the file driver's root; empty skips it.
	PrefsDir string
}

// Reset wipes every session and stored palette. The schema stays intact.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if s.DB == nil && s.PrefsDir == "" {
		return fmt.Errorf("maintenance: nothing configured")
	}
	if s.DB != nil {
		if err := database.WithTx(s.DB, func(tx *sql.Tx) error {
			for _, t := range []string{"session_kv", "sessions"} {
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
					return fmt.Errorf("reset table %s: %w", t, err)
				}
			}
			return nil
		}); err != nil {
			return err
		}
		_, _ = s.DB.ExecContext(ctx, "VACUUM")
	}
	if s.PrefsDir != "" {
		if err := os.RemoveAll(s.PrefsDir); err != nil {
			return fmt.Errorf("reset prefs: %w", err)
		}
	}
	return nil
}

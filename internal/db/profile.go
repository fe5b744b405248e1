package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	apperr "github.com/memorytrail/trailcore/internal/errors"
	"github.com/memorytrail/trailcore/internal/logging"
	"github.com/memorytrail/trailcore/internal/models"
)

// CreateUserProfile performs the one-time device setup: it derives the
// immutable group code from the group name, stores the profile, creates
// the group's graveyard and parish trails, and marks setup complete. The
// whole step is atomic.
func (s *Store) CreateUserProfile(ctx context.Context, name, groupName, email string) (*models.UserProfile, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(groupName) == "" {
		return nil, apperr.New(apperr.ErrValidation, "name and group name are required")
	}
	groupCode := models.DeriveGroupCode(groupName)
	if groupCode == "" {
		return nil, apperr.New(apperr.ErrValidation, "group name yields an empty group code")
	}

	now := time.Now().UTC()
	profile := &models.UserProfile{
		ID:        uuid.NewString(),
		Email:     models.NormalizeEmail(email),
		Name:      strings.TrimSpace(name),
		GroupName: strings.TrimSpace(groupName),
		GroupCode: groupCode,
		CreatedAt: now,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var existing int
		if err := tx.QueryRow("SELECT COUNT(*) FROM user_profile").Scan(&existing); err != nil {
			return apperr.Wrap(apperr.ErrDatabase, "failed to check for existing profile", err)
		}
		if existing > 0 {
			return apperr.New(apperr.ErrValidation, "user setup already completed")
		}

		if _, err := tx.Exec(`
			INSERT INTO user_profile (id, email, name, group_name, group_code, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			profile.ID, profile.Email, profile.Name, profile.GroupName, profile.GroupCode, now.Unix(),
		); err != nil {
			return apperr.Wrap(apperr.ErrDatabase, "failed to insert user profile", err)
		}

		// Both trails exist from the moment setup completes.
		for _, tt := range []models.TrailType{models.TrailTypeGraveyard, models.TrailTypeParish} {
			trailID := models.TrailID(groupCode, tt)
			if _, err := tx.Exec(`
				INSERT INTO trails (id, group_code, trail_type, display_name, created_at, updated_at, next_sequence)
				VALUES (?, ?, ?, ?, ?, ?, 1)`,
				trailID, groupCode, string(tt), profile.GroupName, now.Unix(), now.Unix(),
			); err != nil {
				return apperr.Wrap(apperr.ErrDatabase, "failed to create trail", err)
			}
			if err := enqueueTx(tx, models.KindTrail, trailID, models.OpUpsert); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(`
			INSERT INTO meta (key, value) VALUES ('setup_complete', 'true')
			ON CONFLICT (key) DO UPDATE SET value = 'true'`,
		); err != nil {
			return apperr.Wrap(apperr.ErrDatabase, "failed to mark setup complete", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info("user setup completed", map[string]interface{}{
		"group_code": groupCode,
	})
	return profile, nil
}

// GetUserProfile returns the device's profile, or nil when setup has not
// run yet.
func (s *Store) GetUserProfile(ctx context.Context) (*models.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, group_name, group_code, created_at
		FROM user_profile LIMIT 1`)

	var p models.UserProfile
	var createdAt int64
	err := row.Scan(&p.ID, &p.Email, &p.Name, &p.GroupName, &p.GroupCode, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "failed to read user profile", err)
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &p, nil
}

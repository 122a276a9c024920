package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
)

// ProfileRepository persists user preferences keyed by email.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) UpsertProfile(ctx context.Context, profile domain.UserProfile) error {
	topicsJSON, err := json.Marshal(profile.Topics)
	if err != nil {
		return fmt.Errorf("marshal topics: %w", err)
	}
	weights := profile.SourceWeights
	if weights == nil {
		weights = map[string]float64{}
	}
	weightsJSON, err := json.Marshal(weights)
	if err != nil {
		return fmt.Errorf("marshal source weights: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO user_preferences (email, name, topics, source_weights, style, summary_length, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (email) DO UPDATE SET
	name = EXCLUDED.name,
	topics = EXCLUDED.topics,
	source_weights = EXCLUDED.source_weights,
	style = EXCLUDED.style,
	summary_length = EXCLUDED.summary_length,
	updated_at = EXCLUDED.updated_at
`, profile.Email, profile.Name, topicsJSON, weightsJSON,
		profile.SummaryStyle, profile.SummaryLength, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) GetProfileByEmail(ctx context.Context, email string) (*domain.UserProfile, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT email, name, topics, source_weights, style, summary_length
FROM user_preferences
WHERE email = $1
`, email)

	var profile domain.UserProfile
	var topicsRaw, weightsRaw []byte
	err := row.Scan(&profile.Email, &profile.Name, &topicsRaw, &weightsRaw,
		&profile.SummaryStyle, &profile.SummaryLength)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrProfileNotFound, "get profile", err)
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	if err := json.Unmarshal(topicsRaw, &profile.Topics); err != nil {
		return nil, fmt.Errorf("unmarshal topics: %w", err)
	}
	if err := json.Unmarshal(weightsRaw, &profile.SourceWeights); err != nil {
		return nil, fmt.Errorf("unmarshal source weights: %w", err)
	}
	return &profile, nil
}

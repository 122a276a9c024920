package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
)

// SourceRepository persists configured sources. Sources are upserted from
// configuration at run start and never deleted while items reference them.
type SourceRepository struct {
	db *sql.DB
}

func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

func (r *SourceRepository) UpsertSource(ctx context.Context, source domain.Source) (int64, error) {
	config := source.Config
	if config == nil {
		config = map[string]string{}
	}
	configJSON, err := json.Marshal(config)
	if err != nil {
		return 0, fmt.Errorf("marshal source config: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
INSERT INTO sources (name, kind, url, config)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE SET
	kind = EXCLUDED.kind,
	url = EXCLUDED.url,
	config = EXCLUDED.config
RETURNING id
`, source.Name, string(source.Kind), source.URL, configJSON)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert source: %w", err)
	}
	return id, nil
}

func (r *SourceRepository) ListSources(ctx context.Context) ([]domain.Source, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, kind, url, config FROM sources ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		var source domain.Source
		var kind string
		var configRaw []byte
		if err := rows.Scan(&source.ID, &source.Name, &kind, &source.URL, &configRaw); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		if err := json.Unmarshal(configRaw, &source.Config); err != nil {
			return nil, fmt.Errorf("unmarshal source config: %w", err)
		}
		source.Kind = domain.SourceKind(kind)
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return sources, nil
}

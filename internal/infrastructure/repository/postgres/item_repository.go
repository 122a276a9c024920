package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
)

// ItemRepository persists items. State transitions carry their precondition
// in the WHERE clause, so an out-of-table transition updates zero rows and
// surfaces as domain.ErrInvalidStateTransition instead of regressing state.
type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `id, source_id, url, title, content, summary, published_at, scraped_at, processing_state, delivery_state, summarization_failed`

// Upsert inserts a new item or, when the normalized URL already exists,
// updates mutable metadata only: title always, published_at when the new
// value is earlier, content only when the stored one is empty. Processing
// and delivery state are never touched on conflict.
func (r *ItemRepository) Upsert(ctx context.Context, sourceID int64, raw domain.RawItem) (bool, error) {
	now := time.Now().UTC()
	var content any
	if raw.Content != "" {
		content = raw.Content
	}

	row := r.db.QueryRowContext(ctx, `
INSERT INTO items (source_id, url, title, content, published_at, scraped_at, processing_state, delivery_state, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (url) DO UPDATE SET
	title = EXCLUDED.title,
	published_at = LEAST(COALESCE(items.published_at, EXCLUDED.published_at), COALESCE(EXCLUDED.published_at, items.published_at)),
	content = CASE
		WHEN COALESCE(items.content, '') = '' AND COALESCE(EXCLUDED.content, '') <> '' THEN EXCLUDED.content
		ELSE items.content
	END,
	updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0)
`,
		sourceID, raw.URL, raw.Title, content, raw.PublishedAt, now,
		string(domain.ProcessingNew), string(domain.DeliveryUnsent), now,
	)

	var inserted bool
	if err := row.Scan(&inserted); err != nil {
		return false, fmt.Errorf("upsert item: %w", err)
	}
	return inserted, nil
}

func (r *ItemRepository) GetByURL(ctx context.Context, normalizedURL string) (*domain.Item, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE url = $1`, normalizedURL)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrItemNotFound, "get item by url", err)
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}
	return item, nil
}

func (r *ItemRepository) ListByProcessingStates(ctx context.Context, states ...domain.ProcessingState) ([]domain.Item, error) {
	values := make([]string, len(states))
	for i, state := range states {
		values[i] = string(state)
	}

	query := builder.
		Select("id", "source_id", "url", "title", "content", "summary",
			"published_at", "scraped_at", "processing_state", "delivery_state", "summarization_failed").
		From("items").
		Where(sq.Eq{"processing_state": values}).
		OrderBy("scraped_at ASC", "id ASC")

	return r.listItems(ctx, query)
}

// ListSummarized returns summarized items whose effective time (publish
// time, first-seen when the source gave none) is at or after since.
func (r *ItemRepository) ListSummarized(ctx context.Context, since time.Time) ([]domain.Item, error) {
	query := builder.
		Select("id", "source_id", "url", "title", "content", "summary",
			"published_at", "scraped_at", "processing_state", "delivery_state", "summarization_failed").
		From("items").
		Where(sq.Eq{"processing_state": string(domain.ProcessingSummarized)}).
		Where(sq.GtOrEq{"COALESCE(published_at, scraped_at)": since}).
		OrderBy("COALESCE(published_at, scraped_at) DESC", "id ASC")

	return r.listItems(ctx, query)
}

func (r *ItemRepository) listItems(ctx context.Context, query sq.SelectBuilder) ([]domain.Item, error) {
	sqlText, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func (r *ItemRepository) SaveEnrichment(ctx context.Context, itemID int64, content string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE items
SET content = $2, processing_state = $3, updated_at = $4
WHERE id = $1 AND processing_state = $5
`, itemID, content, string(domain.ProcessingEnriched), time.Now().UTC(), string(domain.ProcessingNew))
	if err != nil {
		return fmt.Errorf("save enrichment: %w", err)
	}
	return requireTransition(result, "save enrichment", itemID)
}

func (r *ItemRepository) SaveSummary(ctx context.Context, itemID int64, summary string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE items
SET summary = $2, processing_state = $3, summarization_failed = FALSE, updated_at = $4
WHERE id = $1 AND processing_state IN ($5, $6)
`, itemID, summary, string(domain.ProcessingSummarized), time.Now().UTC(),
		string(domain.ProcessingNew), string(domain.ProcessingEnriched))
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return requireTransition(result, "save summary", itemID)
}

func (r *ItemRepository) MarkSummarizationFailed(ctx context.Context, itemID int64) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE items SET summarization_failed = TRUE, updated_at = $2 WHERE id = $1
`, itemID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark summarization failed: %w", err)
	}
	return nil
}

// MarkSending claims items for delivery. Only unsent rows move to sending;
// the returned IDs are the ones this caller now exclusively holds.
func (r *ItemRepository) MarkSending(ctx context.Context, itemIDs []int64) ([]int64, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
UPDATE items
SET delivery_state = $2, delivery_claimed_at = $3, updated_at = $3
WHERE id = ANY($1) AND delivery_state = $4
RETURNING id
`, itemIDs, string(domain.DeliverySending), time.Now().UTC(), string(domain.DeliveryUnsent))
	if err != nil {
		return nil, fmt.Errorf("mark sending: %w", err)
	}
	defer rows.Close()

	var claimed []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan claimed id: %w", err)
		}
		claimed = append(claimed, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed ids: %w", err)
	}
	return claimed, nil
}

func (r *ItemRepository) MarkSent(ctx context.Context, itemIDs []int64) error {
	return r.moveDelivery(ctx, itemIDs, domain.DeliverySending, domain.DeliverySent)
}

func (r *ItemRepository) MarkUnsent(ctx context.Context, itemIDs []int64) error {
	return r.moveDelivery(ctx, itemIDs, domain.DeliverySending, domain.DeliveryUnsent)
}

func (r *ItemRepository) moveDelivery(ctx context.Context, itemIDs []int64, from, to domain.DeliveryState) error {
	if len(itemIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE items
SET delivery_state = $2, delivery_claimed_at = NULL, updated_at = $3
WHERE id = ANY($1) AND delivery_state = $4
`, itemIDs, string(to), time.Now().UTC(), string(from))
	if err != nil {
		return fmt.Errorf("move delivery %s->%s: %w", from, to, err)
	}
	return nil
}

// ReclaimStuckSending rolls items stuck in sending past the recovery cutoff
// back to unsent. Accepts at-least-once delivery by design.
func (r *ItemRepository) ReclaimStuckSending(ctx context.Context, claimedBefore time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
UPDATE items
SET delivery_state = $1, delivery_claimed_at = NULL, updated_at = $2
WHERE delivery_state = $3 AND delivery_claimed_at < $4
`, string(domain.DeliveryUnsent), time.Now().UTC(), string(domain.DeliverySending), claimedBefore)
	if err != nil {
		return 0, fmt.Errorf("reclaim stuck sending: %w", err)
	}
	reclaimed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reclaim rows affected: %w", err)
	}
	return reclaimed, nil
}

func requireTransition(result sql.Result, operation string, itemID int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrInvalidStateTransition, operation,
			fmt.Errorf("item %d not in a compatible state", itemID))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var item domain.Item
	var content, summary sql.NullString
	var publishedAt sql.NullTime
	var processing, delivery string

	err := row.Scan(
		&item.ID, &item.SourceID, &item.URL, &item.Title,
		&content, &summary, &publishedAt, &item.ScrapedAt,
		&processing, &delivery, &item.SummarizationFailed,
	)
	if err != nil {
		return nil, err
	}

	if content.Valid {
		item.Content = &content.String
	}
	if summary.Valid {
		item.Summary = &summary.String
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		item.PublishedAt = &t
	}
	item.ProcessingState = domain.ProcessingState(processing)
	item.DeliveryState = domain.DeliveryState(delivery)
	return &item, nil
}

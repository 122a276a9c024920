package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
	"github.com/gek007/ai-news-aggregator/internal/core/ports"
)

// DigestAssembler selects the top unsent ranked items inside the delivery
// window and drives the unsent->sending->sent transition around the send
// call. Delivery is at-least-once: a crash between the two commits leaves
// items in sending until the recovery reclaim.
type DigestAssembler struct {
	items  ports.ItemStore
	sender ports.DigestSender
	logger *slog.Logger
}

func NewDigestAssembler(items ports.ItemStore, sender ports.DigestSender, logger *slog.Logger) *DigestAssembler {
	return &DigestAssembler{items: items, sender: sender, logger: logger}
}

// Assemble takes the first limit ranked items whose effective time falls at
// or after windowStart and whose delivery state is unsent. Sent items never
// reappear regardless of rank.
func (a *DigestAssembler) Assemble(
	ranked []domain.RankedItem,
	windowStart time.Time,
	limit int,
	recipient string,
	now time.Time,
) domain.Digest {
	digest := domain.Digest{GeneratedAt: now, Recipient: recipient}
	for _, candidate := range ranked {
		if len(digest.Items) >= limit {
			break
		}
		if candidate.Item.DeliveryState != domain.DeliveryUnsent {
			continue
		}
		if candidate.Item.EffectiveTime().Before(windowStart) {
			continue
		}
		digest.Items = append(digest.Items, candidate)
	}
	return digest
}

// Deliver claims the digest's items, hands the digest to the sender, and
// commits the outcome. An explicit sender error rolls every claimed item
// back to unsent immediately.
func (a *DigestAssembler) Deliver(ctx context.Context, digest domain.Digest, report *domain.RunReport) (int, error) {
	if len(digest.Items) == 0 {
		return 0, nil
	}

	ids := make([]int64, len(digest.Items))
	for i, entry := range digest.Items {
		ids[i] = entry.Item.ID
	}

	claimed, err := a.items.MarkSending(ctx, ids)
	if err != nil {
		return 0, domain.WrapError(domain.ErrStorageUnavailable, "claim items for delivery", err)
	}
	if len(claimed) == 0 {
		a.logger.Info("no items claimed for delivery, all held elsewhere")
		return 0, nil
	}

	// Drop entries some other process claimed first.
	if len(claimed) < len(digest.Items) {
		claimedSet := make(map[int64]bool, len(claimed))
		for _, id := range claimed {
			claimedSet[id] = true
		}
		kept := digest.Items[:0]
		for _, entry := range digest.Items {
			if claimedSet[entry.Item.ID] {
				kept = append(kept, entry)
			}
		}
		digest.Items = kept
	}

	if err := a.sender.Send(ctx, digest); err != nil {
		sendErr := domain.WrapError(domain.ErrDeliveryFailure, "send digest", err)
		for _, entry := range digest.Items {
			report.RecordFailure(domain.StageDelivery, entry.Item.ID, entry.Item.URL, sendErr)
		}
		if rollbackErr := a.items.MarkUnsent(ctx, claimed); rollbackErr != nil {
			return 0, domain.WrapError(domain.ErrStorageUnavailable, "roll back sending items", rollbackErr)
		}
		return 0, nil
	}

	if err := a.items.MarkSent(ctx, claimed); err != nil {
		// The digest went out; surface the commit failure as run-fatal so
		// the operator sees the at-least-once window explicitly.
		return 0, domain.WrapError(domain.ErrStorageUnavailable, "commit sent items", err)
	}

	a.logger.Info("digest delivered", "recipient", digest.Recipient, "items", len(digest.Items))
	return len(digest.Items), nil
}

package domain

import (
	"errors"
	"fmt"
)

// Item-scoped errors are caught at the stage boundary and folded into the
// run report. Only ErrStorageUnavailable aborts a run.
var (
	ErrTransientFetch         = errors.New("transient fetch failure")
	ErrMalformedSourceItem    = errors.New("malformed source item")
	ErrEnrichmentFailure      = errors.New("enrichment failure")
	ErrTransientSummarization = errors.New("transient summarization failure")
	ErrPermanentSummarization = errors.New("permanent summarization failure")
	ErrDeliveryFailure        = errors.New("delivery failure")
	ErrStorageUnavailable     = errors.New("storage unavailable")
	ErrItemNotFound           = errors.New("item not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrSourceNotFound         = errors.New("source not found")
	ErrProfileNotFound        = errors.New("user profile not found")
)

var errNoSchemeOrHost = errors.New("url missing scheme or host")

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

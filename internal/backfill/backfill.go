// Package backfill re-derives message metadata for stored events that were
// written without it.
package backfill

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ignite/ses-tracking/internal/domain"
	"github.com/ignite/ses-tracking/internal/pkg/logger"
	"github.com/ignite/ses-tracking/internal/sesevent"
)

// DefaultPageSize is the number of events loaded per page.
const DefaultPageSize = 500

// Store is the part of the event store the backfill needs.
type Store interface {
	// ListMissingMetadata pages through events without a Message-ID in ID
	// order, starting after afterID.
	ListMissingMetadata(ctx context.Context, afterID string, limit int) ([]domain.Event, error)
	// FillMetadata sets only the metadata columns that are still empty.
	FillMetadata(ctx context.Context, id string, md domain.MessageMetadata) error
}

// Result counts what a run did.
type Result struct {
	Scanned    int `json:"scanned"`
	Updated    int `json:"updated"`
	Unparsable int `json:"unparsable"`
}

// Backfiller walks the event store once per Run.
type Backfiller struct {
	store    Store
	pageSize int
}

// New creates a Backfiller. pageSize <= 0 uses DefaultPageSize.
func New(store Store, pageSize int) *Backfiller {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Backfiller{store: store, pageSize: pageSize}
}

// Run extracts metadata from the retained raw payload of every event that
// lacks a Message-ID and stores the fields that were absent. Populated
// fields are never overwritten, so repeated runs are harmless. Events
// whose payload cannot be decoded are counted and skipped.
func (b *Backfiller) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	after := ""
	for {
		page, err := b.store.ListMissingMetadata(ctx, after, b.pageSize)
		if err != nil {
			return res, fmt.Errorf("list events after %q: %w", after, err)
		}
		for _, e := range page {
			res.Scanned++
			updated, parsed, err := b.backfillEvent(ctx, e)
			if err != nil {
				return res, err
			}
			switch {
			case !parsed:
				res.Unparsable++
			case updated:
				res.Updated++
			}
		}
		if len(page) < b.pageSize {
			break
		}
		after = page[len(page)-1].ID
	}

	logger.Info("metadata backfill complete", "scanned", res.Scanned, "updated", res.Updated, "unparsable", res.Unparsable)
	return res, nil
}

func (b *Backfiller) backfillEvent(ctx context.Context, e domain.Event) (updated, parsed bool, err error) {
	var payload map[string]any
	if err := json.Unmarshal(e.RawPayload, &payload); err != nil || payload == nil {
		logger.Debug("skipping event with unreadable payload", "id", e.ID)
		return false, false, nil
	}

	md, changed := e.Metadata.FillFrom(sesevent.ExtractMetadata(payload))
	if !changed {
		return false, true, nil
	}
	if err := b.store.FillMetadata(ctx, e.ID, md); err != nil {
		return false, true, fmt.Errorf("backfill event %s: %w", e.ID, err)
	}
	return true, true, nil
}

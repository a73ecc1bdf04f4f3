package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/schema"
	"kakeibo/internal/sheets"
	"kakeibo/internal/store"
)

// Source is the slice of the store the worker reads from.
type Source interface {
	GetEntry(ctx context.Context, id int64) (schema.Record, error)
	store.MirrorQueue
}

// MirrorWorker copies stored entries to the spreadsheet mirror.
type MirrorWorker struct {
	source    Source
	writer    sheets.EntryWriter
	reader    sheets.MirrorReader
	batchSize int

	mu   sync.Mutex
	seen map[int]map[int64]bool // year -> ids already in the sheet
}

// NewMirrorWorker creates a worker. reader may be nil, in which case rows
// are appended without checking the sheet for an earlier copy.
func NewMirrorWorker(source Source, writer sheets.EntryWriter, reader sheets.MirrorReader, batchSize int) *MirrorWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &MirrorWorker{
		source:    source,
		writer:    writer,
		reader:    reader,
		batchSize: batchSize,
		seen:      make(map[int]map[int64]bool),
	}
}

// HandleEntryCreated processes one entry created message from AMQP.
// Entries that no longer exist or fail validation are dropped; sheet
// failures are returned so the message is requeued.
func (w *MirrorWorker) HandleEntryCreated(ctx context.Context, msg *amqp.EntryCreatedMessage) error {
	slog.InfoContext(ctx, "Processing entry created message",
		"id", msg.EntryID,
		"message_id", msg.MessageID)

	raw, err := w.source.GetEntry(ctx, msg.EntryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "Entry vanished before mirroring", "id", msg.EntryID)
			return nil
		}
		return fmt.Errorf("get entry from storage: %w", err)
	}

	entry, err := schema.Validate(schema.Entry, raw)
	if err != nil {
		slog.ErrorContext(ctx, "Stored entry failed validation, skipping", "id", msg.EntryID, "error", err)
		return nil
	}

	return w.mirror(ctx, entry)
}

// ProcessPending mirrors one batch of entries that have not been copied
// yet. It is the fallback for lost messages and returns how many rows
// were mirrored.
func (w *MirrorWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processBatch(ctx, w.batchSize)
}

// StartupCheck runs a larger sweep when the worker starts.
func (w *MirrorWorker) StartupCheck(ctx context.Context) error {
	n, err := w.processBatch(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup mirror check: %w", err)
	}
	if n == 0 {
		slog.InfoContext(ctx, "No pending entries found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup mirror completed", "mirrored", n)
	return nil
}

func (w *MirrorWorker) processBatch(ctx context.Context, limit int) (int, error) {
	raws, err := w.source.ListUnmirrored(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending entries: %w", err)
	}
	if len(raws) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending entries", "count", len(raws))

	mirrored := 0
	for i, raw := range raws {
		if ctx.Err() != nil {
			return mirrored, ctx.Err()
		}
		entry, err := schema.Validate(schema.Entry, raw)
		if err != nil {
			slog.ErrorContext(ctx, "Pending entry failed validation", "index", i, "error", err)
			continue
		}
		if err := w.mirror(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror entry", "id", entry.ID, "error", err)
			continue
		}
		mirrored++
	}
	return mirrored, nil
}

// Run sweeps pending entries every interval until ctx is done.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Pending sweep failed", "error", err)
			}
		}
	}
}

func (w *MirrorWorker) mirror(ctx context.Context, e core.Entry) error {
	present, err := w.alreadyMirrored(ctx, e)
	if err != nil {
		return err
	}

	if !present {
		ref, err := w.writer.AppendEntry(ctx, e)
		if err != nil {
			return fmt.Errorf("append to sheets: %w", err)
		}
		w.remember(e)
		slog.InfoContext(ctx, "Mirrored entry",
			"id", e.ID,
			"sheets_ref", ref,
			"type", e.Type,
			"amount_cents", e.Amount.Cents)
	} else {
		slog.InfoContext(ctx, "Entry already in sheet, marking only", "id", e.ID)
	}

	// The row is in the sheet; a failed mark is retried by the next sweep
	// and caught by the sheet check.
	if err := w.source.MarkMirrored(ctx, e.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark entry mirrored", "id", e.ID, "error", err)
	}
	return nil
}

func (w *MirrorWorker) alreadyMirrored(ctx context.Context, e core.Entry) (bool, error) {
	if w.reader == nil {
		return false, nil
	}
	year := e.Date.Year()

	w.mu.Lock()
	ids, ok := w.seen[year]
	w.mu.Unlock()
	if !ok {
		loaded, err := w.reader.MirroredIDs(ctx, year)
		if err != nil {
			return false, fmt.Errorf("read mirrored ids: %w", err)
		}
		w.mu.Lock()
		if ids, ok = w.seen[year]; !ok {
			if loaded == nil {
				loaded = map[int64]bool{}
			}
			ids = loaded
			w.seen[year] = ids
		}
		w.mu.Unlock()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return ids[e.ID], nil
}

func (w *MirrorWorker) remember(e core.Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ids, ok := w.seen[e.Date.Year()]; ok {
		ids[e.ID] = true
	}
}

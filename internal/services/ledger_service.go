package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"kakeibo/internal/core"
	"kakeibo/internal/schema"
	"kakeibo/internal/store"
)

// DashboardPath is the view that shows accounts, categories and entries.
const DashboardPath = "/"

// DefaultRecentLimit is the number of entries RecentEntries returns when the
// caller passes no limit.
const DefaultRecentLimit = 10

// EntryPublisher announces newly stored entries to asynchronous consumers.
type EntryPublisher interface {
	PublishEntryCreated(ctx context.Context, id int64, userID string) error
}

// ViewInvalidator marks cached renderings of a path as stale.
type ViewInvalidator interface {
	Revalidate(path string)
}

// LedgerService orchestrates ledger reads and writes across the store, the
// view cache and the message broker.
type LedgerService struct {
	store     store.Ledger
	publisher EntryPublisher
	views     ViewInvalidator
}

func NewLedgerService(s store.Ledger, publisher EntryPublisher, views ViewInvalidator) *LedgerService {
	return &LedgerService{
		store:     s,
		publisher: publisher,
		views:     views,
	}
}

// ListAccounts returns the caller's accounts plus the shared defaults,
// name ascending.
func (s *LedgerService) ListAccounts(ctx context.Context, id core.Identity) ([]core.Account, error) {
	if err := id.Require(); err != nil {
		return nil, err
	}
	rows, err := s.store.ListAccounts(ctx, core.OwnedOrShared(id.UserID))
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	accounts, err := schema.ValidateList(schema.Account, rows)
	if err != nil {
		return nil, fmt.Errorf("stored accounts: %w", err)
	}
	return accounts, nil
}

// ListCategories returns the caller's categories plus the shared defaults,
// name ascending.
func (s *LedgerService) ListCategories(ctx context.Context, id core.Identity) ([]core.Category, error) {
	if err := id.Require(); err != nil {
		return nil, err
	}
	rows, err := s.store.ListCategories(ctx, core.OwnedOrShared(id.UserID))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	categories, err := schema.ValidateList(schema.Category, rows)
	if err != nil {
		return nil, fmt.Errorf("stored categories: %w", err)
	}
	return categories, nil
}

// ListEntriesByPeriod returns the caller's entries within p, newest first.
func (s *LedgerService) ListEntriesByPeriod(ctx context.Context, id core.Identity, p core.Period) ([]core.Entry, error) {
	return s.listEntries(ctx, id, store.EntryQuery{Period: p})
}

// RecentEntries returns the caller's latest entries. A limit <= 0 means
// DefaultRecentLimit.
func (s *LedgerService) RecentEntries(ctx context.Context, id core.Identity, limit int) ([]core.Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return s.listEntries(ctx, id, store.EntryQuery{Limit: limit})
}

// QueryEntries is the general listing used by the JSON API.
func (s *LedgerService) QueryEntries(ctx context.Context, id core.Identity, q store.EntryQuery) ([]core.Entry, error) {
	return s.listEntries(ctx, id, q)
}

func (s *LedgerService) listEntries(ctx context.Context, id core.Identity, q store.EntryQuery) ([]core.Entry, error) {
	if err := id.Require(); err != nil {
		return nil, err
	}
	rows, err := s.store.ListEntries(ctx, id.UserID, q)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	entries, err := schema.ValidateList(schema.Entry, rows)
	if err != nil {
		return nil, fmt.Errorf("stored entries: %w", err)
	}
	return entries, nil
}

// CreateEntry stores an entry attributed to the caller. Invalid input never
// reaches the store. On success the dashboard view is invalidated and an
// entry.created event is published; a publish failure is logged only.
func (s *LedgerService) CreateEntry(ctx context.Context, id core.Identity, in core.EntryInput) (core.Entry, error) {
	if err := id.Require(); err != nil {
		return core.Entry{}, err
	}
	if err := in.Validate(); err != nil {
		return core.Entry{}, err
	}

	row, err := s.store.CreateEntry(ctx, id.UserID, in)
	if err != nil {
		return core.Entry{}, referenceToValidation(fmt.Errorf("save entry: %w", err))
	}
	// The row is committed even if it fails validation below.
	s.revalidate()
	entry, err := schema.Validate(schema.Entry, row)
	if err != nil {
		return core.Entry{}, fmt.Errorf("stored entry: %w", err)
	}

	if err := s.publishCreated(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "Failed to publish entry created message",
			"id", entry.ID, "error", err)
	}

	slog.InfoContext(ctx, "Entry created",
		"id", entry.ID,
		"type", entry.Type,
		"amount_cents", entry.Amount.Cents,
		"date", entry.Date.String(),
		"category", entry.Category.Name,
		"account", entry.Account.Name)

	return entry, nil
}

// CreateAccount stores an account owned by the caller.
func (s *LedgerService) CreateAccount(ctx context.Context, id core.Identity, in core.AccountInput) (core.Account, error) {
	if err := id.Require(); err != nil {
		return core.Account{}, err
	}
	if err := in.Validate(); err != nil {
		return core.Account{}, err
	}
	row, err := s.store.CreateAccount(ctx, id.UserID, in)
	if err != nil {
		return core.Account{}, fmt.Errorf("save account: %w", err)
	}
	s.revalidate()
	account, err := schema.Validate(schema.Account, row)
	if err != nil {
		return core.Account{}, fmt.Errorf("stored account: %w", err)
	}
	return account, nil
}

// CreateCategory stores a category owned by the caller. A missing color
// becomes the default.
func (s *LedgerService) CreateCategory(ctx context.Context, id core.Identity, in core.CategoryInput) (core.Category, error) {
	if err := id.Require(); err != nil {
		return core.Category{}, err
	}
	in.Color = core.ColorOrDefault(in.Color)
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}
	row, err := s.store.CreateCategory(ctx, id.UserID, in)
	if err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	s.revalidate()
	category, err := schema.Validate(schema.Category, row)
	if err != nil {
		return core.Category{}, fmt.Errorf("stored category: %w", err)
	}
	return category, nil
}

func (s *LedgerService) revalidate() {
	if s.views != nil {
		s.views.Revalidate(DashboardPath)
	}
}

func (s *LedgerService) publishCreated(ctx context.Context, e core.Entry) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No entry publisher configured, skipping entry created message")
		return nil
	}
	return s.publisher.PublishEntryCreated(ctx, e.ID, e.UserID)
}

// referenceToValidation turns a dangling category or account reference into
// a field-level validation failure.
func referenceToValidation(err error) error {
	var ref *store.ReferenceError
	if !errors.As(err, &ref) {
		return err
	}
	v := &core.ValidationError{}
	v.Add(ref.Field, "does not exist")
	return v
}

// Close closes the store and the publisher when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error

	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	return errors.Join(errs...)
}

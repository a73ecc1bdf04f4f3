// Package memory is an in-process ledger store for development and tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"kakeibo/internal/core"
	"kakeibo/internal/schema"
	"kakeibo/internal/store"
)

type Store struct {
	mu       sync.Mutex
	nextID   int64
	accounts []core.Account
	cats     []core.Category
	entries  []core.Entry
}

var _ store.Ledger = (*Store)(nil)

// New creates a store seeded with ownerless accounts and categories.
func New(accounts []core.AccountInput, cats []core.CategoryInput) *Store {
	s := &Store{}
	for _, a := range dedupeAccounts(accounts) {
		s.accounts = append(s.accounts, core.Account{ID: s.id(), Name: a.Name, InitialBalance: a.InitialBalance})
	}
	for _, c := range dedupeCategories(cats) {
		s.cats = append(s.cats, core.Category{ID: s.id(), Name: c.Name, Color: core.ColorOrDefault(c.Color)})
	}
	return s
}

// NewFromFiles seeds the store from seed_accounts.txt ("name[,balance]")
// and seed_categories.txt ("name[,color]") under base. Missing files fall
// back to a small default set.
func NewFromFiles(base string) *Store {
	var accounts []core.AccountInput
	for _, line := range readLines(filepath.Join(base, "seed_accounts.txt")) {
		name, bal, _ := strings.Cut(line, ",")
		in := core.AccountInput{Name: strings.TrimSpace(name)}
		if cents, err := core.ParseSignedCents(bal); err == nil {
			in.InitialBalance = core.Money{Cents: cents}
		}
		accounts = append(accounts, in)
	}
	var cats []core.CategoryInput
	for _, line := range readLines(filepath.Join(base, "seed_categories.txt")) {
		name, color, _ := strings.Cut(line, ",")
		in := core.CategoryInput{Name: strings.TrimSpace(name), Color: core.Color(strings.TrimSpace(color))}
		if !core.ColorOrDefault(in.Color).Valid() {
			in.Color = core.DefaultColor
		}
		cats = append(cats, in)
	}
	if len(accounts) == 0 {
		accounts = []core.AccountInput{{Name: "Cash"}, {Name: "Bank"}}
	}
	if len(cats) == 0 {
		cats = []core.CategoryInput{
			{Name: "Food", Color: core.Red},
			{Name: "Transport", Color: core.Blue},
			{Name: "Salary", Color: core.Green},
			{Name: "Other", Color: core.Gray},
		}
	}
	return New(accounts, cats)
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// ListAccounts implements store.AccountStore
func (s *Store) ListAccounts(_ context.Context, o core.Ownership) ([]schema.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Account
	for _, a := range s.accounts {
		if o.Visible(a.OwnerID) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return byName(out[i].Name, out[j].Name, out[i].ID, out[j].ID) })
	return records(out, schema.AccountRecord), nil
}

// CreateAccount implements store.AccountStore
func (s *Store) CreateAccount(_ context.Context, ownerID string, in core.AccountInput) (schema.Record, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := core.Account{ID: s.id(), OwnerID: ownerID, Name: strings.TrimSpace(in.Name), InitialBalance: in.InitialBalance}
	s.accounts = append(s.accounts, a)
	return schema.AccountRecord(a), nil
}

// ListCategories implements store.CategoryStore
func (s *Store) ListCategories(_ context.Context, o core.Ownership) ([]schema.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.cats {
		if o.Visible(c.OwnerID) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return byName(out[i].Name, out[j].Name, out[i].ID, out[j].ID) })
	return records(out, schema.CategoryRecord), nil
}

// CreateCategory implements store.CategoryStore
func (s *Store) CreateCategory(_ context.Context, ownerID string, in core.CategoryInput) (schema.Record, error) {
	in.Color = core.ColorOrDefault(in.Color)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := core.Category{ID: s.id(), OwnerID: ownerID, Name: strings.TrimSpace(in.Name), Color: in.Color}
	s.cats = append(s.cats, c)
	return schema.CategoryRecord(c), nil
}

// CreateEntry implements store.EntryStore
func (s *Store) CreateEntry(_ context.Context, userID string, in core.EntryInput) (schema.Record, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	vis := core.OwnedOrShared(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	cat, ok := s.category(in.CategoryID)
	if !ok || !vis.Visible(cat.OwnerID) {
		return nil, &store.ReferenceError{Field: "categoryId", ID: in.CategoryID}
	}
	acct, ok := s.account(in.AccountID)
	if !ok || !vis.Visible(acct.OwnerID) {
		return nil, &store.ReferenceError{Field: "accountId", ID: in.AccountID}
	}
	e := core.Entry{
		ID:          s.id(),
		UserID:      userID,
		Type:        in.Type,
		Amount:      in.Amount,
		Date:        in.Date,
		Description: copyString(in.Description),
		CategoryID:  cat.ID,
		AccountID:   acct.ID,
		Category:    cat,
		Account:     acct,
	}
	s.entries = append(s.entries, e)
	return schema.EntryRecord(e), nil
}

// ListEntries implements store.EntryStore
func (s *Store) ListEntries(_ context.Context, userID string, q store.EntryQuery) ([]schema.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Entry
	for _, e := range s.entries {
		if e.UserID == userID && q.Period.Contains(e.Date) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return records(out, schema.EntryRecord), nil
}

// GetEntry implements store.EntryStore
func (s *Store) GetEntry(_ context.Context, id int64) (schema.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			return schema.EntryRecord(e), nil
		}
	}
	return nil, fmt.Errorf("entry %d: %w", id, store.ErrNotFound)
}

func (s *Store) category(id int64) (core.Category, bool) {
	for _, c := range s.cats {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

func (s *Store) account(id int64) (core.Account, bool) {
	for _, a := range s.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return core.Account{}, false
}

// byName orders by name, then id, matching the SQL store's ORDER BY.
func byName(a, b string, ida, idb int64) bool {
	if a != b {
		return a < b
	}
	return ida < idb
}

func records[T any](items []T, fn func(T) schema.Record) []schema.Record {
	out := make([]schema.Record, len(items))
	for i, it := range items {
		out[i] = fn(it)
	}
	return out
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func dedupeAccounts(in []core.AccountInput) []core.AccountInput {
	seen := map[string]struct{}{}
	out := make([]core.AccountInput, 0, len(in))
	for _, a := range in {
		a.Name = strings.TrimSpace(a.Name)
		if a.Name == "" {
			continue
		}
		if _, ok := seen[a.Name]; ok {
			continue
		}
		seen[a.Name] = struct{}{}
		out = append(out, a)
	}
	return out
}

func dedupeCategories(in []core.CategoryInput) []core.CategoryInput {
	seen := map[string]struct{}{}
	out := make([]core.CategoryInput, 0, len(in))
	for _, c := range in {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		if _, ok := seen[c.Name]; ok {
			continue
		}
		seen[c.Name] = struct{}{}
		out = append(out, c)
	}
	return out
}

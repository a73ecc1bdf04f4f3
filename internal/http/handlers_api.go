package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"kakeibo/internal/core"
	applog "kakeibo/internal/log"
	"kakeibo/internal/schema"
	"kakeibo/internal/store"
)

const maxAPIListLimit = 500

type apiError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Issues  []core.Issue `json:"issues,omitempty"`
}

type accountJSON struct {
	ID             int64       `json:"id"`
	OwnerID        *string     `json:"ownerId"`
	Name           string      `json:"name"`
	InitialBalance json.Number `json:"initialBalance"`
}

type categoryJSON struct {
	ID      int64      `json:"id"`
	OwnerID *string    `json:"ownerId"`
	Name    string     `json:"name"`
	Color   core.Color `json:"color"`
}

type entryJSON struct {
	ID          int64          `json:"id"`
	UserID      string         `json:"userId"`
	Type        core.EntryType `json:"type"`
	Amount      json.Number    `json:"amount"`
	Date        string         `json:"date"`
	Description *string        `json:"description"`
	CategoryID  int64          `json:"categoryId"`
	AccountID   int64          `json:"accountId"`
	Category    categoryJSON   `json:"category"`
	Account     accountJSON    `json:"account"`
}

func ownerJSON(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func toAccountJSON(a core.Account) accountJSON {
	return accountJSON{
		ID:             a.ID,
		OwnerID:        ownerJSON(a.OwnerID),
		Name:           a.Name,
		InitialBalance: json.Number(a.InitialBalance.String()),
	}
}

func toCategoryJSON(c core.Category) categoryJSON {
	return categoryJSON{ID: c.ID, OwnerID: ownerJSON(c.OwnerID), Name: c.Name, Color: c.Color}
}

func toEntryJSON(e core.Entry) entryJSON {
	return entryJSON{
		ID:          e.ID,
		UserID:      e.UserID,
		Type:        e.Type,
		Amount:      json.Number(e.Amount.String()),
		Date:        e.Date.String(),
		Description: e.Description,
		CategoryID:  e.CategoryID,
		AccountID:   e.AccountID,
		Category:    toCategoryJSON(e.Category),
		Account:     toAccountJSON(e.Account),
	}
}

func mapSlice[T, U any](in []T, fn func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeAPIError maps err onto 401, 422 or 500.
func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch core.KindOf(err) {
	case core.KindUnauthorized:
		writeJSON(w, http.StatusUnauthorized, apiError{Code: "unauthorized", Message: "Authentication required"})
	case core.KindValidation:
		body := apiError{Code: "validation", Message: "Invalid input"}
		if v, ok := core.AsValidation(err); ok {
			body.Issues = v.Issues
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)
	default:
		applog.FromContext(r.Context()).Failure(r.Context(), "API request failed", err, op)
		writeJSON(w, http.StatusInternalServerError, apiError{Code: "internal", Message: "Internal error"})
	}
}

// apiIdentity returns the caller or writes 401.
func (s *Server) apiIdentity(w http.ResponseWriter, r *http.Request) (core.Identity, bool) {
	id := s.identity.Identify(r)
	if err := id.Require(); err != nil {
		s.writeAPIError(w, r, err, applog.OpList)
		return id, false
	}
	return id, true
}

// apiBody parses a JSON or form body or writes 400. Form bodies carry only
// strings, so they are validated with form instead of typed.
func apiBody[T any](w http.ResponseWriter, r *http.Request, typed, form schema.Schema[T]) (schema.Record, schema.Schema[T], bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "bad_request", Message: "Malformed request body"})
		return nil, nil, false
	}
	if p.IsJSON() {
		return p.Record(), typed, true
	}
	return p.Record(), form, true
}

func (s *Server) handleAPIListAccounts(w http.ResponseWriter, r *http.Request) {
	id, ok := s.apiIdentity(w, r)
	if !ok {
		return
	}
	accounts, err := s.ledger.ListAccounts(r.Context(), id)
	if err != nil {
		s.writeAPIError(w, r, err, applog.OpList)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(accounts, toAccountJSON))
}

func (s *Server) handleAPICreateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := s.apiIdentity(w, r)
	if !ok {
		return
	}
	rec, sch, ok := apiBody(w, r, schema.AccountInput, schema.AccountForm)
	if !ok {
		return
	}
	in, err := schema.Validate(sch, rec)
	if err != nil {
		s.writeAPIError(w, r, err, applog.OpCreate)
		return
	}
	account, err := s.ledger.CreateAccount(r.Context(), id, in)
	if err != nil {
		s.writeAPIError(w, r, err, applog.OpCreate)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountJSON(account))
}

func (s *Server) handleAPIListCategories(w http.ResponseWriter, r *http.Request) {
	id, ok := s.apiIdentity(w, r)
	if !ok {
		return
	}
	categories, err := s.ledger.ListCategories(r.Context(), id)
	if err != nil {
		s.writeAPIError(w, r, err, applog.OpList)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(categories, toCategoryJSON))
}

func (s *Server) handleAPICreateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.apiIdentity(w, r)
	if !ok {
		return
	}
	rec, sch, ok := apiBody(w, r, schema.CategoryInput, schema.CategoryInput)
	if !ok {
		return
	}
	in, err := schema.Validate(sch, rec)
	if err != nil {
		s.writeAPIError(w, r, err, applog.OpCreate)
		return
	}
	category, err := s.ledger.CreateCategory(r.Context(), id, in)
	if err != nil {
		s.writeAPIError(w, r, err, applog.OpCreate)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryJSON(category))
}

// handleAPIListEntries lists the caller's entries, newest first, optionally
// bounded by from, to and limit.
func (s *Server) handleAPIListEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := s.apiIdentity(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	period, err := ParsePeriod(q)
	if err != nil {
		s.writeAPIError(w, r, err, applog.OpList)
		return
	}
	limit, err := ParseLimit(q, maxAPIListLimit)
	if err != nil {
		s.writeAPIError(w, r, err, applog.OpList)
		return
	}
	entries, err := s.ledger.QueryEntries(r.Context(), id, store.EntryQuery{Period: period, Limit: limit})
	if err != nil {
		s.writeAPIError(w, r, err, applog.OpList)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(entries, toEntryJSON))
}

func (s *Server) handleAPICreateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.apiIdentity(w, r)
	if !ok {
		return
	}
	rec, sch, ok := apiBody(w, r, schema.EntryInput, schema.EntryForm)
	if !ok {
		return
	}
	in, err := schema.Validate(sch, rec)
	if err != nil {
		s.writeAPIError(w, r, err, applog.OpCreate)
		return
	}
	entry, err := s.ledger.CreateEntry(r.Context(), id, in)
	if err != nil {
		s.writeAPIError(w, r, err, applog.OpCreate)
		return
	}
	s.appMetrics.entriesCreated.Add(1)
	writeJSON(w, http.StatusCreated, toEntryJSON(entry))
}

// Package forms holds the state of the new-entry form between requests.
package forms

import (
	"context"
	"fmt"

	"kakeibo/internal/core"
	"kakeibo/internal/schema"
)

// State is the lifecycle position of the entry form.
type State int

const (
	Closed State = iota
	Open
	Submitting
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case Submitting:
		return "submitting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Notification texts shown after a submission.
const (
	MsgCreated      = "Entry recorded."
	MsgValidation   = "Please check the values you entered."
	MsgUnauthorized = "You need to sign in."
	MsgUnknown      = "Something went wrong. Please try again."
)

// Values are the raw form fields as posted by the browser.
type Values struct {
	Type        string
	Amount      string
	Date        string
	Description string
	CategoryID  string
	AccountID   string
}

// Record exposes the values to the schema layer.
func (v Values) Record() schema.Record {
	return schema.Record{
		"type":        v.Type,
		"amount":      v.Amount,
		"date":        v.Date,
		"description": v.Description,
		"categoryId":  v.CategoryID,
		"accountId":   v.AccountID,
	}
}

// ValuesFromRecord reads form values out of a posted record.
func ValuesFromRecord(r schema.Record) Values {
	get := func(k string) string {
		s, _ := r[k].(string)
		return s
	}
	return Values{
		Type:        get("type"),
		Amount:      get("amount"),
		Date:        get("date"),
		Description: get("description"),
		CategoryID:  get("categoryId"),
		AccountID:   get("accountId"),
	}
}

// EntryCreator is the operation a submission runs.
type EntryCreator interface {
	CreateEntry(ctx context.Context, id core.Identity, in core.EntryInput) (core.Entry, error)
}

// Notification is a toast shown to the user.
type Notification struct {
	Kind    string // success or error
	Message string
}

// EntryForm is the new-entry dialog. Transitions:
//
//	Closed -> Open -> Submitting -> Closed (success, values reset)
//	                             -> Open   (failure, values kept)
type EntryForm struct {
	state    State
	today    core.Date
	Values   Values
	Errors   map[string]string
	Notice   *Notification
	LastKind core.ErrorKind
}

// NewEntryForm returns a closed form with default values for today.
func NewEntryForm(today core.Date) *EntryForm {
	f := &EntryForm{today: today}
	f.reset()
	return f
}

// Restore rebuilds an open form around values a client posted.
func Restore(today core.Date, v Values) *EntryForm {
	f := NewEntryForm(today)
	f.state = Open
	f.Values = v
	return f
}

func (f *EntryForm) State() State { return f.state }

func (f *EntryForm) IsOpen() bool { return f.state != Closed }

// Open shows the dialog. Opening an open form is a no-op.
func (f *EntryForm) Open() {
	if f.state == Closed {
		f.state = Open
		f.Notice = nil
	}
}

// Close hides the dialog without touching the values.
func (f *EntryForm) Close() {
	if f.state == Open {
		f.state = Closed
	}
}

func (f *EntryForm) reset() {
	f.state = Closed
	f.Values = Values{Type: string(core.Expense), Date: f.today.String()}
	f.Errors = nil
}

// Submit coerces the current values and runs create. It returns the created
// entry on success. On failure the form stays open with its values and a
// notification matching the error kind.
func (f *EntryForm) Submit(ctx context.Context, create EntryCreator, id core.Identity) (core.Entry, error) {
	if f.state != Open {
		return core.Entry{}, fmt.Errorf("submit entry form: form is %s", f.state)
	}
	f.state = Submitting
	f.Errors = nil

	entry, err := f.run(ctx, create, id)
	f.LastKind = core.KindOf(err)
	if err != nil {
		f.state = Open
		f.Notice = &Notification{Kind: "error", Message: notificationFor(f.LastKind)}
		if v, ok := core.AsValidation(err); ok {
			f.Errors = make(map[string]string, len(v.Issues))
			for _, is := range v.Issues {
				if _, seen := f.Errors[is.Path]; !seen {
					f.Errors[is.Path] = is.Message
				}
			}
		}
		return core.Entry{}, err
	}

	f.reset()
	f.Notice = &Notification{Kind: "success", Message: MsgCreated}
	return entry, nil
}

func (f *EntryForm) run(ctx context.Context, create EntryCreator, id core.Identity) (core.Entry, error) {
	if err := id.Require(); err != nil {
		return core.Entry{}, err
	}
	in, err := schema.Validate(schema.EntryForm, f.Values.Record())
	if err != nil {
		return core.Entry{}, err
	}
	return create.CreateEntry(ctx, id, in)
}

func notificationFor(k core.ErrorKind) string {
	switch k {
	case core.KindValidation:
		return MsgValidation
	case core.KindUnauthorized:
		return MsgUnauthorized
	default:
		return MsgUnknown
	}
}

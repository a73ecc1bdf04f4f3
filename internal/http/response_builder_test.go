package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusCreated).
		Body([]byte("test")).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "test")
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Error("HX-Trigger must be absent without triggers")
	}
}

func TestHTMXResponseBuilder_EntryCreatedTriggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerEntryCreated(42, "2024-06-03").
		TriggerFormReset().
		TriggerDialogClose().
		TriggerSuccessNotification("Entry recorded.").
		Write(w)

	var got map[string]json.RawMessage
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &got); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	for _, name := range []string{EventEntryCreated, EventFormReset, EventDialogClose, EventNotification} {
		if _, ok := got[name]; !ok {
			t.Errorf("HX-Trigger missing %q", name)
		}
	}

	var created struct {
		ID   int64  `json:"id"`
		Week string `json:"week"`
	}
	if err := json.Unmarshal(got[EventEntryCreated], &created); err != nil {
		t.Fatal(err)
	}
	if created.ID != 42 || created.Week != "2024-06-03" {
		t.Errorf("entry:created payload = %+v", created)
	}
	if !strings.Contains(string(got[EventNotification]), `"type":"success"`) {
		t.Errorf("notification payload = %s", got[EventNotification])
	}
}

func TestHTMXResponseBuilder_CustomHeader(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Header("X-Custom", "value").
		BodyHTML([]byte("<p>ok</p>")).
		Write(w)

	if w.Header().Get("X-Custom") != "value" {
		t.Errorf("X-Custom = %q", w.Header().Get("X-Custom"))
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestErrorResponse_EscapesMessage(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorResponse(http.StatusUnprocessableEntity, "<script>alert(1)</script>").Write(w)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Status code = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "<script>") {
		t.Errorf("message not escaped: %s", w.Body.String())
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name    string
		builder *HTMXResponseBuilder
		want    int
	}{
		{"bad request", BadRequestError("x"), http.StatusBadRequest},
		{"internal", InternalServerError("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			if w.Code != tt.want {
				t.Errorf("Status code = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestIsHTMX(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/entries", nil)
	if IsHTMX(r) {
		t.Error("plain request detected as htmx")
	}
	r.Header.Set("HX-Request", "true")
	if !IsHTMX(r) {
		t.Error("htmx request not detected")
	}
}

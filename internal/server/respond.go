package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/training"
)

const dateLayout = "2006-01-02"

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Field     string `json:"field,omitempty"`
	Refetch   bool   `json:"refetch,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Action    string `json:"action,omitempty"`
	Pending   int    `json:"pending,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// writeError maps service errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ordering  *training.IncompleteOrderingError
		duplicate *training.DuplicateTaskNameError
		dates     *training.InvalidDateRangeError
		score     *training.ScoreOutOfRangeError
		invalid   *training.ValidationError
		missing   *training.NotFoundError
		persist   *training.PersistenceError
		badBody   *decodeError
	)

	switch {
	case errors.As(err, &badBody):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: badBody.Error()})
	case errors.Is(err, training.ErrNotConfirmed):
		writeJSON(w, http.StatusConflict, errorBody{Error: "confirmation_required", Message: err.Error()})
	case errors.As(err, &ordering):
		writeJSON(w, http.StatusConflict, errorBody{Error: "incomplete_ordering", Message: ordering.Error(), Refetch: true})
	case errors.As(err, &duplicate):
		writeJSON(w, http.StatusConflict, errorBody{Error: "duplicate_task_name", Message: duplicate.Error(), Field: "name"})
	case errors.As(err, &dates):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "invalid_date_range", Message: dates.Error(), Field: dates.Field})
	case errors.As(err, &score):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "score_out_of_range", Message: score.Error(), Field: "score"})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation_failed", Message: invalid.Message, Field: invalid.Field})
	case errors.As(err, &missing):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: missing.Error(), Refetch: true})
	case errors.As(err, &persist):
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "unavailable", Message: "storage temporarily unavailable", Retryable: true})
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal"})
	}
}

// writeConfirmation reports a declined prompt with what the caller must
// confirm.
func writeConfirmation(w http.ResponseWriter, p training.Prompt) {
	writeJSON(w, http.StatusConflict, errorBody{
		Error:   "confirmation_required",
		Message: fmt.Sprintf("%s %q must be confirmed", p.Action, p.Name),
		Action:  p.Action,
		Pending: p.Pending,
	})
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "invalid request body: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// decode reads exactly one JSON document into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &decodeError{err: err}
	}
	if dec.More() {
		return &decodeError{err: errors.New("unexpected data after JSON document")}
	}
	return nil
}

// parseDate parses an optional YYYY-MM-DD value.
func parseDate(field string, v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(*v))
	if err != nil {
		return nil, &training.ValidationError{Field: field, Message: "must be a YYYY-MM-DD date"}
	}
	return &t, nil
}

// confirmFlag turns the confirm query parameter into a hook and records the
// prompt it declined.
type confirmFlag struct {
	ok       bool
	declined *training.Prompt
}

func newConfirmFlag(r *http.Request) *confirmFlag {
	v := strings.ToLower(r.URL.Query().Get("confirm"))
	return &confirmFlag{ok: v == "true" || v == "1"}
}

func (c *confirmFlag) hook(_ context.Context, p training.Prompt) bool {
	if !c.ok {
		c.declined = &p
	}
	return c.ok
}

// fail writes err, preferring the recorded prompt for declined confirmations.
func (c *confirmFlag) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, training.ErrNotConfirmed) && c.declined != nil {
		writeConfirmation(w, *c.declined)
		return
	}
	writeError(w, r, err)
}

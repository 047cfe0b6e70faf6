// Package web holds the JSON envelope and request helpers used by every
// handler.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/apperr"
)

const maxBodyBytes = 1 << 20

// Envelope is the response shape consumed by the front-end client.
type Envelope struct {
	OK     bool         `json:"ok"`
	Msg    string       `json:"msg,omitempty"`
	Data   any          `json:"data,omitempty"`
	Errors []FieldError `json:"errors,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func OK(w http.ResponseWriter, status int, msg string, data any) {
	WriteJSON(w, status, Envelope{OK: true, Msg: msg, Data: data})
}

func Fail(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, Envelope{OK: false, Msg: msg})
}

// Error renders err according to its apperr kind. Authentication failures
// and internal errors never leak their detail; it goes to the log instead.
func Error(w http.ResponseWriter, r *http.Request, logger *zap.SugaredLogger, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		logger.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		Fail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := apperr.Status(ae.Kind)
	switch ae.Kind {
	case apperr.KindInternal:
		logger.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		Fail(w, status, "internal server error")
	case apperr.KindUnauthorized, apperr.KindForbidden:
		logger.Infow("access denied", "path", r.URL.Path, "kind", ae.Kind.String(), "reason", err.Error())
		Fail(w, status, ae.Msg)
	case apperr.KindValidation:
		WriteJSON(w, status, Envelope{OK: false, Msg: ae.Msg, Errors: fieldErrors(ae.Fields)})
	default:
		logger.Debugw("request rejected", "path", r.URL.Path, "kind", ae.Kind.String(), "err", err)
		Fail(w, status, ae.Msg)
	}
}

// Decode reads a JSON body into dst. An empty body is allowed when
// allowEmpty is set.
func Decode(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return apperr.Wrap(apperr.KindBadRequest, "invalid payload", err)
	}
	return nil
}

// Validate converts ozzo-validation results into an itemized apperr.
func Validate(v validation.Validatable) error {
	err := v.Validate()
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := map[string]string{}
		flatten("", verrs, fields)
		return apperr.Validation(fields)
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return fmt.Errorf("validate request: %w", err)
	}
	return apperr.Validation(map[string]string{"body": err.Error()})
}

func flatten(prefix string, errs validation.Errors, out map[string]string) {
	for key, err := range errs {
		if err == nil {
			continue
		}
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		var nested validation.Errors
		if errors.As(err, &nested) {
			flatten(name, nested, out)
			continue
		}
		out[name] = err.Error()
	}
}

func fieldErrors(fields map[string]string) []FieldError {
	out := make([]FieldError, 0, len(fields))
	for f, m := range fields {
		out = append(out, FieldError{Field: f, Message: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// ParseID parses a positive int64 path or query value.
func ParseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(map[string]string{name: "must be a positive integer"})
	}
	return id, nil
}

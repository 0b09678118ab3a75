// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for decoding JSON bodies and validating
// path and query parameters.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bilancio/internal/core"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// decodeJSON decodes a single JSON object from the request body into dst.
// Unknown fields, trailing data and oversized bodies are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var (
			syntaxErr *json.SyntaxError
			typeErr   *json.UnmarshalTypeError
			maxErr    *http.MaxBytesError
		)
		switch {
		case errors.Is(err, io.EOF):
			return core.InvalidArgument("request body is empty")
		case errors.As(err, &syntaxErr):
			return core.InvalidArgument("malformed JSON at offset %d", syntaxErr.Offset)
		case errors.As(err, &typeErr):
			return core.InvalidArgument("invalid value for field %q", typeErr.Field)
		case errors.As(err, &maxErr):
			return core.InvalidArgument("request body exceeds %d bytes", maxErr.Limit)
		case errors.Is(err, core.ErrInvalidAmount):
			return core.Invalid(err)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return core.InvalidArgument("unknown field %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
		default:
			return core.InvalidArgument("invalid request body: %v", err)
		}
	}
	if dec.More() {
		return core.InvalidArgument("request body must contain a single JSON object")
	}
	return nil
}

// parseDateField parses a required date field of a request.
func parseDateField(field, value string) (core.Date, error) {
	if strings.TrimSpace(value) == "" {
		return core.Date{}, core.InvalidArgument("%s is required", field)
	}
	d, err := core.ParseDate(value)
	if err != nil {
		return core.Date{}, core.InvalidArgument("%s: %v", field, err)
	}
	return d, nil
}

// parseOptionalDate parses a query date, returning the zero date when absent.
func parseOptionalDate(query url.Values, field string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(field))
	if v == "" {
		return core.Date{}, nil
	}
	return parseDateField(field, v)
}

// parseIntParam parses a required integer parameter within [lo, hi].
func parseIntParam(field, value string, lo, hi int) (int, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, core.InvalidArgument("%s is required", field)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, core.InvalidArgument("%s must be an integer between %d and %d", field, lo, hi)
	}
	return n, nil
}

// parsePeriodParams reads a year and month pair into a period.
func parsePeriodParams(year, month string) (core.Period, error) {
	y, err := parseIntParam("year", year, 1, 9999)
	if err != nil {
		return core.Period{}, err
	}
	m, err := parseIntParam("month", month, 1, 12)
	if err != nil {
		return core.Period{}, err
	}
	p, err := core.NewPeriod(y, m)
	if err != nil {
		return core.Period{}, core.InvalidArgument("%v", err)
	}
	return p, nil
}

// pathName returns the unescaped {name} path value, rejecting blanks.
func pathName(r *http.Request, key string) (string, error) {
	v := strings.TrimSpace(sanitizeInput(r.PathValue(key)))
	if v == "" {
		return "", core.InvalidArgument("%s is required", key)
	}
	return v, nil
}

// sanitizeInput strips control characters, keeping tabs, and trims spaces.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		if r == 127 {
			return -1
		}
		return r
	}, s))
}

// sanitizePtr applies sanitizeInput to an optional field.
func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}

func requiredField(field, value string) error {
	if value == "" {
		return core.InvalidArgument("%s is required", field)
	}
	return nil
}

// dayAfter returns the exclusive upper bound for an inclusive end date.
func dayAfter(d core.Date) core.Date {
	return core.DateOf(d.AddDate(0, 0, 1))
}

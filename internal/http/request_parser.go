// Package http provides the reward API server and its handlers.
//
// This file implements parsing and validation of path values, query
// parameters and request bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"rewards/internal/core"
)

const (
	// maxBodyBytes bounds POST bodies.
	maxBodyBytes = 1 << 16

	msgInvalidCustomerID = "invalid customer id"
)

// WindowParams holds the optional window bounds of a reward query.
type WindowParams struct {
	Start *core.Date
	End   *core.Date
}

// ParseCustomerID parses a positive customer id path value.
func ParseCustomerID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(msgInvalidCustomerID)
	}
	return id, nil
}

// ParseWindowParams reads startDate and endDate from the query string.
// Absent or blank values leave the bound nil.
func ParseWindowParams(query url.Values) (WindowParams, error) {
	start, err := parseOptionalDate(query, "startDate")
	if err != nil {
		return WindowParams{}, err
	}
	end, err := parseOptionalDate(query, "endDate")
	if err != nil {
		return WindowParams{}, err
	}
	return WindowParams{Start: start, End: end}, nil
}

func parseOptionalDate(query url.Values, name string) (*core.Date, error) {
	raw := strings.TrimSpace(query.Get(name))
	if raw == "" {
		return nil, nil
	}
	date, err := core.ParseDate(raw)
	if err != nil {
		return nil, core.NewValidationError(fmt.Sprintf("invalid %s: expected YYYY-MM-DD", name))
	}
	return &date, nil
}

// RequestBodyParser handles JSON and form-encoded request bodies.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads at most maxBodyBytes of the body once.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errors.New("request body too large")
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(p.contentType, "application/json") || trimmed[0] == '{' {
		p.jsonData = make(map[string]interface{})
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// GetInt64 returns an integer value, or an error when it is absent or malformed.
func (p *RequestBodyParser) GetInt64(key string) (int64, error) {
	raw := p.Get(key)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", key)
	}
	return strconv.ParseInt(raw, 10, 64)
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string. Numbers keep their
// literal text so amounts such as 120.10 are not rounded through float64.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput drops control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, s)
}

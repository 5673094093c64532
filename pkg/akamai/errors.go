package akamai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/akamai/AkamaiOPEN-edgegrid-golang/v8/pkg/appsec"
	"github.com/akamai/AkamaiOPEN-edgegrid-golang/v8/pkg/papi"
)

// ErrNotFound is returned when a looked-up resource does not exist remotely.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from an Akamai API. Detail and Errors are
// kept as sent by the remote service so they can be shown to the operator.
type APIError struct {
	StatusCode int             `json:"status"`
	Type       string          `json:"type"`
	Title      string          `json:"title"`
	Detail     string          `json:"detail"`
	Errors     json.RawMessage `json:"errors,omitempty"`
	Warnings   json.RawMessage `json:"warnings,omitempty"`
	Body       []byte          `json:"-"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "API error %d", e.StatusCode)
	if e.Title != "" {
		fmt.Fprintf(&b, ": %s", e.Title)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if len(e.Errors) > 0 && string(e.Errors) != "null" {
		fmt.Fprintf(&b, " errors=%s", string(e.Errors))
	}
	if e.Title == "" && e.Detail == "" && len(e.Errors) == 0 && len(e.Body) > 0 {
		fmt.Fprintf(&b, ": %s", strings.TrimSpace(string(e.Body)))
	}
	return b.String()
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{}
	// problem+json bodies are optional; keep the raw body either way
	_ = json.Unmarshal(body, apiErr)
	apiErr.StatusCode = status
	apiErr.Body = body
	return apiErr
}

// fromPAPIError converts errors returned by the typed PAPI client so that
// callers only need to handle *APIError.
func fromPAPIError(err error) error {
	var papiErr *papi.Error
	if errors.As(err, &papiErr) {
		return &APIError{
			StatusCode: papiErr.StatusCode,
			Type:       papiErr.Type,
			Title:      papiErr.Title,
			Detail:     papiErr.Detail,
		}
	}
	return err
}

// fromAppSecError does the same for the typed application security client.
func fromAppSecError(err error) error {
	var appsecErr *appsec.Error
	if errors.As(err, &appsecErr) {
		return &APIError{
			StatusCode: appsecErr.StatusCode,
			Type:       appsecErr.Type,
			Title:      appsecErr.Title,
			Detail:     appsecErr.Detail,
		}
	}
	return err
}

// ErrorDetail returns the remote detail message carried by err, if any.
func ErrorDetail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return apiErr.Title
	}
	return ""
}

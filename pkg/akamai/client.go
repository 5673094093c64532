package akamai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/akamai/AkamaiOPEN-edgegrid-golang/v8/pkg/appsec"
	"github.com/akamai/AkamaiOPEN-edgegrid-golang/v8/pkg/edgegrid"
	"github.com/akamai/AkamaiOPEN-edgegrid-golang/v8/pkg/papi"
	"github.com/akamai/AkamaiOPEN-edgegrid-golang/v8/pkg/session"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// DefaultBackoff is used when a signed request is rejected with 429.
var DefaultBackoff = wait.Backoff{
	Steps:    5,
	Duration: 2 * time.Second,
	Factor:   2.0,
	Jitter:   0.1,
}

// Client represents an Akamai API client
type Client struct {
	papiClient   papi.PAPI
	appsecClient appsec.APPSEC
	sess         session.Session
	backoff      wait.Backoff
}

// Config selects the edgerc credentials used to sign requests.
type Config struct {
	EdgercPath string
	Section    string
	AccountKey string
}

// NewClient creates a new Akamai API client from an edgerc file section
func NewClient(cfg Config) (*Client, error) {
	edgerc, err := edgegrid.New(
		edgegrid.WithFile(cfg.EdgercPath),
		edgegrid.WithSection(cfg.Section),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load edgerc section %q from %s: %w", cfg.Section, cfg.EdgercPath, err)
	}
	if cfg.AccountKey != "" {
		edgerc.AccountKey = cfg.AccountKey
	}

	sess, err := session.New(session.WithSigner(edgerc))
	if err != nil {
		return nil, fmt.Errorf("failed to create edgegrid session: %w", err)
	}

	return NewClientWithSession(sess), nil
}

// NewClientWithSession builds a client on top of an existing session.
func NewClientWithSession(sess session.Session) *Client {
	return &Client{
		papiClient:   papi.Client(sess),
		appsecClient: appsec.Client(sess),
		sess:         sess,
		backoff:      DefaultBackoff,
	}
}

// withAppSec runs a typed application security call, converting its errors
// to *APIError and retrying while the remote side rate limits.
func (c *Client) withAppSec(call func() error) error {
	return retry.OnError(c.backoff, isRateLimited, func() error {
		return fromAppSecError(call())
	})
}

// request describes a signed call that the typed edgegrid packages do not cover.
type request struct {
	method      string
	path        string
	body        interface{}
	contentType string
}

// do sends a signed request and decodes a 2xx JSON body into out.
// Non-2xx responses are returned as *APIError.
func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	logger := log.FromContext(ctx)

	return retry.OnError(c.backoff, isRateLimited, func() error {
		req, err := http.NewRequestWithContext(ctx, r.method, r.path, nil)
		if err != nil {
			return fmt.Errorf("failed to create request %s %s: %w", r.method, r.path, err)
		}
		if r.contentType != "" {
			req.Header.Set("Content-Type", r.contentType)
		}

		logger.V(1).Info("Calling Akamai API", "method", r.method, "path", r.path)
		var in []interface{}
		if r.body != nil {
			in = append(in, r.body)
		}
		resp, err := c.sess.Exec(req, nil, in...)
		if err != nil {
			return fmt.Errorf("%s %s: %w", r.method, r.path, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response of %s %s: %w", r.method, r.path, err)
		}

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return newAPIError(resp.StatusCode, data)
		}

		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response of %s %s: %w", r.method, r.path, err)
		}
		return nil
	})
}

func isRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// Package client provides a typed HTTP client for the BusWeaver API.
//
// The client mirrors the server's REST surface: topologies are uploaded
// as manifests, stored under generated IDs, and queried for their system,
// report, and rendered artifacts.
//
// GET requests retry transparently on transient failures (network errors,
// 5xx, 429); mutating requests are performed exactly once. Server errors
// carry their original code through the response envelope, so callers can
// branch with [errors.Is]:
//
//	doc, err := c.GetTopology(ctx, id)
//	if errors.Is(err, errors.ErrCodeTopologyNotFound) {
//	    // handle missing topology
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/busweaver/busweaver/pkg/errors"
	"github.com/busweaver/busweaver/pkg/httputil"
	"github.com/busweaver/busweaver/pkg/observability"
	"github.com/busweaver/busweaver/pkg/report"
	"github.com/busweaver/busweaver/pkg/store"
)

const defaultTimeout = 30 * time.Second

// Client is a typed HTTP client for the BusWeaver API.
type Client struct {
	// BaseURL is the root of the API server, e.g. "http://localhost:8080".
	BaseURL string

	// HTTP is the underlying HTTP client.
	HTTP *http.Client

	// Policy controls retry behavior for idempotent requests.
	Policy httputil.Policy
}

// New creates a client for the API server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: defaultTimeout},
		Policy:  httputil.DefaultPolicy,
	}
}

// CreateTopologyRequest is the body of POST /v1/topologies. Name is
// optional; the system name from the manifest is used when empty.
type CreateTopologyRequest struct {
	Name           string `json:"name,omitempty"`
	Manifest       string `json:"manifest"`
	ManifestFormat string `json:"manifest_format"`
}

// Health checks that the API server is reachable.
func (c *Client) Health(ctx context.Context) error {
	body, err := c.get(ctx, "/healthz")
	if err != nil {
		return err
	}
	return body.Close()
}

// CreateTopology uploads a manifest. The server builds the topology,
// checks it, stores the document and returns it.
func (c *Client) CreateTopology(ctx context.Context, req CreateTopologyRequest) (*store.Document, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode request")
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/v1/topologies", payload)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var doc store.Document
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode response")
	}
	return &doc, nil
}

// ListTopologies returns all stored topologies, newest first. The listed
// documents carry metadata only; fetch a single topology for its system.
func (c *Client) ListTopologies(ctx context.Context) ([]*store.Document, error) {
	var docs []*store.Document
	if err := c.getJSON(ctx, "/v1/topologies", &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// GetTopology fetches one stored topology with its system and report.
func (c *Client) GetTopology(ctx context.Context, id string) (*store.Document, error) {
	var doc store.Document
	if err := c.getJSON(ctx, "/v1/topologies/"+url.PathEscape(id), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetReport fetches the consistency report of a stored topology.
func (c *Client) GetReport(ctx context.Context, id string) (*report.Report, error) {
	var rep report.Report
	if err := c.getJSON(ctx, "/v1/topologies/"+url.PathEscape(id)+"/report", &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// RenderTopology fetches one rendered artifact of a stored topology.
func (c *Client) RenderTopology(ctx context.Context, id, format string, detailed bool) ([]byte, error) {
	q := url.Values{}
	q.Set("format", format)
	if detailed {
		q.Set("detailed", "true")
	}

	body, err := c.get(ctx, "/v1/topologies/"+url.PathEscape(id)+"/render?"+q.Encode())
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

// DeleteTopology removes a stored topology.
func (c *Client) DeleteTopology(ctx context.Context, id string) error {
	body, err := c.doRequest(ctx, http.MethodDelete, "/v1/topologies/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return body.Close()
}

// get performs a GET with retries and returns the response body on success.
func (c *Client) get(ctx context.Context, path string) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := httputil.Retry(ctx, c.Policy, func() error {
		rc, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		body = rc
		return nil
	})
	return body, err
}

// getJSON performs a GET with retries and JSON-decodes the response into v.
func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "decode response")
	}
	return nil
}

// doRequest performs a single HTTP request and returns the response body.
// Network failures and retryable statuses come back wrapped in
// [httputil.RetryableError] so callers can retry.
func (c *Client) doRequest(ctx context.Context, method, path string, payload []byte) (io.ReadCloser, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameter, err, "build request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	observability.HTTP().OnRequest(ctx, method, req.URL.Host, req.URL.Path)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		observability.HTTP().OnError(ctx, method, req.URL.Host, req.URL.Path, err)
		return nil, &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "%s %s", method, path)}
	}
	observability.HTTP().OnResponse(ctx, method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// checkStatus converts non-2xx responses into coded errors. The server's
// error envelope is decoded when present so callers see the original code.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	code, message := decodeError(resp.Body)
	if message == "" {
		message = fmt.Sprintf("status %d", resp.StatusCode)
	}

	switch {
	case httputil.RetryableStatus(resp.StatusCode):
		if code == "" {
			code = errors.ErrCodeNetwork
		}
		return &httputil.RetryableError{Err: errors.New(code, "%s", message)}
	case code != "":
		return errors.New(code, "%s", message)
	case resp.StatusCode == http.StatusNotFound:
		return errors.New(errors.ErrCodeTopologyNotFound, "%s", message)
	default:
		return errors.New(errors.ErrCodeNetwork, "%s", message)
	}
}

// decodeError extracts the code and message from an API error envelope.
func decodeError(r io.Reader) (errors.Code, string) {
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return "", ""
	}
	return errors.Code(env.Error.Code), env.Error.Message
}

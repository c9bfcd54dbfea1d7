// Package grafana talks to the Grafana HTTP API for dashboard reads and
// writes.
package grafana

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const requestTimeout = 10 * time.Second

var ErrNotFound = errors.New("dashboard not found")

// StatusError is a non-2xx answer from Grafana.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("grafana %s: %d %s", e.Op, e.Status, strings.TrimSpace(e.Body))
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// GetDashboard returns the raw dashboard document ({"dashboard":...,"meta":...})
// for uid.
func (c *Client) GetDashboard(ctx context.Context, uid string) ([]byte, error) {
	body, err := c.do(ctx, "get dashboard", http.MethodGet, "/api/dashboards/uid/"+url.PathEscape(uid), nil)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return nil, fmt.Errorf("dashboard with UID %s: %w", uid, ErrNotFound)
		}
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("get dashboard %s: invalid JSON response", uid)
	}
	return body, nil
}

// UpdateDashboard saves a dashboard. payload may be a bare dashboard model
// or a save request with a "dashboard" key. It is normalised so the
// dashboard carries uid and id and the request overwrites the stored copy.
func (c *Client) UpdateDashboard(ctx context.Context, uid string, payload []byte) ([]byte, error) {
	req, err := c.normalize(ctx, uid, payload)
	if err != nil {
		return nil, err
	}
	log.Printf("grafana: updating dashboard %s (%s)", uid, humanize.Bytes(uint64(len(req))))
	return c.do(ctx, "update dashboard", http.MethodPost, "/api/dashboards/db", req)
}

func (c *Client) normalize(ctx context.Context, uid string, payload []byte) ([]byte, error) {
	if !gjson.ValidBytes(payload) || !gjson.ParseBytes(payload).IsObject() {
		return nil, errors.New("update dashboard: payload must be a JSON object")
	}

	req := payload
	var err error
	if !gjson.GetBytes(req, "dashboard").Exists() {
		req, err = sjson.SetRawBytes([]byte(`{}`), "dashboard", payload)
		if err != nil {
			return nil, fmt.Errorf("wrapping dashboard: %w", err)
		}
	}
	if !gjson.GetBytes(req, "dashboard.uid").Exists() {
		if req, err = sjson.SetBytes(req, "dashboard.uid", uid); err != nil {
			return nil, fmt.Errorf("setting uid: %w", err)
		}
	}
	if req, err = sjson.SetBytes(req, "overwrite", true); err != nil {
		return nil, fmt.Errorf("setting overwrite: %w", err)
	}
	if !gjson.GetBytes(req, "dashboard.id").Exists() {
		existing, err := c.GetDashboard(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("looking up dashboard id: %w", err)
		}
		id := gjson.GetBytes(existing, "dashboard.id")
		if !id.Exists() {
			return nil, fmt.Errorf("dashboard %s has no id", uid)
		}
		if req, err = sjson.SetRawBytes(req, "dashboard.id", []byte(id.Raw)); err != nil {
			return nil, fmt.Errorf("setting id: %w", err)
		}
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("grafana %s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// Package nightscout imports glucose readings from a Nightscout server
package nightscout

import (
	"context"
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Entry is one sensor glucose reading as served by /api/v1/entries
type Entry struct {
	ID         string `json:"_id"`
	SGV        int    `json:"sgv"`  // mg/dL
	Date       int64  `json:"date"` // Unix milliseconds
	DateString string `json:"dateString"`
	Direction  string `json:"direction"`
	Device     string `json:"device"`
	Type       string `json:"type"`
}

// Time returns the reading time
func (e Entry) Time() time.Time {
	return time.UnixMilli(e.Date)
}

// ServerStatus is the subset of /api/v1/status used to verify a connection
type ServerStatus struct {
	Status  string `json:"status"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// maxErrorBody caps how much of an error response is quoted
const maxErrorBody = 512

// Client reads from a Nightscout server's v1 API
type Client struct {
	base   string
	header string // authentication header name, empty for none
	value  string
	http   *http.Client
}

// NewClient creates a client. A token is sent as a bearer token when useToken
// is set; otherwise the secret is sent SHA1-hashed in API-SECRET.
func NewClient(baseURL, secret, token string, useToken bool) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
	switch {
	case useToken && token != "":
		c.header, c.value = "Authorization", "Bearer "+token
	case secret != "":
		c.header, c.value = "API-SECRET", hashSecret(secret)
	}
	return c
}

// hashSecret is the hex SHA1 digest Nightscout expects for API-SECRET
func hashSecret(secret string) string {
	sum := sha1.Sum([]byte(secret)) //nolint:gosec // mandated by the Nightscout API
	return hex.EncodeToString(sum[:])
}

func (c *Client) buildRequest(ctx context.Context, endpoint string, params url.Values) (*http.Request, error) {
	target := c.base + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.header != "" {
		req.Header.Set(c.header, c.value)
	}
	return req, nil
}

// get decodes the JSON body of a GET request into out
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := c.buildRequest(ctx, endpoint, params)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("nightscout %s: %s: %s", endpoint, resp.Status, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing %s: %w", endpoint, err)
	}
	return nil
}

// GetStatus fetches /api/v1/status
func (c *Client) GetStatus(ctx context.Context) (*ServerStatus, error) {
	var status ServerStatus
	if err := c.get(ctx, "/api/v1/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// TestConnection checks the URL and credentials by fetching the status
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.GetStatus(ctx)
	return err
}

// GetEntries retrieves sensor glucose entries in [from, to]. Zero bounds
// and a zero count are omitted from the query.
func (c *Client) GetEntries(ctx context.Context, from, to time.Time, count int) ([]Entry, error) {
	params := make(url.Values)
	if !from.IsZero() {
		params.Set("find[date][$gte]", strconv.FormatInt(from.UnixMilli(), 10))
	}
	if !to.IsZero() {
		params.Set("find[date][$lte]", strconv.FormatInt(to.UnixMilli(), 10))
	}
	if count > 0 {
		params.Set("count", strconv.Itoa(count))
	}

	var entries []Entry
	if err := c.get(ctx, "/api/v1/entries/sgv", params, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

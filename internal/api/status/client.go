package status

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnauthorized is returned when the server rejects the admin token.
var ErrUnauthorized = errors.New("unauthorized: check the admin token")

// Client talks to a status server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for baseURL. httpClient may be nil.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

// Status returns the current playback status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, "/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Albums returns the album selectors known to the server.
func (c *Client) Albums(ctx context.Context) ([]string, error) {
	var resp struct {
		Albums []string `json:"albums"`
	}
	if err := c.do(ctx, http.MethodGet, "/albums", &resp); err != nil {
		return nil, err
	}
	return resp.Albums, nil
}

// Stop stops playback and reports whether anything was playing.
func (c *Client) Stop(ctx context.Context) (bool, error) {
	var resp struct {
		Stopped bool `json:"stopped"`
	}
	err := c.do(ctx, http.MethodPost, "/control/stop", &resp)
	return resp.Stopped, err
}

// Skip skips the current track and reports whether anything was playing.
func (c *Client) Skip(ctx context.Context) (bool, error) {
	var resp struct {
		Skipped bool `json:"skipped"`
	}
	err := c.do(ctx, http.MethodPost, "/control/skip", &resp)
	return resp.Skipped, err
}

// Play starts an album.
func (c *Client) Play(ctx context.Context, album string) error {
	return c.do(ctx, http.MethodPost, "/control/play/"+url.PathEscape(album), nil)
}

// Watch calls fn for every event streamed by the server until ctx is
// cancelled or the stream ends.
func (c *Client) Watch(ctx context.Context, fn func(EventMessage)) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/events")
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to connect to event stream")
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var msg EventMessage
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			return errors.Wrap(err, "failed to decode event")
		}
		fn(msg)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "event stream failed")
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	if c.token != "" {
		req.Header.Set(AdminTokenHeader, c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := c.newRequest(ctx, method, path)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s failed", method, path)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode %s response", path)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error == "" {
			body.Error = resp.Status
		}
		return errors.Newf("server returned %d: %s", resp.StatusCode, body.Error)
	default:
		return nil
	}
}

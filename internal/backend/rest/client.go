// Package rest implements backend.Client against a hosted PostgREST + GoTrue
// deployment (the Supabase HTTP API).
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/postgrest-go"

	"github.com/stockeasy/stockeasy/internal/backend"
)

const (
	restPath = "/rest/v1"
	authPath = "/auth/v1"
	schema   = "public"
)

// Client hands out per-call postgrest and gotrue clients bound to the hosted project.
type Client struct {
	baseURL   string
	apiKey    string
	timeout   time.Duration
	transport http.RoundTripper
}

// NewClient constructs a new client. The API key is the project's public (anon) key.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		timeout:   timeout,
		transport: http.DefaultTransport,
	}
}

// From returns the row API of the named table.
func (c *Client) From(table string) backend.Table {
	return &Table{client: c, name: table}
}

// Auth returns the password auth service.
func (c *Client) Auth() backend.Auth {
	return &Auth{client: c}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// rows returns a postgrest client scoped to ctx. Requests carry the caller's access
// token when ctx has one and the anon key otherwise.
func (c *Client) rows(ctx context.Context) *postgrest.Client {
	token := backend.AccessToken(ctx)
	if token == "" {
		token = c.apiKey
	}
	pc := postgrest.NewClient(c.baseURL+restPath, schema, map[string]string{
		"apikey":        c.apiKey,
		"Authorization": "Bearer " + token,
	})
	pc.Transport.Parent = exchange{ctx: ctx, next: c.transport}
	return pc
}

// users returns a gotrue client scoped to ctx, acting as accessToken when set.
func (c *Client) users(ctx context.Context, accessToken string) gotrue.Client {
	gc := gotrue.New("", c.apiKey).
		WithCustomGoTrueURL(c.baseURL + authPath).
		WithClient(http.Client{Transport: exchange{ctx: ctx, next: c.transport}, Timeout: c.timeout})
	if accessToken != "" {
		gc = gc.WithToken(accessToken)
	}
	return gc
}

// exchange binds requests issued by the client libraries to the caller's context
// and turns error responses into *backend.Error.
type exchange struct {
	ctx  context.Context
	next http.RoundTripper
}

func (x exchange) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := x.next.RoundTrip(req.WithContext(x.ctx))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 400 {
		return resp, nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return nil, decodeError(resp.StatusCode, raw)
}

// unwrap strips the *url.Error net/http adds around transport failures.
func unwrap(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		var be *backend.Error
		if errors.As(ue.Err, &be) {
			return be
		}
	}
	return err
}

// errorBody covers both PostgREST and GoTrue error payloads.
type errorBody struct {
	Code             any    `json:"code"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

func decodeError(status int, raw []byte) error {
	out := &backend.Error{Status: status}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		out.Message = strings.TrimSpace(string(raw))
		if out.Message == "" {
			out.Message = http.StatusText(status)
		}
		return out
	}
	switch code := body.Code.(type) {
	case string:
		out.Code = code
	case float64:
		out.Code = fmt.Sprintf("%.0f", code)
	}
	if body.ErrorCode != "" {
		out.Code = body.ErrorCode
	} else if out.Code == "" && body.Error != "" {
		out.Code = body.Error
	}
	for _, msg := range []string{body.Message, body.Msg, body.ErrorDescription, body.Error} {
		if msg != "" {
			out.Message = msg
			break
		}
	}
	if out.Message == "" {
		out.Message = http.StatusText(status)
	}
	return out
}

// encode marshals v up front; postgrest-go swallows marshal failures.
func encode(v any) (json.RawMessage, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rest: encode body: %w", err)
	}
	return payload, nil
}

var _ backend.Client = (*Client)(nil)

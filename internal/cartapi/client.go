package cartapi

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deppfellow/cartpage/internal/config"
	"github.com/deppfellow/cartpage/internal/errs"
	"github.com/deppfellow/cartpage/internal/validation"
	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// RequestIDHeader carries the id correlating a click with the
	// endpoint's logs.
	RequestIDHeader = "X-Request-ID"

	// maxBodyBytes bounds how much of a reply is read.
	maxBodyBytes = 64 << 10
)

var (
	// ErrMalformedResponse is returned when a 2xx reply cannot be decoded
	// or carries neither a quantity nor a delete signal.
	ErrMalformedResponse = errors.New("malformed cart response")
)

// Client calls the update-cart endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	limiter    *rate.Limiter
}

// NewClient builds a Client from cfg.
//
// The transport is wrapped with New Relic's round tripper, which records
// an external segment whenever the request context carries a transaction.
// Redirects are not followed: the endpoint redirects to the login page
// when the session expired, and that must surface as a failure.
func NewClient(cfg *config.ClientConfig) (*Client, error) {
	endpoint := strings.TrimRight(cfg.BaseURL, "/") + cfg.UpdatePath
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, errors.Wrap(err, "invalid cart endpoint")
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   3 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	limit := rate.Inf
	if cfg.MaxRPS > 0 {
		limit = rate.Limit(cfg.MaxRPS)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newrelic.NewRoundTripper(transport),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		endpoint: endpoint,
		limiter:  rate.NewLimiter(limit, burst),
	}, nil
}

// Endpoint returns the full URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// UpdateCart sends one mutation and returns the decoded reply.
//
// Errors:
//   - invalid req: *errs.HTTPError with status 400, nothing is sent
//   - non-2xx reply: *errs.HTTPError built from the reply
//   - undecodable 2xx reply: ErrMalformedResponse
//   - transport failure or ctx done: wrapped net/http error
func (c *Client) UpdateCart(ctx context.Context, req UpdateRequest) (*UpdateResponse, error) {
	if err := validation.Check(&req); err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter")
	}

	requestID := uuid.New().String()
	log := zerolog.Ctx(ctx).With().
		Str("request_id", requestID).
		Str("endpoint", c.endpoint).
		Logger()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(req.Form().Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build update request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Requested-With", "XMLHttpRequest")
	httpReq.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Debug().Err(err).Dur("duration", time.Since(start)).Msg("update request failed")
		return nil, errors.Wrapf(err, "POST %s", c.endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read update response")
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("update response received")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.FromResponse(resp.StatusCode, body, resp.Header.Get("Location"))
	}

	return decodeUpdate(body)
}

func decodeUpdate(body []byte) (*UpdateResponse, error) {
	var out UpdateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "decode: %v", err)
	}
	if !out.Delete && out.Quantity == nil {
		return nil, errors.Wrap(ErrMalformedResponse, "neither quantity nor delete present")
	}
	return &out, nil
}

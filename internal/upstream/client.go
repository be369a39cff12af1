// Package upstream is the authenticated HTTP boundary to the sports-data
// feed: discovery, event-odds and event-detail endpoints, routed through
// a rotating proxy with browser-impersonation headers.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fortuna-labs/oracle/internal/ratelimit"
	"github.com/fortuna-labs/oracle/pkg/contracts"
	"github.com/fortuna-labs/oracle/pkg/models"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const (
	baseURL   = "https://api.sofascore-odds.internal"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	timeout   = 20 * time.Second
)

// ProxyConfig configures the rotating residential proxy. The rotating
// exit IP is encoded in Username per the provider's convention, so no
// in-process rotation logic is needed.
type ProxyConfig struct {
	Enabled  bool
	Endpoint string
	Username string
	Password string
}

// Client implements contracts.VendorAdapter against the sports-data feed.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	backoffFor func() backoff.BackOff
	maxRetries uint64
	limiter    *ratelimit.Limiter
	log        zerolog.Logger
}

var _ contracts.VendorAdapter = (*Client)(nil)

// New builds an upstream client. maxRetries and the proxy configuration
// come from internal/config. limiter is penalized on HTTP 429 and reset
// once a request succeeds again.
func New(proxy ProxyConfig, maxRetries int, limiter *ratelimit.Limiter, logger zerolog.Logger) (*Client, error) {
	transport := &http.Transport{}
	if proxy.Enabled {
		proxyURL, err := url.Parse(fmt.Sprintf("http://%s:%s@%s", proxy.Username, proxy.Password, proxy.Endpoint))
		if err != nil {
			return nil, fmt.Errorf("parse proxy endpoint: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		breaker:    breaker,
		backoffFor: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 1 * time.Second
			b.MaxInterval = 30 * time.Second
			b.Multiplier = 2
			return b
		},
		maxRetries: uint64(maxRetries),
		limiter:    limiter,
		log:        logger,
	}, nil
}

// State reports the current circuit breaker state, surfaced by the status
// CLI command.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// FetchDiscoveryCatalog fetches the "dropping odds" catalog for a sport.
func (c *Client) FetchDiscoveryCatalog(ctx context.Context, sport models.Sport) ([]contracts.DiscoveredEvent, error) {
	endpoint := fmt.Sprintf("%s/discovery/%s", baseURL, sport)
	body, err := c.getWithRetry(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch discovery catalog: %w", err)
	}

	var resp discoveryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode discovery response: %w", err)
	}

	out := make([]contracts.DiscoveredEvent, 0, len(resp.Events))
	for _, e := range resp.Events {
		startTime, err := time.Parse(time.RFC3339, e.StartTime)
		if err != nil {
			continue
		}
		out = append(out, contracts.DiscoveredEvent{
			EventID:     e.EventID,
			Sport:       sport,
			Competition: e.Competition,
			Home:        e.Home,
			Away:        e.Away,
			StartTime:   startTime,
			Markets:     toRawMarketDocument(e.Markets),
		})
	}
	return out, nil
}

// FetchEventOdds fetches every market for one event.
func (c *Client) FetchEventOdds(ctx context.Context, eventID int64) (contracts.RawMarketDocument, error) {
	endpoint := fmt.Sprintf("%s/events/%d/odds", baseURL, eventID)
	body, err := c.getWithRetry(ctx, endpoint)
	if err != nil {
		return contracts.RawMarketDocument{}, fmt.Errorf("fetch event odds: %w", err)
	}

	var resp struct {
		Markets []wireMarket `json:"markets"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return contracts.RawMarketDocument{}, fmt.Errorf("decode event odds response: %w", err)
	}
	return toRawMarketDocument(resp.Markets), nil
}

// FetchEventDetail fetches the current lifecycle state of an event.
func (c *Client) FetchEventDetail(ctx context.Context, eventID int64) (contracts.EventDetail, error) {
	endpoint := fmt.Sprintf("%s/events/%d", baseURL, eventID)
	body, err := c.getWithRetry(ctx, endpoint)
	if err != nil {
		return contracts.EventDetail{}, fmt.Errorf("fetch event detail: %w", err)
	}

	var resp eventDetailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return contracts.EventDetail{}, fmt.Errorf("decode event detail response: %w", err)
	}

	startTime, _ := time.Parse(time.RFC3339, resp.StartTime)
	return contracts.EventDetail{
		StatusCode: resp.StatusCode,
		HomeScore:  resp.HomeScore,
		AwayScore:  resp.AwayScore,
		StartTime:  startTime,
	}, nil
}

// getWithRetry wraps a single GET in the circuit breaker and an
// exponential backoff policy (1s -> 30s, up to MAX_RETRIES retries after
// the first attempt).
func (c *Client) getWithRetry(ctx context.Context, endpoint string) ([]byte, error) {
	var body []byte

	operation := func() error {
		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doRequest(ctx, endpoint)
		})
		if err != nil {
			if IsRateLimited(err) {
				c.limiter.Penalize()
			}
			if !IsTransient(err) && err != gobreaker.ErrOpenState && err != gobreaker.ErrTooManyRequests {
				return backoff.Permanent(err)
			}
			return err
		}
		c.limiter.Reset()
		body = out.([]byte)
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.backoffFor(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}

// doRequest performs a single HTTP request with browser-impersonation
// headers.
func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &httpError{StatusCode: 0, Kind: KindTransient, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &httpError{StatusCode: resp.StatusCode, Kind: classify(resp.StatusCode), Message: string(body)}
	}

	return body, nil
}

func toRawMarketDocument(markets []wireMarket) contracts.RawMarketDocument {
	out := make([]contracts.RawMarket, 0, len(markets))
	for _, m := range markets {
		outcomes := make([]contracts.RawOutcome, 0, len(m.Outcomes))
		for _, o := range m.Outcomes {
			outcomes = append(outcomes, contracts.RawOutcome{Name: o.Name, Price: o.Price})
		}
		out = append(out, contracts.RawMarket{Key: m.Key, Outcomes: outcomes})
	}
	return contracts.RawMarketDocument{Markets: out}
}

// Wire response shapes for the upstream's JSON payloads.

type discoveryResponse struct {
	Events []discoveryEvent `json:"events"`
}

type discoveryEvent struct {
	EventID     int64        `json:"event_id"`
	Competition string       `json:"competition"`
	Home        string       `json:"home"`
	Away        string       `json:"away"`
	StartTime   string       `json:"start_time"`
	Markets     []wireMarket `json:"markets"`
}

type wireMarket struct {
	Key      string        `json:"key"`
	Outcomes []wireOutcome `json:"outcomes"`
}

type wireOutcome struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

type eventDetailResponse struct {
	StatusCode int    `json:"status_code"`
	HomeScore  *int   `json:"home_score"`
	AwayScore  *int   `json:"away_score"`
	StartTime  string `json:"start_time"`
}

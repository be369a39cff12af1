package upstream_test

import (
	"errors"
	"testing"
	"time"

	"github.com/fortuna-labs/oracle/internal/ratelimit"
	"github.com/fortuna-labs/oracle/internal/upstream"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

func TestNew(t *testing.T) {
	limiter := ratelimit.New(time.Second)
	client, err := upstream.New(upstream.ProxyConfig{}, 3, limiter, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client == nil {
		t.Fatal("New returned nil")
	}
	if client.State() != gobreaker.StateClosed {
		t.Errorf("expected breaker closed at boot, got %s", client.State())
	}
}

func TestNew_InvalidProxyEndpoint(t *testing.T) {
	limiter := ratelimit.New(time.Second)
	proxy := upstream.ProxyConfig{
		Enabled:  true,
		Endpoint: "bad endpoint",
		Username: "user",
		Password: "pass",
	}
	if _, err := upstream.New(proxy, 3, limiter, zerolog.Nop()); err == nil {
		t.Fatal("expected error for unparseable proxy endpoint")
	}
}

func TestIsTransient_NonHTTPError(t *testing.T) {
	if upstream.IsTransient(errors.New("plain error")) {
		t.Error("expected plain errors to be non-transient")
	}
	if upstream.IsRateLimited(errors.New("plain error")) {
		t.Error("expected plain errors to not read as rate limited")
	}
}

// HTTP-level behavior (retry exhaustion, 429 penalties, breaker trips) is
// covered by the integration suite; the base URL is fixed, so there is no
// seam to point the client at a local test server.

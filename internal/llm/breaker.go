package llm

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/rendis/flowrun/pkg/schema"
)

// CircuitState is the state of one host's circuit.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures when a host is taken out of rotation.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before a probe is let through.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

type circuit struct {
	state    CircuitState
	failures int
	openedAt time.Time
	probing  bool
}

// BreakerClient fails fast for API hosts that keep failing. Requests are
// never retried; an open circuit turns a call into an immediate error.
type BreakerClient struct {
	inner  Client
	config BreakerConfig
	now    func() time.Time

	mu       sync.Mutex
	circuits map[string]*circuit
}

// NewBreakerClient wraps inner with per-host circuit breaking.
func NewBreakerClient(inner Client, config BreakerConfig) *BreakerClient {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultBreakerConfig().Cooldown
	}
	return &BreakerClient{
		inner:    inner,
		config:   config,
		now:      time.Now,
		circuits: make(map[string]*circuit),
	}
}

// Generate implements Client.
func (b *BreakerClient) Generate(ctx context.Context, req Request) (string, error) {
	host := hostKey(req.APIHost)
	if err := b.allow(host); err != nil {
		return "", err
	}

	out, err := b.inner.Generate(ctx, req)
	// A caller giving up says nothing about the host.
	if err != nil && ctx.Err() == nil {
		b.recordFailure(host)
		return "", err
	}
	if err != nil {
		b.release(host)
		return "", err
	}
	b.recordSuccess(host)
	return out, nil
}

// State returns the circuit state of apiHost.
func (b *BreakerClient) State(apiHost string) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.circuitLocked(hostKey(apiHost))
	if c.state == CircuitOpen && b.now().Sub(c.openedAt) >= b.config.Cooldown {
		return CircuitHalfOpen
	}
	return c.state
}

func (b *BreakerClient) allow(host string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.circuitLocked(host)

	switch c.state {
	case CircuitOpen:
		if b.now().Sub(c.openedAt) < b.config.Cooldown {
			return schema.NewErrorf(schema.ErrCodeCircuitOpen,
				"circuit open for LLM host %q after %d consecutive failures", host, c.failures).
				WithDetails(map[string]any{
					"host":               host,
					"cooldown_remaining": (b.config.Cooldown - b.now().Sub(c.openedAt)).String(),
				})
		}
		c.state = CircuitHalfOpen
		c.probing = true
		return nil
	case CircuitHalfOpen:
		if c.probing {
			return schema.NewErrorf(schema.ErrCodeCircuitOpen, "circuit half-open for LLM host %q: probe in flight", host)
		}
		c.probing = true
	}
	return nil
}

func (b *BreakerClient) recordSuccess(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.circuitLocked(host)
	c.state, c.failures, c.probing = CircuitClosed, 0, false
}

func (b *BreakerClient) recordFailure(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.circuitLocked(host)
	c.failures++
	c.probing = false
	if c.state == CircuitHalfOpen || c.failures >= b.config.FailureThreshold {
		c.state = CircuitOpen
		c.openedAt = b.now()
	}
}

func (b *BreakerClient) release(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.circuitLocked(host).probing = false
}

func (b *BreakerClient) circuitLocked(host string) *circuit {
	c, ok := b.circuits[host]
	if !ok {
		c = &circuit{}
		b.circuits[host] = c
	}
	return c
}

func hostKey(apiHost string) string {
	if u, err := url.Parse(apiHost); err == nil && u.Host != "" {
		return u.Host
	}
	return apiHost
}

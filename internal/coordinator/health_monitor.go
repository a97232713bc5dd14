package coordinator

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dreamware/authzd/internal/shardconfig"
)

// EndpointHealth tracks the health status of a single shard-group
// endpoint. Thread-safe: protected by HealthMonitor's mutex when
// accessed.
type EndpointHealth struct {
	LastCheck        time.Time // Timestamp of the last health check attempt
	LastHealthy      time.Time // Timestamp of the last successful health check
	Endpoint         string    // Shard-group endpoint URI
	Status           string    // Current status: "healthy", "unhealthy", "unknown"
	ConsecutiveFails int       // Number of consecutive failed health checks
}

// HealthMonitor performs periodic GET /health checks against every
// endpoint in a shard configuration, independently of whether that
// endpoint is currently carrying traffic. It does not itself drain or
// route around unhealthy endpoints — shardmgr.Manager already isolates
// a failing shard's errors per call — but its onUnhealthy callback gives
// an operator a place to hook alerting or forced configuration refresh.
type HealthMonitor struct {
	endpoints   map[string]*EndpointHealth
	httpClient  *http.Client
	checkFunc   func(endpoint string) error
	onUnhealthy func(endpoint string)
	ctx         context.Context
	cancel      context.CancelFunc
	interval    time.Duration
	mu          sync.RWMutex
	wg          sync.WaitGroup
	maxFailures int
}

// NewHealthMonitor creates a health monitor that checks each endpoint's
// /health route every interval, marking it unhealthy after 3 consecutive
// failures.
func NewHealthMonitor(interval time.Duration) *HealthMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &HealthMonitor{
		interval:    interval,
		maxFailures: 3,
		endpoints:   make(map[string]*EndpointHealth),
		httpClient:  &http.Client{Timeout: 2 * time.Second},
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetOnUnhealthy sets the callback invoked when an endpoint transitions
// into the unhealthy state.
func (h *HealthMonitor) SetOnUnhealthy(callback func(endpoint string)) {
	h.onUnhealthy = callback
}

// SetCheckFunction overrides the default GET /health probe, for tests or
// custom transports.
func (h *HealthMonitor) SetCheckFunction(checkFunc func(endpoint string) error) {
	h.checkFunc = checkFunc
}

// endpointProvider returns the current set of endpoints to probe, e.g.
// shardconfig.Set.AllEndpoints across every (class, kind) pair a
// Coordinator routes.
type endpointProvider func() []shardconfig.EndpointDescriptor

// Start runs the health-check loop until ctx is canceled or Stop is
// called. Blocks the calling goroutine; run it with `go`.
func (h *HealthMonitor) Start(ctx context.Context, provider endpointProvider) {
	h.wg.Add(1)
	defer h.wg.Done()

	if ctx == nil {
		ctx = h.ctx
	}
	if h.checkFunc == nil {
		h.checkFunc = h.defaultHealthCheck
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	log.Printf("health monitor started with interval %v", h.interval)

	h.checkAll(provider())

	for {
		select {
		case <-ticker.C:
			h.checkAll(provider())
		case <-ctx.Done():
			log.Println("health monitor stopping: context canceled")
			return
		case <-h.ctx.Done():
			log.Println("health monitor stopping: internal cancellation")
			return
		}
	}
}

// Stop cancels the monitor and waits for its goroutine to exit.
func (h *HealthMonitor) Stop() {
	h.cancel()
	h.wg.Wait()
	log.Println("health monitor stopped")
}

func (h *HealthMonitor) checkAll(descs []shardconfig.EndpointDescriptor) {
	current := make(map[string]bool, len(descs))
	for _, d := range descs {
		current[d.Endpoint] = true
		h.checkOne(d)
	}

	h.mu.Lock()
	for endpoint := range h.endpoints {
		if !current[endpoint] {
			delete(h.endpoints, endpoint)
			log.Printf("removed endpoint %s from health monitoring", endpoint)
		}
	}
	h.mu.Unlock()
}

func (h *HealthMonitor) checkOne(desc shardconfig.EndpointDescriptor) {
	h.mu.Lock()
	health, exists := h.endpoints[desc.Endpoint]
	if !exists {
		health = &EndpointHealth{Endpoint: desc.Endpoint, Status: "unknown", LastCheck: time.Now(), LastHealthy: time.Now()}
		h.endpoints[desc.Endpoint] = health
	}
	h.mu.Unlock()

	err := h.checkFunc(desc.Endpoint)

	h.mu.Lock()
	defer h.mu.Unlock()

	health.LastCheck = time.Now()

	if err != nil {
		health.ConsecutiveFails++
		log.Printf("health check failed for %s (attempt %d/%d): %v", desc.Endpoint, health.ConsecutiveFails, h.maxFailures, err)

		if health.ConsecutiveFails >= h.maxFailures {
			previous := health.Status
			health.Status = "unhealthy"
			if previous != "unhealthy" && h.onUnhealthy != nil {
				log.Printf("%s marked unhealthy after %d failures", desc.Endpoint, health.ConsecutiveFails)
				go h.onUnhealthy(desc.Endpoint)
			}
		}
		return
	}

	if health.Status == "unhealthy" {
		log.Printf("%s recovered and is now healthy", desc.Endpoint)
	}
	health.Status = "healthy"
	health.ConsecutiveFails = 0
	health.LastHealthy = time.Now()
}

func (h *HealthMonitor) defaultHealthCheck(endpoint string) error {
	url := endpoint
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	if !strings.HasSuffix(url, "/health") {
		url = strings.TrimRight(url, "/") + "/health"
	}

	resp, err := h.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// EndpointHealthOf returns a copy of the current health record for
// endpoint, or nil if it isn't monitored.
func (h *HealthMonitor) EndpointHealthOf(endpoint string) *EndpointHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	health, exists := h.endpoints[endpoint]
	if !exists {
		return nil
	}
	cp := *health
	return &cp
}

// AllEndpointHealth returns a copy of every monitored endpoint's health
// record, keyed by endpoint.
func (h *HealthMonitor) AllEndpointHealth() map[string]*EndpointHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make(map[string]*EndpointHealth, len(h.endpoints))
	for endpoint, health := range h.endpoints {
		cp := *health
		result[endpoint] = &cp
	}
	return result
}

// IsHealthy reports whether endpoint's status is "healthy". An endpoint
// that is not monitored, or whose status is still "unknown" or has
// flipped to "unhealthy", reports false.
func (h *HealthMonitor) IsHealthy(endpoint string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	health, exists := h.endpoints[endpoint]
	if !exists {
		return false
	}
	return health.Status == "healthy"
}

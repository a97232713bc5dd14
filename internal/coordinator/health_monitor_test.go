package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/authzd/internal/shardconfig"
)

// TestNewHealthMonitorDefaults verifies that NewHealthMonitor creates a
// properly configured instance with no endpoints tracked yet.
func TestNewHealthMonitorDefaults(t *testing.T) {
	m := NewHealthMonitor(10 * time.Millisecond)
	assert.Equal(t, 3, m.maxFailures)
	assert.Len(t, m.endpoints, 0)
	assert.NotNil(t, m.httpClient)
}

func TestHealthMonitorMarksHealthyOnSuccess(t *testing.T) {
	m := NewHealthMonitor(5 * time.Millisecond)
	m.SetCheckFunction(func(endpoint string) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx, func() []shardconfig.EndpointDescriptor {
		return []shardconfig.EndpointDescriptor{{Endpoint: "fake://a", Description: "a"}}
	})
	time.Sleep(20 * time.Millisecond)
	cancel()
	m.wg.Wait()

	assert.True(t, m.IsHealthy("fake://a"))
}

func TestHealthMonitorMarksUnhealthyAfterMaxFailures(t *testing.T) {
	m := NewHealthMonitor(2 * time.Millisecond)
	m.SetCheckFunction(func(endpoint string) error { return errors.New("down") })

	var unhealthyCount int64
	m.SetOnUnhealthy(func(endpoint string) { atomic.AddInt64(&unhealthyCount, 1) })

	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx, func() []shardconfig.EndpointDescriptor {
		return []shardconfig.EndpointDescriptor{{Endpoint: "fake://b", Description: "b"}}
	})

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if h := m.EndpointHealthOf("fake://b"); h != nil && h.Status == "unhealthy" {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	m.wg.Wait()

	health := m.EndpointHealthOf("fake://b")
	require.NotNil(t, health)
	assert.Equal(t, "unhealthy", health.Status)
	assert.Greater(t, atomic.LoadInt64(&unhealthyCount), int64(0))
}

func TestHealthMonitorRemovesStaleEndpoints(t *testing.T) {
	m := NewHealthMonitor(time.Hour)
	m.SetCheckFunction(func(endpoint string) error { return nil })

	m.checkAll([]shardconfig.EndpointDescriptor{{Endpoint: "fake://a"}, {Endpoint: "fake://b"}})
	assert.Len(t, m.AllEndpointHealth(), 2)

	m.checkAll([]shardconfig.EndpointDescriptor{{Endpoint: "fake://a"}})
	all := m.AllEndpointHealth()
	assert.Len(t, all, 1)
	assert.Contains(t, all, "fake://a")
}

func TestHealthMonitorConcurrentAccessIsRaceFree(t *testing.T) {
	m := NewHealthMonitor(time.Hour)
	m.SetCheckFunction(func(endpoint string) error { return nil })

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.checkAll([]shardconfig.EndpointDescriptor{{Endpoint: "fake://a"}})
			_ = m.IsHealthy("fake://a")
			_ = m.AllEndpointHealth()
		}()
	}
	wg.Wait()
}

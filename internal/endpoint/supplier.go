package endpoint

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// Supplier hands out CMS API endpoints in round-robin order
type Supplier interface {
	Get() string
	Len() int
}

type supplier struct {
	endpoints []string
	current   int
	mutex     sync.Mutex
}

// NewSupplier keeps the endpoints that answer a health check. When none of
// them answers, all of them are kept so the client can still try later.
func NewSupplier(ctx context.Context, endpoints []string, healthPath string) Supplier {
	if len(endpoints) == 0 {
		return &supplier{endpoints: []string{}}
	}

	healthy := make([]string, 0, len(endpoints))
	healthyCh := make(chan string, len(endpoints))

	log.Infof("🔄 Checking %d CMS endpoints...", len(endpoints))

	var wg sync.WaitGroup
	for _, endpoint := range endpoints {
		wg.Add(1)

		go func(endpoint string) {
			defer wg.Done()

			if isEndpointHealthy(ctx, endpoint, healthPath) {
				healthyCh <- endpoint
				log.Infof("✅ CMS endpoint %s is reachable", endpoint)
			} else {
				log.Warnf("❌ CMS endpoint %s is not reachable, skipping", endpoint)
			}
		}(strings.TrimRight(endpoint, "/"))
	}

	wg.Wait()
	close(healthyCh)

	for endpoint := range healthyCh {
		healthy = append(healthy, endpoint)
	}

	if len(healthy) == 0 {
		log.Warnf("⚠️ No CMS endpoint answered the health check, keeping all %d", len(endpoints))
		return NewStaticSupplier(endpoints)
	}

	log.Infof("✅ Endpoint supplier initialized with %d of %d endpoints", len(healthy), len(endpoints))
	return &supplier{endpoints: healthy}
}

// NewStaticSupplier rotates over endpoints without checking them
func NewStaticSupplier(endpoints []string) Supplier {
	trimmed := make([]string, 0, len(endpoints))
	for _, endpoint := range endpoints {
		trimmed = append(trimmed, strings.TrimRight(endpoint, "/"))
	}
	return &supplier{endpoints: trimmed}
}

// Get returns the next endpoint in round-robin fashion
func (s *supplier) Get() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.endpoints) == 0 {
		return "" // No endpoints configured
	}

	endpoint := s.endpoints[s.current]
	s.current = (s.current + 1) % len(s.endpoints)

	return endpoint
}

func (s *supplier) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.endpoints)
}

func isEndpointHealthy(ctx context.Context, endpoint, healthPath string) bool {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(0)
	defer client.Close()

	resp, err := client.R().
		SetContext(ctx).
		Get(endpoint + healthPath)

	if err != nil {
		log.Debugf("Health check failed for %s: %v", endpoint, err)
		return false
	}

	if resp.StatusCode() >= 500 {
		log.Debugf("Health check failed for %s with status: %s", endpoint, resp.Status())
		return false
	}

	return true
}

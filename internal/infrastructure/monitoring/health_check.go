package monitoring

import (
	"context"
	"sync"
	"time"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	checkFailed     = "check failed"
)

// HealthChecker runs named checks on demand for the readiness endpoints and
// periodically in the background for the network probe.
type HealthChecker struct {
	mu       sync.RWMutex
	checks   []HealthCheck
	onResult func(name string, healthy bool, err error)
	last     map[string]CheckResult
}

type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) (bool, error)
	Interval time.Duration
	Timeout  time.Duration
}

// CheckResult is the outcome of the latest background run of one check.
type CheckResult struct {
	Healthy   bool
	Err       error
	CheckedAt time.Time
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		last: make(map[string]CheckResult),
	}
}

func (h *HealthChecker) AddCheck(name string, check func(ctx context.Context) (bool, error), interval, timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.checks = append(h.checks, HealthCheck{
		Name:     name,
		Check:    check,
		Interval: interval,
		Timeout:  timeout,
	})
}

// OnResult sets a callback receiving every background check result.
func (h *HealthChecker) OnResult(fn func(name string, healthy bool, err error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onResult = fn
}

// Last returns the latest background result of the named check.
func (h *HealthChecker) Last(name string) (CheckResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	res, ok := h.last[name]
	return res, ok
}

// CheckAll runs every check concurrently, each bounded by its own timeout.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	outcomes := make([]string, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check HealthCheck) {
			defer wg.Done()
			healthy, err := runCheck(ctx, check)
			switch {
			case err != nil:
				outcomes[i] = err.Error()
			case !healthy:
				outcomes[i] = checkFailed
			default:
				outcomes[i] = statusHealthy
			}
		}(i, check)
	}
	wg.Wait()

	status := HealthStatus{
		Status:    statusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]string, len(checks)),
	}
	for i, check := range checks {
		status.Checks[check.Name] = outcomes[i]
		if outcomes[i] != statusHealthy {
			status.Status = statusUnhealthy
		}
	}
	return status
}

// StartBackgroundChecks runs every check on its own interval until ctx is done.
func (h *HealthChecker) StartBackgroundChecks(ctx context.Context) {
	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	for _, check := range checks {
		go h.runCheckPeriodically(ctx, check)
	}
}

func (h *HealthChecker) runCheckPeriodically(ctx context.Context, check HealthCheck) {
	ticker := time.NewTicker(check.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			healthy, err := runCheck(ctx, check)
			if ctx.Err() != nil {
				return
			}
			healthy = healthy && err == nil

			h.mu.Lock()
			h.last[check.Name] = CheckResult{Healthy: healthy, Err: err, CheckedAt: time.Now()}
			onResult := h.onResult
			h.mu.Unlock()

			if onResult != nil {
				onResult(check.Name, healthy, err)
			}
		}
	}
}

func runCheck(ctx context.Context, check HealthCheck) (bool, error) {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return check.Check(checkCtx)
}

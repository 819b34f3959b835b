package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client *redis.Client, interval, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddHTTPCheck adds a check that succeeds when url answers with a status below 500.
func (h *HealthChecker) AddHTTPCheck(name string, client *http.Client, url string, interval, timeout time.Duration) {
	if client == nil {
		client = http.DefaultClient
	}
	h.AddCheck(name, func(ctx context.Context) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return false, err
		}
		resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return false, fmt.Errorf("%s returned %d", url, resp.StatusCode)
		}
		return true, nil
	}, interval, timeout)
}

// AddConditionCheck adds a check backed by an in-process condition such as
// "the video session is connected".
func (h *HealthChecker) AddConditionCheck(name string, cond func() bool, interval, timeout time.Duration) {
	h.AddCheck(name, func(ctx context.Context) (bool, error) {
		return cond(), nil
	}, interval, timeout)
}

// IsReady reports whether every check currently passes.
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status == statusHealthy
}

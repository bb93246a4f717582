package health

import (
	"context"
	"time"
)

// Pinger is anything that can report liveness, e.g. *pgxpool.Pool
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	db    Pinger
	cache func(ctx context.Context) bool
}

type HealthStatus struct {
	Status   string          `json:"status"`
	Database ComponentHealth `json:"database"`
	Cache    ComponentHealth `json:"cache"`
}

type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
}

// NewHealthChecker checks db always and the cache when cacheCheck is non-nil. The cache is
// optional, so an unhealthy cache degrades rather than fails readiness.
func NewHealthChecker(db Pinger, cacheCheck func(ctx context.Context) bool) *HealthChecker {
	return &HealthChecker{db: db, cache: cacheCheck}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	dbHealth := h.checkDatabase(ctx)
	cacheHealth := h.checkCache(ctx)

	status := "healthy"
	switch {
	case dbHealth.Status != "healthy":
		status = "unhealthy"
	case cacheHealth.Status == "unhealthy":
		status = "degraded"
	}
	return HealthStatus{Status: status, Database: dbHealth, Cache: cacheHealth}
}

func (h *HealthChecker) checkDatabase(ctx context.Context) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.db.Ping(ctx)
	responseTime := time.Since(start).Milliseconds()
	if err != nil {
		return ComponentHealth{Status: "unhealthy", ResponseTime: responseTime}
	}
	return ComponentHealth{Status: "healthy", ResponseTime: responseTime}
}

func (h *HealthChecker) checkCache(ctx context.Context) ComponentHealth {
	if h.cache == nil {
		return ComponentHealth{Status: "disabled"}
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	start := time.Now()
	ok := h.cache(ctx)
	responseTime := time.Since(start).Milliseconds()
	if !ok {
		return ComponentHealth{Status: "unhealthy", ResponseTime: responseTime}
	}
	return ComponentHealth{Status: "healthy", ResponseTime: responseTime}
}

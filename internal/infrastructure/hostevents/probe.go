package hostevents

import (
	"sync"

	"callbridge/internal/core/domain"
	"callbridge/internal/infrastructure/monitoring"

	"go.uber.org/zap"
)

// NetworkProbe turns the results of one background health check into online
// and offline host events. Only transitions are dispatched; the host starts online.
type NetworkProbe struct {
	target *Target
	check  string
	logger *zap.SugaredLogger

	mu     sync.Mutex
	online bool
}

// NewNetworkProbe subscribes to the results of the named check on checker.
func NewNetworkProbe(target *Target, checker *monitoring.HealthChecker, check string, logger *zap.SugaredLogger) *NetworkProbe {
	p := &NetworkProbe{
		target: target,
		check:  check,
		logger: logger,
		online: true,
	}
	checker.OnResult(p.HandleResult)
	return p
}

func (p *NetworkProbe) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// HandleResult records one check result and dispatches on a change.
func (p *NetworkProbe) HandleResult(name string, healthy bool, err error) {
	if name != p.check {
		return
	}

	p.mu.Lock()
	if p.online == healthy {
		p.mu.Unlock()
		return
	}
	p.online = healthy
	p.mu.Unlock()

	if healthy {
		p.logger.Infow("Network probe recovered", "check", name)
		p.target.Dispatch(domain.HostOnline)
		return
	}
	p.logger.Warnw("Network probe failed", "check", name, "error", err)
	p.target.Dispatch(domain.HostOffline)
}

package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Config struct {
	CheckInterval time.Duration
	CheckTimeout  time.Duration
	ID            string
}

type Component string

const (
	ComponentDB     Component = "db"
	ComponentLedger Component = "ledger"
	ComponentQueue  Component = "queue"
)

// Pinger is implemented by every backend the service depends on.
type Pinger interface {
	IsUpAndRunning(ctx context.Context) error
}

type CheckResult struct {
	Timestamp time.Time `json:"timestamp"`
	Result    bool      `json:"result"`
}

type HealthChecks map[Component]CheckResult

type HealthStatus struct {
	Healthy bool         `json:"healthy"`
	Checks  HealthChecks `json:"checks"`
}

type Checker struct {
	config     *Config
	components map[Component]Pinger
	mu         sync.RWMutex
	checks     HealthChecks
	log        *slog.Logger
}

func NewChecker(config *Config, components map[Component]Pinger) *Checker {
	c := &Checker{
		config:     config,
		components: components,
		checks:     make(HealthChecks, len(components)),
		log:        slog.With("pod", config.ID, "component", "health"),
	}

	// if this code gets executed, we assume that there was an initial check
	for name := range components {
		c.checks[name] = CheckResult{Timestamp: time.Now(), Result: true}
	}

	return c
}

func (c *Checker) Run(ctx context.Context) {
	c.log.Debug("Starting the health checker...")

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Debug("Stopping health checker ...")
			return
		case <-ticker.C:
			c.CheckAll(ctx)
		}
	}
}

// CheckAll pings every component once.
func (c *Checker) CheckAll(ctx context.Context) {
	for name, pinger := range c.components {
		c.check(ctx, name, pinger)
	}
}

func (c *Checker) check(ctx context.Context, name Component, pinger Pinger) {
	timeout := c.config.CheckTimeout
	if timeout <= 0 {
		timeout = time.Second
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := pinger.IsUpAndRunning(checkCtx)
	if err != nil {
		c.log.Warn("Component ping failed", "component", name, "error", err)
	}

	c.mu.Lock()
	c.checks[name] = CheckResult{
		Timestamp: time.Now(),
		Result:    err == nil,
	}
	c.mu.Unlock()
}

func (c *Checker) GetHealthStatus() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthy := true
	checks := make(HealthChecks, len(c.checks))

	for component, check := range c.checks {
		checks[component] = check
		if !check.Result {
			healthy = false
			c.log.Error("Component health check failed", "component", component)
		}
	}

	return HealthStatus{
		Healthy: healthy,
		Checks:  checks,
	}
}

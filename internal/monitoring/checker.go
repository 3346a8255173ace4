package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/market-match/internal/config"
)

const (
	defaultCheckInterval = 5 * time.Minute
	defaultRepeatAfter   = time.Hour
)

// Checker samples the service on an interval and delivers alerts. An alert
// type that keeps firing is re-sent at most once per repeat window; once it
// clears, its next occurrence is sent immediately.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
	repeat    time.Duration
	now       func() time.Time

	// firing holds the last delivery time of each alert type still active.
	firing map[AlertType]time.Time
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	c := &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  time.Duration(cfg.CheckIntervalSecs) * time.Second,
		repeat:    time.Duration(cfg.RepeatAfterSecs) * time.Second,
		now:       time.Now,
		firing:    make(map[AlertType]time.Time),
	}
	if c.interval <= 0 {
		c.interval = defaultCheckInterval
	}
	if c.repeat <= 0 {
		c.repeat = defaultRepeatAfter
	}
	return c
}

// Run checks once, then on every tick until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", c.interval),
		zap.Duration("repeat_after", c.repeat),
	)

	c.check(ctx, log)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

// check runs one sample and returns how many alerts were delivered.
func (c *Checker) check(ctx context.Context, log *zap.Logger) int {
	snap, err := c.collector.Collect(ctx)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return 0
	}

	now := c.now()
	alerts := c.alerter.Evaluate(snap)
	active := make(map[AlertType]bool, len(alerts))
	var due []Alert
	for _, a := range alerts {
		active[a.Type] = true
		if last, ok := c.firing[a.Type]; ok && now.Sub(last) < c.repeat {
			continue
		}
		due = append(due, a)
	}
	for t := range c.firing {
		if !active[t] {
			log.Info("monitoring: condition cleared", zap.String("type", string(t)))
			delete(c.firing, t)
		}
	}

	if len(due) == 0 {
		log.Debug("monitoring: nothing to send",
			zap.Int("active", len(alerts)),
			zap.Int64("completed", snap.Completed),
			zap.Int("queued", snap.Queued),
		)
		return 0
	}

	sent := 0
	for _, a := range due {
		if c.alerter.SendAlerts(ctx, []Alert{a}) == 1 {
			c.firing[a.Type] = now
			sent++
		}
	}
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_active", len(alerts)),
		zap.Int("alerts_due", len(due)),
		zap.Int("alerts_sent", sent),
	)
	return sent
}

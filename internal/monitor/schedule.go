package monitor

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	appLog "bookwatch/internal/log"
)

// Schedule holds standard five-field cron expressions. An empty expression
// disables that job.
type Schedule struct {
	Refresh  string
	Midnight string
	Morning  string
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule parses every non-empty expression.
func ValidateSchedule(s Schedule) error {
	for name, expr := range map[string]string{"refresh": s.Refresh, "midnight": s.Midnight, "morning": s.Morning} {
		if expr == "" {
			continue
		}
		if _, err := cronParser.Parse(expr); err != nil {
			return fmt.Errorf("monitor: %s schedule %q: %w", name, expr, err)
		}
	}
	return nil
}

// Run polls once, then follows the schedule until ctx is canceled. On return
// the buffered changes have been flushed.
func (m *Monitor) Run(ctx context.Context, s Schedule) error {
	if err := ValidateSchedule(s); err != nil {
		return err
	}

	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(m.opts.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	jobs := []struct {
		name string
		expr string
		run  func()
	}{
		{"refresh", s.Refresh, func() { _ = m.Poll(ctx, false) }},
		{"midnight", s.Midnight, func() { _ = m.Poll(ctx, true) }},
		{"morning", s.Morning, func() {
			if err := m.MorningCheck(ctx); err != nil {
				appLog.Warn("morning check delivery failed", "error", err.Error())
			}
		}},
	}
	for _, j := range jobs {
		if j.expr == "" {
			continue
		}
		if _, err := c.AddFunc(j.expr, j.run); err != nil {
			return fmt.Errorf("monitor: schedule %s: %w", j.name, err)
		}
		appLog.Info("job scheduled", "job", j.name, "cron", j.expr)
	}

	_ = m.Poll(ctx, false)

	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	m.Flush()

	appLog.Info("monitor stopped")
	return nil
}

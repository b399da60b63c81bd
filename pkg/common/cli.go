// Package common holds process plumbing shared by the CLI commands.
package common

import (
	"context"
	"fmt"
	"time"

	"github.com/sandrolain/userkit/pkg/toolutil"
)

// ParseInterval parses a positive duration such as "5s" or "1m30s".
func ParseInterval(interval string) (time.Duration, error) {
	dur, err := time.ParseDuration(interval)
	if err != nil {
		return 0, fmt.Errorf("invalid interval: %w", err)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	return dur, nil
}

// StartPeriodicTask runs task immediately and then on every tick until ctx is
// cancelled. Runs never overlap: a tick that fires during a slow run is
// dropped. Task errors are printed and do not stop the loop.
func StartPeriodicTask(ctx context.Context, interval string, task func(context.Context) error) error {
	dur, err := ParseInterval(interval)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(dur)
	defer ticker.Stop()

	for {
		if err := task(ctx); err != nil && ctx.Err() == nil {
			toolutil.PrintError("%v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnceOrPeriodic runs task once when interval is empty, otherwise
// periodically via StartPeriodicTask.
func RunOnceOrPeriodic(ctx context.Context, interval string, task func(context.Context) error) error {
	if interval == "" {
		return task(ctx)
	}
	return StartPeriodicTask(ctx, interval, task)
}

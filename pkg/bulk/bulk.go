// Package bulk creates many users concurrently from one JSON array.
package bulk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sandrolain/userkit/pkg/user"
	"golang.org/x/sync/errgroup"
)

// Creator creates one user from its JSON text. *gateway.Gateway implements it.
type Creator interface {
	Create(ctx context.Context, text string) (*user.User, error)
}

// Policy decides what happens to the batch when one record fails.
type Policy int

const (
	// CollectAll runs every record and reports all failures together.
	CollectAll Policy = iota
	// FailFast cancels outstanding records on the first failure.
	FailFast
)

func (p Policy) String() string {
	if p == FailFast {
		return "fail-fast"
	}
	return "collect-all"
}

const DefaultWorkers = 16

type Status int

const (
	StatusSkipped Status = iota
	StatusCreated
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusFailed:
		return "failed"
	}
	return "skipped"
}

// Outcome is the result of one array element.
type Outcome struct {
	Index  int
	Status Status
	User   *user.User
	Err    error
}

// Report summarizes a batch. Outcomes are indexed like the input array.
type Report struct {
	Policy   Policy
	Total    int
	Created  int
	Failed   int
	Skipped  int
	Outcomes []Outcome
}

// ProgressFunc is called from worker goroutines after each record finishes.
// Calls may arrive concurrently and in any order.
type ProgressFunc func(s Snapshot, o Outcome)

type config struct {
	policy     Policy
	workers    int
	timeout    time.Duration
	onProgress ProgressFunc
}

type Option func(*config)

func WithPolicy(p Policy) Option {
	return func(c *config) { c.policy = p }
}

// WithWorkers caps concurrent creates. Zero or less means one goroutine per record.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithTimeout bounds the whole batch. Records still running when it expires
// fail with the context error.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

func WithProgress(fn ProgressFunc) Option {
	return func(c *config) { c.onProgress = fn }
}

// Split parses text as a JSON array of objects and returns each element as
// its own JSON text.
func Split(text string) ([]string, error) {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, user.Errorf(user.KindMalformedInput, "expected a JSON array of users")
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, user.MalformedInput(err)
	}

	items := make([]string, 0, len(raw))
	for i, r := range raw {
		r = bytes.TrimSpace(r)
		if len(r) == 0 || r[0] != '{' {
			return nil, user.Errorf(user.KindMalformedInput, "element %d is not a JSON object", i)
		}
		items = append(items, string(r))
	}
	return items, nil
}

// CreateMany creates one user per element of the JSON array in text and
// waits for all of them. The returned error is MalformedInput when text is
// not an array of objects. Otherwise, with CollectAll it aggregates every
// failed record, and with FailFast it is the first failure. The Report is
// returned whenever the batch was dispatched.
func CreateMany(ctx context.Context, c Creator, text string, opts ...Option) (*Report, error) {
	cfg := config{policy: CollectAll, workers: DefaultWorkers}
	for _, opt := range opts {
		opt(&cfg)
	}

	items, err := Split(text)
	if err != nil {
		return nil, err
	}

	report := &Report{Policy: cfg.policy, Total: len(items), Outcomes: make([]Outcome, len(items))}
	if len(items) == 0 {
		return report, nil
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	g := &errgroup.Group{}
	runCtx := ctx
	if cfg.policy == FailFast {
		g, runCtx = errgroup.WithContext(ctx)
	}
	if cfg.workers > 0 {
		g.SetLimit(cfg.workers)
	}

	progress := NewProgress(len(items))
	for i, item := range items {
		report.Outcomes[i] = Outcome{Index: i, Status: StatusSkipped}
		g.Go(func() error {
			if cfg.policy == FailFast && runCtx.Err() != nil {
				return nil
			}
			u, err := c.Create(runCtx, item)
			o := Outcome{Index: i, Status: StatusCreated, User: u}
			switch {
			case err == nil:
			case cfg.policy == FailFast && errors.Is(err, context.Canceled) && runCtx.Err() != nil:
				// cancelled by another record's failure
				o = Outcome{Index: i, Status: StatusSkipped, Err: err}
			default:
				o = Outcome{Index: i, Status: StatusFailed, Err: err}
			}
			report.Outcomes[i] = o

			snap := progress.Done(o.Status != StatusFailed)
			if cfg.onProgress != nil {
				cfg.onProgress(snap, o)
			}
			if err != nil && cfg.policy == FailFast {
				return fmt.Errorf("record %d: %w", i, err)
			}
			return nil
		})
	}
	firstErr := g.Wait()

	var merr *multierror.Error
	for _, o := range report.Outcomes {
		switch o.Status {
		case StatusCreated:
			report.Created++
		case StatusFailed:
			report.Failed++
			merr = multierror.Append(merr, fmt.Errorf("record %d: %w", o.Index, o.Err))
		default:
			report.Skipped++
		}
	}

	if cfg.policy == FailFast {
		return report, firstErr
	}
	return report, merr.ErrorOrNil()
}

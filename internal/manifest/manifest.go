// Package manifest runs a normalized query across the requested
// datasources and assembles the keyed response. Driver failures are
// isolated per datasource; one bad upstream never aborts the rest.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spatialmesh/stac-federator/internal/core/observability"
	"github.com/spatialmesh/stac-federator/internal/driver"
	"github.com/spatialmesh/stac-federator/internal/query"
	"github.com/spatialmesh/stac-federator/pkg/stac"
)

type Manifest struct {
	reg         *driver.Registry
	logger      *slog.Logger
	maxWorkers  int
	execTimeout time.Duration
}

func New(reg *driver.Registry, logger *slog.Logger, maxWorkers int, execTimeout time.Duration) *Manifest {
	if logger == nil {
		logger = slog.Default()
	}
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if execTimeout <= 0 {
		execTimeout = 15 * time.Second
	}
	return &Manifest{
		reg:         reg,
		logger:      logger,
		maxWorkers:  maxWorkers,
		execTimeout: execTimeout,
	}
}

type task struct {
	name string
	desc driver.Descriptor
	req  any
}

type outcome struct {
	name     string
	items    []stac.Item
	err      error
	duration time.Duration
}

// Run executes q and returns one entry per requested datasource. The only
// request-level failure is every datasource being unknown; anything else
// is reported inside the result.
func (m *Manifest) Run(ctx context.Context, q query.Query) (Result, error) {
	names := q.Datasources
	if len(names) == 0 {
		names = m.reg.Names()
	}

	out := make(Result, len(names))

	// Collecting: ask each driver to translate the query. Sequential on
	// purpose; Search is local computation, not upstream I/O.
	var tasks []task
	var unknown []string
	for _, name := range names {
		if _, dup := out[name]; dup {
			continue
		}
		desc, err := m.reg.Lookup(name)
		if err != nil {
			var nf *driver.NotFoundError
			if errors.As(err, &nf) {
				unknown = append(unknown, name)
				out[name] = Entry{Err: &ErrorEntry{Code: CodeUnknownDatasource, Message: err.Error()}}
				observability.ObserveDriverSearch(name, "unknown")
				continue
			}
			return nil, fmt.Errorf("lookup %s: %w", name, err)
		}

		req, err := safeSearch(desc.Driver, q)
		switch {
		case errors.Is(err, driver.ErrSkip):
			out[name] = Entry{Collection: stac.NewFeatureCollection(nil)}
			observability.ObserveDriverSearch(name, "skip")
			m.logger.DebugContext(ctx, "driver opted out", "datasource", name)
		case err != nil:
			out[name] = Entry{Err: &ErrorEntry{Code: CodeDriverSearch, Message: err.Error()}}
			observability.ObserveDriverSearch(name, "error")
			m.logger.WarnContext(ctx, "driver search failed", "datasource", name, "err", err)
		default:
			tasks = append(tasks, task{name: name, desc: desc, req: req})
			observability.ObserveDriverSearch(name, "ok")
		}
	}

	if len(unknown) == len(names) {
		return out, &NoValidDatasourcesError{Unknown: unknown}
	}
	if len(tasks) == 0 {
		return out, nil
	}

	// Executing: bounded fan-out with a per-task deadline.
	workers := m.maxWorkers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	jobs := make(chan task)
	results := make(chan outcome, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				results <- m.runOne(ctx, t)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, t := range tasks {
			select {
			case jobs <- t:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// Aggregating: validate, cap, and key each completed set.
	done := make(map[string]bool, len(tasks))
	for oc := range results {
		done[oc.name] = true
		out[oc.name] = m.aggregate(ctx, oc, q)
	}
	for _, t := range tasks {
		if !done[t.name] {
			out[t.name] = Entry{Err: &ErrorEntry{Code: CodeTimeout, Message: "query deadline exceeded before execution"}}
			observability.ObserveDriverExecute(t.name, "timeout", 0)
		}
	}

	return out, nil
}

func (m *Manifest) runOne(ctx context.Context, t task) outcome {
	execCtx, cancel := context.WithTimeout(ctx, m.execTimeout)
	defer cancel()

	start := time.Now()
	items, err := safeExecute(execCtx, t.desc.Driver, t.req)
	return outcome{name: t.name, items: items, err: err, duration: time.Since(start)}
}

func (m *Manifest) aggregate(ctx context.Context, oc outcome, q query.Query) Entry {
	secs := oc.duration.Seconds()
	if oc.err != nil {
		if errors.Is(oc.err, context.DeadlineExceeded) || errors.Is(oc.err, context.Canceled) {
			observability.ObserveDriverExecute(oc.name, "timeout", secs)
			m.logger.WarnContext(ctx, "driver timed out", "datasource", oc.name, "after", oc.duration)
			return Entry{Err: &ErrorEntry{Code: CodeTimeout, Message: oc.err.Error()}}
		}
		observability.ObserveDriverExecute(oc.name, "error", secs)
		m.logger.WarnContext(ctx, "driver execute failed", "datasource", oc.name, "err", oc.err)
		return Entry{Err: &ErrorEntry{Code: CodeDriverExecute, Message: oc.err.Error()}}
	}
	observability.ObserveDriverExecute(oc.name, "ok", secs)

	kept := make([]stac.Item, 0, len(oc.items))
	dropped := 0
	for _, it := range oc.items {
		if err := stac.Validate(it); err != nil {
			dropped++
			m.logger.DebugContext(ctx, "item failed validation",
				"datasource", oc.name, "item", it.ID, "err", err)
			continue
		}
		kept = append(kept, it)
		if q.Limit > 0 && len(kept) == q.Limit {
			break
		}
	}
	observability.AddItemsAccepted(oc.name, len(kept))
	observability.AddItemsDropped(oc.name, dropped)

	return Entry{Collection: stac.NewFeatureCollection(kept), Dropped: dropped}
}

// safeSearch shields the orchestrator from panicking drivers.
func safeSearch(d driver.Interface, q query.Query) (req any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("search panic: %v", r)
		}
	}()
	return d.Search(q)
}

func safeExecute(ctx context.Context, d driver.Interface, req any) (items []stac.Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = fmt.Errorf("execute panic: %v", r)
		}
	}()
	return d.Execute(ctx, req)
}

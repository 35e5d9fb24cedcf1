package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jvmScope/aggregator"
	"jvmScope/collector"
	"jvmScope/config"
)

// New creates a Processor. Invalid bounds or a non-positive sample count are
// reported as configuration errors before any sampling happens.
func New(cfg Config, fetcher Fetcher) (*Processor, error) {
	if fetcher == nil {
		return nil, errors.New("processor: nil fetcher")
	}
	if cfg.Samples <= 0 {
		return nil, fmt.Errorf("%w: samples must be positive, got %d", config.ErrInvalidConfig, cfg.Samples)
	}
	if err := checkBounds(cfg.MinInterval, cfg.MaxInterval); err != nil {
		return nil, err
	}
	if cfg.Rand == nil {
		cfg.Rand = newRand()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = Sleep
	}

	return &Processor{
		config:     cfg,
		fetcher:    fetcher,
		aggregator: aggregator.New(),
		state:      Idle,
	}, nil
}

// State returns the current step of the loop.
func (p *Processor) State() State {
	return p.state
}

// Run takes the configured number of samples and returns the aggregated
// result. The first sample is taken immediately; every following attempt
// waits a fresh random interval first.
//
// A malformed dump or a recoverable fetch failure drops that attempt. An
// unreachable target or a canceled ctx aborts the run; the samples recorded
// so far are kept in the result either way.
func (p *Processor) Run(ctx context.Context) *Result {
	res := &Result{
		Configured: p.config.Samples,
		Started:    time.Now(),
	}

	p.config.Logger.Info().
		Int("samples", p.config.Samples).
		Dur("min_interval", p.config.MinInterval).
		Dur("max_interval", p.config.MaxInterval).
		Stringer("filter", p.config.Filter).
		Dur("estimated", EstimatedDuration(p.config.Samples, p.config.MinInterval, p.config.MaxInterval)).
		Msg("Started sampling")

	for attempt := 1; attempt <= p.config.Samples; attempt++ {
		if attempt > 1 {
			p.transition(Waiting)
			wait, _ := Interval(p.config.MinInterval, p.config.MaxInterval, p.config.Rand)
			p.config.Logger.Debug().
				Dur("wait", wait).
				Msgf("Waiting before taking sample %d / %d", attempt, p.config.Samples)
			if err := p.config.Sleep(ctx, wait); err != nil {
				return p.abort(res, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return p.abort(res, err)
		}

		p.transition(Fetching)
		res.Attempts++
		payload, err := p.fetcher.Fetch(ctx)
		if err != nil {
			if errors.Is(err, collector.ErrUnreachable) || ctx.Err() != nil {
				return p.abort(res, err)
			}
			p.config.Logger.Warn().Err(err).Msgf("Skipping sample %d due to failed thread dump retrieval", attempt)
			res.Dropped++
			continue
		}

		p.transition(Parsing)
		dump, err := collector.Parse(payload)
		if err != nil {
			p.config.Logger.Info().Err(err).Msgf("Skipping sample %d: malformed thread dump", attempt)
			res.Dropped++
			continue
		}

		p.transition(Recording)
		threads, frames := p.record(dump)
		res.Collected++
		p.config.Logger.Debug().
			Int("threads", threads).
			Int("frames", frames).
			Msgf("Recorded sample %d / %d", attempt, p.config.Samples)
	}

	p.transition(Done)
	p.finish(res)
	p.config.Logger.Info().
		Int("collected", res.Collected).
		Int("dropped", res.Dropped).
		Dur("elapsed", res.Finished.Sub(res.Started)).
		Msg("Finished sampling")
	return res
}

// record feeds every in-scope (frame, depth) pair of dump to the aggregator.
func (p *Processor) record(dump *collector.Dump) (threads, frames int) {
	for _, stack := range dump.Threads {
		if !p.config.Filter.AcceptsState(stack.State) {
			continue
		}
		threads++
		for frame, depth := range p.config.Filter.Frames(stack) {
			p.aggregator.Record(frame.Method, depth)
			frames++
		}
	}
	return threads, frames
}

func (p *Processor) abort(res *Result, err error) *Result {
	p.transition(Aborted)
	res.Err = err
	p.finish(res)
	p.config.Logger.Warn().Err(err).Msg(res.Warning())
	return res
}

func (p *Processor) finish(res *Result) {
	res.State = p.state
	res.Finished = time.Now()
	res.Rows = p.aggregator.Snapshot()
	res.Total = p.aggregator.Total()
}

func (p *Processor) transition(to State) {
	p.config.Logger.Trace().Stringer("from", p.state).Stringer("to", to).Msg("State change")
	p.state = to
}

// Partial reports whether the run ended before all attempts were made.
func (r *Result) Partial() bool {
	return r.State == Aborted
}

// Interrupted reports whether the run was stopped by the operator.
func (r *Result) Interrupted() bool {
	return errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded)
}

// Fatal reports whether the target was unreachable before any sample
// succeeded.
func (r *Result) Fatal() bool {
	return r.State == Aborted && r.Collected == 0 && errors.Is(r.Err, collector.ErrUnreachable)
}

// Warning describes an early end of the run, or returns "" when the run
// completed.
func (r *Result) Warning() string {
	if !r.Partial() {
		return ""
	}
	reason := "target unreachable"
	if r.Interrupted() {
		reason = "interrupted"
	}
	return fmt.Sprintf("Run ended early (%s) with %d/%d samples collected", reason, r.Collected, r.Configured)
}

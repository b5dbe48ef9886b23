package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultRecursionLimit is the wave budget of a run when none is given.
const DefaultRecursionLimit = 25

// RunOption configures a single run.
type RunOption func(*runConfig)

type runConfig struct {
	recursionLimit int
	maxParallel    int
	observer       Observer
	runID          string
}

// WithRecursionLimit caps the number of waves. Values below 1 keep the default.
func WithRecursionLimit(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.recursionLimit = n
		}
	}
}

// WithMaxParallel bounds how many nodes of one wave run at the same time.
// Zero means no bound.
func WithMaxParallel(n int) RunOption {
	return func(c *runConfig) { c.maxParallel = n }
}

// WithRunObserver attaches an observer to this run only.
func WithRunObserver(obs Observer) RunOption {
	return func(c *runConfig) { c.observer = obs }
}

// WithRunID sets the run id reported in events and the result. A random
// UUID is used otherwise.
func WithRunID(id string) RunOption {
	return func(c *runConfig) { c.runID = id }
}

// Step records that Node ran in Wave.
type Step struct {
	Node string `json:"node"`
	Wave int    `json:"wave"`
}

// Result is the outcome of a successful run.
type Result[S any] struct {
	RunID string
	State S
	Trace []Step
	Waves int
	// Ended is true when at least one branch reached END; false when every
	// branch stopped at a node without successors.
	Ended bool
}

// outcome is what one node produced within a wave.
type outcome[S any] struct {
	node    string
	state   S
	targets []string
	label   Label
	routed  bool
}

// Invoke runs the graph and returns only the final state.
func (g *CompiledGraph[S]) Invoke(ctx context.Context, state S, opts ...RunOption) (S, error) {
	res, err := g.Run(ctx, state, opts...)
	if err != nil {
		var zero S
		return zero, err
	}
	return res.State, nil
}

// Run executes the graph in waves starting at the entry point. Each wave
// runs its nodes in parallel against the same input state, merges their
// outputs, then schedules successors behind the convergence barrier. The run
// ends when no node is left to schedule. On error no state is returned.
//
// The caller's state is cloned before the first wave, so it is never
// modified when S is a value type, a Cloner, or the graph has SetClone.
func (g *CompiledGraph[S]) Run(ctx context.Context, state S, opts ...RunOption) (*Result[S], error) {
	cfg := runConfig{recursionLimit: DefaultRecursionLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runID == "" {
		cfg.runID = uuid.NewString()
	}
	obs := composeObservers(g.observer, cfg.observer)
	logger := g.logger.With("graph", g.name, "run_id", cfg.runID)

	state = g.clone(state)
	ec := newExecContext(cfg.recursionLimit)
	emitEvent(obs, Event{Type: EventRunStart, RunID: cfg.runID, Node: g.entry})

	fail := func(err error) (*Result[S], error) {
		emitEvent(obs, Event{Type: EventRunError, RunID: cfg.runID, Wave: ec.wave, Error: err})
		return nil, err
	}

	ready := []string{g.entry}
	for len(ready) > 0 {
		if ctx.Err() != nil {
			return fail(cancelledError(ec.wave+1, context.Cause(ctx)))
		}
		ec.wave++
		if ec.wave > ec.limit {
			return fail(&RecursionLimitError{Limit: ec.limit, Pending: ready})
		}

		emitEvent(obs, Event{Type: EventWaveStart, RunID: cfg.runID, Wave: ec.wave, Nodes: ready})
		waveStart := time.Now()

		outcomes, err := g.runWave(ctx, obs, cfg, ec.wave, ready, state)
		if err != nil {
			if ctx.Err() != nil {
				return fail(cancelledDuringError(ec.wave, context.Cause(ctx)))
			}
			return fail(err)
		}
		state, err = g.mergeWave(state, outcomes)
		if err != nil {
			return fail(fmt.Errorf("graph: merge at wave %d: %w", ec.wave, err))
		}

		for _, o := range outcomes {
			ec.trace = append(ec.trace, Step{Node: o.node, Wave: ec.wave})
			for _, t := range o.targets {
				if t == END {
					ec.ended = true
					emitEvent(obs, Event{Type: EventEndReached, RunID: cfg.runID, Wave: ec.wave, Node: o.node})
					continue
				}
				ec.arrive(t, o.node, o.routed)
			}
		}

		emitEvent(obs, Event{Type: EventWaveEnd, RunID: cfg.runID, Wave: ec.wave, Nodes: ready, Elapsed: time.Since(waveStart)})
		ready = resolve(g, ec, logger)
	}

	emitEvent(obs, Event{Type: EventRunComplete, RunID: cfg.runID, Wave: ec.wave})
	return &Result[S]{
		RunID: cfg.runID,
		State: state,
		Trace: ec.trace,
		Waves: ec.wave,
		Ended: ec.ended,
	}, nil
}

// runWave executes the ready nodes. A single node runs inline on the current
// state; several nodes run in parallel, each on its own clone.
func (g *CompiledGraph[S]) runWave(ctx context.Context, obs Observer, cfg runConfig, wave int, ready []string, state S) ([]outcome[S], error) {
	outcomes := make([]outcome[S], len(ready))
	errs := make([]error, len(ready))

	if len(ready) == 1 {
		outcomes[0], errs[0] = g.step(ctx, obs, cfg.runID, wave, ready[0], state)
		return outcomes, errs[0]
	}

	eg, egCtx := errgroup.WithContext(ctx)
	if cfg.maxParallel > 0 {
		eg.SetLimit(cfg.maxParallel)
	}
	for i, id := range ready {
		input := g.clone(state)
		eg.Go(func() error {
			outcomes[i], errs[i] = g.step(egCtx, obs, cfg.runID, wave, id, input)
			return errs[i]
		})
	}
	_ = eg.Wait() // errors captured per node

	return outcomes, firstCause(ctx, errs)
}

// firstCause returns the error of the first node in id order, preferring
// errors that are not just the group cancellation caused by a sibling.
func firstCause(ctx context.Context, errs []error) error {
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		if ctx.Err() != nil || !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return first
}

func (g *CompiledGraph[S]) step(ctx context.Context, obs Observer, runID string, wave int, id string, input S) (outcome[S], error) {
	emitEvent(obs, Event{Type: EventNodeEnter, RunID: runID, Wave: wave, Node: id})
	start := time.Now()

	out, err := callHandler(ctx, g.handlers[id], input)
	elapsed := time.Since(start)
	if err != nil {
		herr := &HandlerError{Node: id, Wave: wave, Cause: err}
		emitEvent(obs, Event{Type: EventNodeExit, RunID: runID, Wave: wave, Node: id, Elapsed: elapsed, Error: herr})
		return outcome[S]{}, herr
	}
	emitEvent(obs, Event{Type: EventNodeExit, RunID: runID, Wave: wave, Node: id, Elapsed: elapsed})

	o := outcome[S]{node: id, state: out}
	ce, ok := g.routers[id]
	if !ok {
		o.targets = g.static[id]
		return o, nil
	}

	label, err := callRouter(ctx, ce.router, out)
	if err != nil {
		return outcome[S]{}, &HandlerError{Node: id, Wave: wave, Cause: fmt.Errorf("route: %w", err)}
	}
	to, ok := ce.routes[label]
	if !ok {
		return outcome[S]{}, &UnknownRouteLabelError{Node: id, Wave: wave, Label: label, Known: ce.routes.Labels()}
	}
	emitEvent(obs, Event{Type: EventRoute, RunID: runID, Wave: wave, Node: id, Label: label, Target: to})
	o.targets = []string{to}
	o.label = label
	o.routed = true
	return o, nil
}

func callHandler[S any](ctx context.Context, fn NodeFunc[S], input S) (out S, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, input)
}

func callRouter[S any](ctx context.Context, r Router[S], state S) (label Label, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Route(ctx, state)
}

// mergeWave folds the wave outputs into one state. Outcomes are already in
// node-id order.
func (g *CompiledGraph[S]) mergeWave(base S, outcomes []outcome[S]) (S, error) {
	if len(outcomes) == 1 {
		return outcomes[0].state, nil
	}
	branches := make([]Branch[S], len(outcomes))
	for i, o := range outcomes {
		branches[i] = Branch[S]{Node: o.node, State: o.state}
	}
	return g.mergeFor(outcomes)(base, branches)
}

// mergeFor picks the merge function: the lexically first successor of the
// wave that declares one, then the graph default, then LastWriterWins.
func (g *CompiledGraph[S]) mergeFor(outcomes []outcome[S]) MergeFunc[S] {
	best := ""
	for _, o := range outcomes {
		for _, t := range o.targets {
			if _, ok := g.merges[t]; ok && (best == "" || t < best) {
				best = t
			}
		}
	}
	if best != "" {
		return g.merges[best]
	}
	if g.defaultMerge != nil {
		return g.defaultMerge
	}
	return LastWriterWins[S]
}

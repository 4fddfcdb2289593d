// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var (
	tracer = otel.Tracer("bidsight.workflow")
	meter  = otel.Meter("bidsight.workflow")
)

// Engine drives sessions through the fixed pipeline topology.
//
// Description:
//
//	One engine instance serves many sessions. For each session it runs the
//	entry worker, dispatches the fan-out set concurrently through a bounded
//	pool, waits on the join barrier, runs the join worker, then pauses the
//	session at the review barrier with a persisted checkpoint. Resume
//	applies the external decision and finishes the conditional stage.
//
// Thread Safety:
//
//	Safe for concurrent use. Sessions never share state; merges are
//	serialized per session by the state store.
type Engine struct {
	topo        *Topology
	schema      Schema
	sessions    *SessionStore
	checkpoints CheckpointStore
	logger      *slog.Logger

	// limit bounds concurrent fan-out workers per session.
	limit int

	// checkpointEachWorker additionally persists after every worker
	// completion, trading write volume for recovery granularity.
	checkpointEachWorker bool

	// Metrics (initialized lazily)
	metricsOnce       sync.Once
	workerLatency     metric.Float64Histogram
	workerSoftFails   metric.Int64Counter
	sessionsStarted   metric.Int64Counter
	sessionsCompleted metric.Int64Counter
	activeWorkers     metric.Int64UpDownCounter
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMaxConcurrency bounds the fan-out worker pool. Zero or negative
// means one goroutine per sibling.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) { e.limit = n }
}

// WithCheckpointStore sets the checkpoint persistence backend.
func WithCheckpointStore(cs CheckpointStore) Option {
	return func(e *Engine) { e.checkpoints = cs }
}

// WithSessionStore injects the session registry.
func WithSessionStore(s *SessionStore) Option {
	return func(e *Engine) { e.sessions = s }
}

// WithCheckpointEveryWorker persists a checkpoint after each worker
// completion in addition to the review barrier.
func WithCheckpointEveryWorker(enabled bool) Option {
	return func(e *Engine) { e.checkpointEachWorker = enabled }
}

// NewEngine creates an engine for a topology and state schema.
//
// Inputs:
//
//	topo - The pipeline topology. Must not be nil.
//	schema - Reducer registry covering every field the graph writes,
//	         including the decision field (which must use overwrite).
//	opts - Optional configuration.
//
// Outputs:
//
//	*Engine - The configured engine.
//	error - Non-nil if the topology or schema is invalid.
func NewEngine(topo *Topology, schema Schema, opts ...Option) (*Engine, error) {
	if topo == nil {
		return nil, fmt.Errorf("%w: topology must not be nil", ErrInvalidInput)
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	r, ok := schema[topo.decisionField]
	if !ok {
		return nil, fmt.Errorf("%w: decision field %q is not declared in the schema", ErrInvalidInput, topo.decisionField)
	}
	if r != ReducerOverwrite {
		return nil, fmt.Errorf("%w: decision field %q must use the overwrite reducer, got %q", ErrInvalidInput, topo.decisionField, r)
	}

	e := &Engine{
		topo:   topo,
		schema: schema,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.sessions == nil {
		e.sessions = NewSessionStore()
	}
	if e.checkpoints == nil {
		e.checkpoints = NewMemoryCheckpointStore()
	}
	if e.limit <= 0 {
		e.limit = len(topo.fanout)
	}
	return e, nil
}

// initMetrics lazily initializes meters. Failures degrade observability
// but never execution.
func (e *Engine) initMetrics() {
	e.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		e.workerLatency, err = meter.Float64Histogram("pipeline_worker_duration_seconds",
			metric.WithDescription("Time spent executing each pipeline worker"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "worker_latency: "+err.Error())
		}

		e.workerSoftFails, err = meter.Int64Counter("pipeline_worker_soft_failures_total",
			metric.WithDescription("Number of worker invocations absorbed as degraded results"),
		)
		if err != nil {
			initErrors = append(initErrors, "worker_soft_failures: "+err.Error())
		}

		e.sessionsStarted, err = meter.Int64Counter("pipeline_sessions_started_total",
			metric.WithDescription("Number of pipeline sessions started"),
		)
		if err != nil {
			initErrors = append(initErrors, "sessions_started: "+err.Error())
		}

		e.sessionsCompleted, err = meter.Int64Counter("pipeline_sessions_completed_total",
			metric.WithDescription("Number of pipeline sessions completed"),
		)
		if err != nil {
			initErrors = append(initErrors, "sessions_completed: "+err.Error())
		}

		e.activeWorkers, err = meter.Int64UpDownCounter("pipeline_active_workers",
			metric.WithDescription("Number of currently executing workers"),
		)
		if err != nil {
			initErrors = append(initErrors, "active_workers: "+err.Error())
		}

		if len(initErrors) > 0 {
			e.logger.Error("failed to initialize some pipeline metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// CreateSession registers a new session with a validated initial state.
//
// Inputs:
//
//	id - Session identifier. Empty generates a fresh UUID.
//	initial - Initial state; every field must be declared in the schema.
//
// Outputs:
//
//	*Session - The registered session, in the running status at start.
//	error - Non-nil if the initial state is malformed or the id is taken.
func (e *Engine) CreateSession(id string, initial State) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	store, err := newStateStore(e.schema, initial)
	if err != nil {
		return nil, err
	}
	sess := newSession(id, store)
	for _, w := range e.topo.Workers() {
		sess.setWorkerState(w.Name(), WorkerPending)
	}
	if err := e.sessions.Put(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Session returns a session by id, rehydrating from the checkpoint
// store when it is not in the registry. A session with no registry
// entry and no checkpoint yields ErrSessionNotFound.
func (e *Engine) Session(ctx context.Context, id string) (*Session, error) {
	return e.lookup(ctx, id)
}

// lookup resolves a session, falling back to the checkpoint store so
// the read paths keep working across process restarts, not just Resume.
func (e *Engine) lookup(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := e.sessions.Get(sessionID)
	if !errors.Is(err, ErrSessionNotFound) {
		return sess, err
	}
	sess, err = e.rehydrate(ctx, sessionID)
	switch {
	case errors.Is(err, ErrSessionExists):
		// Lost a rehydration race; the winner's session is registered.
		return e.sessions.Get(sessionID)
	case errors.Is(err, ErrCheckpointNotFound):
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return sess, err
}

// Run executes the graph from the entry worker to the review barrier.
//
// Description:
//
//	Runs the entry worker, then every fan-out sibling concurrently, then —
//	strictly after all siblings are done, soft failures included — the
//	join worker. The session then transitions to interrupted and a
//	checkpoint is persisted. Worker failures are absorbed as degraded
//	results; only engine-level faults (undeclared field, checkpoint I/O)
//	fail the session.
//
// Inputs:
//
//	ctx - Context for the whole run. Must not be nil.
//	sessionID - A session created via CreateSession, not yet run.
//
// Outputs:
//
//	error - Non-nil on engine-level failure; the session is marked failed.
func (e *Engine) Run(ctx context.Context, sessionID string) error {
	if ctx == nil {
		return ErrNilContext
	}
	sess, err := e.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	if sess.Status() != StatusRunning || sess.Position() != PositionStart {
		return fmt.Errorf("%w: session %s is not at the start position", ErrInvalidInput, sessionID)
	}

	e.initMetrics()

	ctx, span := tracer.Start(ctx, "workflow.Run",
		trace.WithAttributes(
			attribute.String("pipeline.topology", e.topo.name),
			attribute.String("pipeline.session_id", sess.ID),
			attribute.Int("pipeline.fanout", len(e.topo.fanout)),
		),
	)
	defer span.End()

	start := time.Now()
	if e.sessionsStarted != nil {
		e.sessionsStarted.Add(ctx, 1)
	}
	e.logger.Info("pipeline started",
		slog.String("topology", e.topo.name),
		slog.String("session_id", sess.ID),
		slog.Int("workers", len(e.topo.fanout)+3),
	)

	// Entry runs alone. Even a degraded entry result proceeds to fan-out:
	// fail-soft propagates through the whole graph.
	if err := e.runWorker(ctx, sess, e.topo.entry); err != nil {
		return e.failSession(ctx, span, sess, err)
	}

	// Every sibling becomes ready together once the entry merge lands.
	names := make([]string, len(e.topo.fanout))
	for i, w := range e.topo.fanout {
		names[i] = w.Name()
	}
	sess.markReady(names...)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for _, w := range e.topo.fanout {
		g.Go(func() error {
			return e.runWorker(gctx, sess, w)
		})
	}
	// The join barrier: Wait returns only after every sibling is done.
	if err := g.Wait(); err != nil {
		return e.failSession(ctx, span, sess, err)
	}

	sess.markReady(e.topo.join.Name())
	if err := e.runWorker(ctx, sess, e.topo.join); err != nil {
		return e.failSession(ctx, span, sess, err)
	}

	// The sole designated interrupt point.
	sess.setStatus(StatusInterrupted, PositionReviewBarrier)
	sess.log.Append(newEvent(pipelineSource, "Analysis complete, awaiting review", PhaseComplete))
	if err := e.persist(ctx, sess); err != nil {
		return e.failSession(ctx, span, sess, fmt.Errorf("persist checkpoint: %w", err))
	}

	span.SetStatus(codes.Ok, "")
	e.logger.Info("pipeline interrupted at review barrier",
		slog.String("session_id", sess.ID),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// Resume continues a session paused at the review barrier.
//
// Description:
//
//	Applies the external boolean decision to state, evaluates the
//	conditional edge (true runs the optional worker, false goes straight
//	to completion), closes the progress feed with its terminal marker and
//	persists the final checkpoint. If the session is not in memory it is
//	rehydrated from its checkpoint, so resume works across process
//	restarts. A session that never reached the barrier — or that already
//	completed — is rejected with ErrNotInterrupted and left unchanged.
//
// Inputs:
//
//	ctx - Context for the resumed stage. Must not be nil.
//	sessionID - The paused session.
//	decision - The external decision routed through the conditional edge.
//
// Outputs:
//
//	State - Final state snapshot.
//	error - ErrNotInterrupted, ErrSessionNotFound, or an engine fault.
func (e *Engine) Resume(ctx context.Context, sessionID string, decision bool) (State, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	e.initMetrics()

	sess, err := e.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status() != StatusInterrupted || sess.Position() != PositionReviewBarrier {
		return nil, fmt.Errorf("%w: session %s is %s", ErrNotInterrupted, sessionID, sess.Status())
	}

	ctx, span := tracer.Start(ctx, "workflow.Resume",
		trace.WithAttributes(
			attribute.String("pipeline.session_id", sess.ID),
			attribute.Bool("pipeline.decision", decision),
		),
	)
	defer span.End()

	e.logger.Info("pipeline resuming",
		slog.String("session_id", sess.ID),
		slog.Bool("decision", decision),
	)

	sess.setStatus(StatusRunning, PositionReviewBarrier)
	if err := sess.store.Merge(Update{e.topo.decisionField: decision}); err != nil {
		return nil, e.failSession(ctx, span, sess, fmt.Errorf("apply decision: %w", err))
	}

	if decision {
		sess.markReady(e.topo.optional.Name())
		if err := e.runWorker(ctx, sess, e.topo.optional); err != nil {
			return nil, e.failSession(ctx, span, sess, err)
		}
	}

	sess.setStatus(StatusCompleted, PositionDone)
	sess.log.Close("Session completed")
	if err := e.persist(ctx, sess); err != nil {
		return nil, e.failSession(ctx, span, sess, fmt.Errorf("persist final checkpoint: %w", err))
	}
	if e.sessionsCompleted != nil {
		e.sessionsCompleted.Add(ctx, 1)
	}
	span.SetStatus(codes.Ok, "")
	e.logger.Info("pipeline completed", slog.String("session_id", sess.ID))
	return sess.State(), nil
}

// Events returns progress events after the cursor plus the completion
// indicator. The consumer owns its cursor and polling cadence. Like
// Session, this rehydrates checkpointed sessions, so a consumer can
// replay its cursor after a process restart.
func (e *Engine) Events(ctx context.Context, sessionID string, after int) ([]Event, bool, error) {
	sess, err := e.lookup(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	events, closed := sess.log.Since(after)
	return events, closed, nil
}

// WaitEvents blocks until events beyond the cursor exist, the feed
// closes, or ctx is done. Timeouts are the consumer's: pass a deadline
// context and handle ctx.Err.
func (e *Engine) WaitEvents(ctx context.Context, sessionID string, after int) ([]Event, bool, error) {
	sess, err := e.lookup(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	return sess.log.Wait(ctx, after)
}

// EvictSession removes a session from the registry and deletes its
// checkpoint. Purely a retention concern.
func (e *Engine) EvictSession(ctx context.Context, sessionID string) error {
	if ctx == nil {
		return ErrNilContext
	}
	e.sessions.Evict(sessionID)
	return e.checkpoints.Delete(ctx, sessionID)
}

// runWorker invokes one worker with progress events and fail-soft
// semantics. The returned error is engine-level only (merge fault);
// worker failures surface as degraded results, never as errors.
func (e *Engine) runWorker(ctx context.Context, sess *Session, w Worker) error {
	ctx, span := tracer.Start(ctx, w.Name(),
		trace.WithAttributes(
			attribute.String("pipeline.worker", w.Name()),
			attribute.String("pipeline.session_id", sess.ID),
		),
	)
	defer span.End()

	if e.activeWorkers != nil {
		e.activeWorkers.Add(ctx, 1)
		defer e.activeWorkers.Add(ctx, -1)
	}

	sess.setWorkerState(w.Name(), WorkerRunning)
	// The active event precedes invocation so observers see work start
	// before it finishes, even for long-running workers.
	sess.log.Append(newEvent(w.Title(), w.StartMessage(), PhaseActive))

	e.logger.Debug("worker starting",
		slog.String("worker", w.Name()),
		slog.String("session_id", sess.ID),
	)

	start := time.Now()
	res := e.invoke(ctx, w, sess.store.Snapshot())
	duration := time.Since(start)

	if e.workerLatency != nil {
		e.workerLatency.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.String("worker", w.Name())),
		)
	}

	if res.Status == StatusDegraded {
		if e.workerSoftFails != nil {
			e.workerSoftFails.Add(ctx, 1,
				metric.WithAttributes(attribute.String("worker", w.Name())),
			)
		}
		if res.Err != nil {
			span.RecordError(res.Err)
		}
		span.SetStatus(codes.Error, "degraded")
		e.logger.Warn("worker degraded",
			slog.String("worker", w.Name()),
			slog.Duration("duration", duration),
			slog.Any("error", res.Err),
		)
	} else {
		span.SetStatus(codes.Ok, "")
		e.logger.Info("worker completed",
			slog.String("worker", w.Name()),
			slog.Duration("duration", duration),
		)
	}

	if len(res.Update) > 0 {
		if err := sess.store.Merge(res.Update); err != nil {
			sess.setWorkerState(w.Name(), WorkerDone)
			span.RecordError(err)
			return NewWorkerError(w.Name(), err)
		}
	}

	sess.log.Append(newEvent(w.Title(), res.Message, PhaseComplete))
	sess.setWorkerState(w.Name(), WorkerDone)

	if e.checkpointEachWorker {
		if err := e.persist(ctx, sess); err != nil {
			// Per-worker checkpoints are a recovery-granularity tunable;
			// the barrier checkpoint remains the correctness requirement.
			e.logger.Warn("per-worker checkpoint failed",
				slog.String("worker", w.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// invoke calls the worker against a snapshot, converting panics and
// malformed results into degraded results.
func (e *Engine) invoke(ctx context.Context, w Worker, snap State) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Degraded(nil, fmt.Errorf("worker panic: %v", r))
		}
	}()
	res = w.Run(ctx, snap)
	if res.Status != StatusSuccess && res.Status != StatusDegraded {
		res = Degraded(res.Update, fmt.Errorf("worker returned no result status"))
	}
	if res.Message == "" {
		res.Message = "Done"
	}
	return res
}

// persist captures and stores a checkpoint, replacing the prior one.
func (e *Engine) persist(ctx context.Context, sess *Session) error {
	events, closed := sess.log.Since(0)
	snap := &Snapshot{
		SessionID: sess.ID,
		Topology:  e.topo.name,
		State:     sess.store.Snapshot(),
		Position:  sess.Position(),
		Status:    sess.Status(),
		Events:    events,
		LogClosed: closed,
	}
	if err := snap.Seal(); err != nil {
		return err
	}
	return e.checkpoints.Persist(ctx, snap)
}

// rehydrate rebuilds an in-memory session from its checkpoint.
func (e *Engine) rehydrate(ctx context.Context, sessionID string) (*Session, error) {
	snap, err := e.checkpoints.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if snap.Topology != e.topo.name {
		return nil, fmt.Errorf("%w: checkpoint is for topology %q, engine has %q",
			ErrInvalidInput, snap.Topology, e.topo.name)
	}
	store, err := newStateStore(e.schema, snap.State)
	if err != nil {
		return nil, err
	}
	sess := newSession(sessionID, store)
	sess.log.restore(snap.Events, snap.LogClosed)
	sess.setStatus(snap.Status, snap.Position)
	if snap.Position == PositionReviewBarrier || snap.Position == PositionDone {
		// Everything before the barrier has already run.
		sess.setWorkerState(e.topo.entry.Name(), WorkerDone)
		for _, w := range e.topo.fanout {
			sess.setWorkerState(w.Name(), WorkerDone)
		}
		sess.setWorkerState(e.topo.join.Name(), WorkerDone)
	}
	if err := e.sessions.Put(sess); err != nil {
		return nil, err
	}
	e.logger.Info("session rehydrated from checkpoint",
		slog.String("session_id", sessionID),
		slog.String("position", string(snap.Position)),
		slog.Int("events", len(snap.Events)),
	)
	return sess, nil
}

// failSession marks the session failed, closes its feed and persists a
// best-effort checkpoint. Returns the wrapped engine-level error.
func (e *Engine) failSession(ctx context.Context, span trace.Span, sess *Session, cause error) error {
	sess.setFailed(cause.Error())
	sess.log.Close("Session failed: " + cause.Error())
	if perr := e.persist(ctx, sess); perr != nil {
		e.logger.Error("failed to persist failure checkpoint",
			slog.String("session_id", sess.ID),
			slog.String("error", perr.Error()),
		)
	}
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	e.logger.Error("pipeline failed",
		slog.String("session_id", sess.ID),
		slog.String("error", cause.Error()),
	)
	return fmt.Errorf("session %s: %w", sess.ID, cause)
}

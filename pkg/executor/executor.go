package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ahouse2/co-counsel-nexus/internal/observability"
	"github.com/ahouse2/co-counsel-nexus/internal/tracing"
	"github.com/ahouse2/co-counsel-nexus/pkg/orchestrator"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// CodeCircuitOpen marks a call rejected by an open circuit
	CodeCircuitOpen = "circuit_open"
	// CodeUnexpected marks a failure that was not a WorkflowError
	CodeUnexpected = "unexpected_error"
)

// Config holds retry and circuit breaker settings
type Config struct {
	MaxAttempts      int
	BaseBackoff      time.Duration
	MaxBackoff       time.Duration
	FailureThreshold int
	Cooldown         time.Duration
}

// DefaultConfig returns the settings used when none are configured
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		BaseBackoff:      200 * time.Millisecond,
		MaxBackoff:       2 * time.Second,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// Executor implements orchestrator.ComponentExecutor
type Executor struct {
	cfg      Config
	mu       sync.Mutex
	breakers map[string]*breaker
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	logger   zerolog.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// WithSleeper overrides how backoff waits are performed
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		e.sleep = sleep
	}
}

// WithLogger sets the base logger
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// New creates an Executor. Non-positive settings fall back to DefaultConfig.
func New(cfg Config, opts ...Option) *Executor {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseBackoff < 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}

	e := &Executor{
		cfg:      cfg,
		breakers: make(map[string]*breaker),
		now:      time.Now,
		sleep:    sleepContext,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs op with retries. See the package documentation for the
// failure rules.
func (e *Executor) Execute(
	ctx context.Context,
	component string,
	op orchestrator.Operation,
	allowPartial bool,
	partial orchestrator.PartialFactory,
) (*orchestrator.ToolInvocation, error) {
	ctx, span := tracing.StartSpan(ctx, "cocounsel.executor", "executor.execute",
		attribute.String("component", component),
		attribute.Bool("allow_partial", allowPartial),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, e.logger).With().Str("component", component).Logger()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e.State(component) == StateOpen {
		observability.RecordExecutorAttempt(component, "rejected")
		werr := orchestrator.WorkflowError{
			Code:    CodeCircuitOpen,
			Message: fmt.Sprintf("circuit open for %s", component),
		}
		logger.Warn().Msg("Circuit open, rejecting call")
		return e.settle(component, werr, allowPartial, partial, false)
	}

	var last orchestrator.WorkflowError
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		inv, err := op(ctx)
		if err == nil {
			if inv == nil {
				tracing.FailSpan(span, orchestrator.ErrNilInvocation)
				return nil, fmt.Errorf("%w: component %s", orchestrator.ErrNilInvocation, component)
			}
			e.recordSuccess(component)
			observability.RecordExecutorAttempt(component, "success")
			span.SetAttributes(attribute.Int("attempts", attempt))
			return inv, nil
		}

		if errors.Is(err, orchestrator.ErrNilInvocation) {
			tracing.FailSpan(span, err)
			return nil, err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			tracing.FailSpan(span, err)
			return nil, err
		}

		werr, ok := orchestrator.AsWorkflowError(err)
		if !ok {
			werr = orchestrator.WorkflowError{Code: CodeUnexpected, Message: err.Error()}
		}
		werr.Attempt = attempt
		last = werr
		observability.RecordExecutorAttempt(component, "failure")

		logger.Debug().
			Str("code", werr.Code).
			Bool("retryable", werr.Retryable).
			Int("attempt", attempt).
			Msg("Component attempt failed")

		if !werr.Retryable || attempt == e.cfg.MaxAttempts {
			break
		}
		if err := e.sleep(ctx, e.backoff(attempt)); err != nil {
			tracing.FailSpan(span, err)
			return nil, err
		}
	}

	opened := e.recordFailure(component)
	if opened {
		logger.Warn().Str("code", last.Code).Dur("cooldown", e.cfg.Cooldown).Msg("Circuit opened")
	}
	tracing.FailSpan(span, last)
	return e.settle(component, last, allowPartial, partial, opened)
}

// settle converts a final failure into a partial result, an abort or an exception
func (e *Executor) settle(
	component string,
	werr orchestrator.WorkflowError,
	allowPartial bool,
	partial orchestrator.PartialFactory,
	opened bool,
) (*orchestrator.ToolInvocation, error) {
	if allowPartial && partial != nil {
		inv := partial(werr)
		if inv == nil {
			return nil, fmt.Errorf("%w: partial factory for %s", orchestrator.ErrNilInvocation, component)
		}
		observability.RecordExecutorAttempt(component, "partial")
		return inv, nil
	}
	if !werr.Retryable || opened {
		return nil, &orchestrator.WorkflowAbort{Component: component, Err: werr}
	}
	return nil, &orchestrator.WorkflowException{Component: component, Err: werr}
}

// backoff returns base * 2^(attempt-1), capped at MaxBackoff
func (e *Executor) backoff(attempt int) time.Duration {
	d := e.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= e.cfg.MaxBackoff {
			return e.cfg.MaxBackoff
		}
	}
	return min(d, e.cfg.MaxBackoff)
}

func (e *Executor) breakerFor(component string) *breaker {
	b, ok := e.breakers[component]
	if !ok {
		b = &breaker{threshold: e.cfg.FailureThreshold, cooldown: e.cfg.Cooldown}
		e.breakers[component] = b
	}
	return b
}

// State reports a component's circuit state
func (e *Executor) State(component string) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.breakerFor(component).state(e.now())
}

// Reset closes a component's circuit
func (e *Executor) Reset(component string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.breakerFor(component).recordSuccess()
	observability.SetCircuitOpen(component, false)
}

func (e *Executor) recordSuccess(component string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := e.breakerFor(component)
	if !b.openUntil.IsZero() {
		observability.SetCircuitOpen(component, false)
	}
	b.recordSuccess()
}

func (e *Executor) recordFailure(component string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	opened := e.breakerFor(component).recordFailure(e.now())
	if opened {
		observability.SetCircuitOpen(component, true)
	}
	return opened
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ orchestrator.ComponentExecutor = (*Executor)(nil)

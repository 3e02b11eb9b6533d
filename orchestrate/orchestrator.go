package orchestrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/agriroute/cache"
	"github.com/jonwraymond/agriroute/classify"
	"github.com/jonwraymond/agriroute/envelope"
	"github.com/jonwraymond/agriroute/observe"
	"github.com/jonwraymond/agriroute/resilience"
)

// Config configures the Orchestrator.
type Config struct {
	// Timeout bounds each invocation, including cache round-trips and rate
	// limiter waits.
	// Default: 10s
	Timeout time.Duration

	// MaxConcurrency caps concurrent invocations per query. Zero means one
	// goroutine per target category.
	// Default: 0
	MaxConcurrency int

	// FallbackCategories are dispatched when a classification has no
	// target categories.
	// Default: none
	FallbackCategories []string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMiddleware wraps every invocation with tracing, metrics and logging.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(o *Orchestrator) {
		if mw != nil {
			o.mw = mw
		}
	}
}

// WithRequestIDs sets the request ID generator. Default: uuid.NewString.
func WithRequestIDs(next func() string) Option {
	return func(o *Orchestrator) {
		if next != nil {
			o.newID = next
		}
	}
}

// Orchestrator dispatches classified queries to adapters.
//
// Contract:
//   - Concurrency: safe for concurrent use; many queries may be in flight.
//   - Context: cancellation reaches every invocation at its next suspension
//     point (cache round-trip, limiter wait, upstream call).
//   - Errors: Dispatch and Handle never fail; errors become envelope results.
type Orchestrator struct {
	classifier *classify.Classifier
	registry   *Registry
	config     Config
	logger     *zap.Logger
	mw         *observe.Middleware
	newID      func() string
}

// New creates an Orchestrator. classifier may be nil when only Dispatch is used.
func New(classifier *classify.Classifier, registry *Registry, config Config, opts ...Option) *Orchestrator {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	o := &Orchestrator{
		classifier: classifier,
		registry:   registry,
		config:     config,
		logger:     zap.NewNop(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.mw == nil {
		o.mw = observe.NewMiddleware(nil, nil, observe.NewLoggerFromZap(o.logger))
	}
	o.logger = o.logger.With(zap.String("component", "orchestrate"))
	return o
}

// Registry returns the orchestrator's registry.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Handle classifies req.Query and dispatches the result.
func (o *Orchestrator) Handle(ctx context.Context, req Request) *envelope.Envelope {
	var cls classify.Classification
	if o.classifier != nil {
		cls = o.classifier.Classify(req.Query)
	} else {
		cls = classify.Classification{Tier: classify.TierMedium, Verbosity: classify.VerbosityStandard}
	}
	return o.Dispatch(ctx, cls, req)
}

// Dispatch runs one invocation per target category and aggregates them.
func (o *Orchestrator) Dispatch(ctx context.Context, cls classify.Classification, req Request) *envelope.Envelope {
	env, _ := o.DispatchInvocations(ctx, cls, req)
	return env
}

// DispatchInvocations is Dispatch that also returns the invocations, in
// target order, for diagnostics.
func (o *Orchestrator) DispatchInvocations(ctx context.Context, cls classify.Classification, req Request) (*envelope.Envelope, []*Invocation) {
	if req.ID == "" {
		req.ID = o.newID()
	}
	categories := dedupe(cls.Categories)
	targets, fallback := categories, false
	if len(targets) == 0 && len(o.config.FallbackCategories) > 0 {
		targets, fallback = dedupe(o.config.FallbackCategories), true
	}

	ctx, span := o.mw.Tracer().StartDispatch(ctx, req.ID, string(cls.Tier))
	builder := envelope.NewBuilder(req.ID, envelope.Classification{
		Tier:       string(cls.Tier),
		Categories: categories,
		Verbosity:  string(cls.Verbosity),
		Fallback:   fallback,
	})

	invocations := make([]*Invocation, len(targets))
	for i, category := range targets {
		invocations[i] = newInvocation(category)
	}

	limit := len(targets)
	if o.config.MaxConcurrency > 0 && o.config.MaxConcurrency < limit {
		limit = o.config.MaxConcurrency
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, inv := range invocations {
		g.Go(func() error {
			o.run(ctx, inv, req, string(cls.Tier), builder)
			return nil
		})
	}
	_ = g.Wait()

	env := builder.Build()
	failures := len(env.Errors())
	var spanErr error
	if len(targets) > 0 && failures == len(targets) {
		spanErr = envelope.Upstream(nil, "all %d categories failed", failures)
	}
	o.mw.Tracer().EndSpan(span, spanErr)
	o.mw.Metrics().RecordDispatch(ctx, string(cls.Tier), len(targets), failures, time.Duration(env.DurationMs)*time.Millisecond)

	o.logger.Debug("dispatch completed",
		zap.String("request_id", req.ID),
		zap.String("tier", string(cls.Tier)),
		zap.Strings("categories", targets),
		zap.Bool("fallback", fallback),
		zap.Int("failures", failures),
		zap.Bool("success", env.Success))

	return env, invocations
}

// dedupe drops empty and repeated categories, keeping first-seen order.
func dedupe(src []string) []string {
	out := make([]string, 0, len(src))
	for _, c := range src {
		if c != "" && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// run executes one invocation and records its outcome. It never panics.
func (o *Orchestrator) run(ctx context.Context, inv *Invocation, req Request, tier string, b *envelope.Builder) {
	start := time.Now()
	meta := observe.InvocationMeta{Category: inv.Category, RequestID: req.ID, Tier: tier}

	value, cached, err := o.mw.Wrap(func(ctx context.Context, meta observe.InvocationMeta) (value json.RawMessage, cached bool, err error) {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("invocation panicked",
					zap.String("category", meta.Category),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
				value, cached = nil, false
				err = &envelope.Error{Type: envelope.TypeUnknown, Category: meta.Category, Message: fmt.Sprintf("panic: %v", r)}
			}
		}()
		return o.invoke(ctx, inv, req)
	})(ctx, meta)

	latency := time.Since(start)
	if err != nil {
		err = envelope.Normalize(inv.Category, err)
		inv.fail(err, latency)
		b.Failed(inv.Category, err, latency)
		return
	}
	inv.succeed(value, cached, latency)
	b.Succeeded(inv.Category, value, cached, latency)
}

// invoke goes through the cache, and through the guarded adapter on a miss.
func (o *Orchestrator) invoke(ctx context.Context, inv *Invocation, req Request) (json.RawMessage, bool, error) {
	rt, ok := o.registry.route(inv.Category)
	if !ok {
		return nil, false, envelope.Validationf("no adapter for category %q", inv.Category)
	}

	args := rt.args(req)
	inv.mu.Lock()
	inv.Args = args
	inv.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	value, hit, err := cache.GetOrCompute(ctx, o.registry.manager, inv.Category, args,
		func(ctx context.Context) (json.RawMessage, error) {
			inv.transition(StatusUpstreamCall)
			v, err := rt.call(ctx, args)
			if err != nil {
				return nil, err
			}
			if !json.Valid(v) {
				return nil, envelope.Upstream(nil, "adapter returned invalid JSON")
			}
			return v, nil
		})
	if err != nil {
		return nil, false, o.classifyErr(ctx, err)
	}
	if hit {
		inv.transition(StatusCacheHit)
	}
	return value, hit, nil
}

// classifyErr maps resilience and context errors into the envelope taxonomy.
// ctx is the invocation context: once its deadline has fired, any
// provider-side failure is reported as a timeout.
func (o *Orchestrator) classifyErr(ctx context.Context, err error) error {
	var typed *envelope.Error
	deadline := errors.Is(ctx.Err(), context.DeadlineExceeded)
	switch {
	case errors.As(err, &typed) && !(deadline && (typed.Type == envelope.TypeUpstream || typed.Type == envelope.TypeUnknown)):
		return err
	case deadline || errors.Is(err, context.DeadlineExceeded):
		return &envelope.Error{Type: envelope.TypeTimeout, Message: "invocation exceeded its deadline", Err: err}
	case errors.Is(err, resilience.ErrCircuitOpen):
		return envelope.Upstream(err, "provider unavailable: circuit open")
	case errors.Is(err, resilience.ErrBulkheadFull):
		return envelope.Upstream(err, "provider saturated")
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return &envelope.Error{Type: envelope.TypeUnknown, Message: "request cancelled", Err: err}
	case errors.Is(err, cache.ErrUnknownCategory):
		return &envelope.Error{Type: envelope.TypeValidation, Message: err.Error(), Err: err}
	}
	return err
}

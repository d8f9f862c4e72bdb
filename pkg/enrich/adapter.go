package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-formflow/pkg/clock"
	"github.com/goliatone/go-formflow/pkg/model"
)

const (
	defaultDebounce = 500 * time.Millisecond
	defaultTimeout  = 10 * time.Second
)

// ErrNotFound is returned by lookups that have no data for a key.
var ErrNotFound = errors.New("enrich: not found")

// Lookup resolves a normalised key into a partial set of field values. It must
// be idempotent and side-effect free; it may be slow or fail.
type Lookup interface {
	Lookup(ctx context.Context, key string) (model.Values, error)
}

// LookupFunc adapts a function into a Lookup.
type LookupFunc func(ctx context.Context, key string) (model.Values, error)

// Lookup delegates to the underlying function.
func (fn LookupFunc) Lookup(ctx context.Context, key string) (model.Values, error) {
	return fn(ctx, key)
}

// Sink receives lookup results. Merge must check current while holding
// whatever lock guards its state and drop the result when current reports
// false. It returns whether the result was applied.
type Sink interface {
	Merge(partial model.Values, policy MergePolicy, current func() bool) bool
}

// Config declares one enrichment.
type Config struct {
	Trigger   model.FieldName
	KeyLength int
	// Normalize strips formatting from the trigger value. Defaults to keeping
	// digits only.
	Normalize func(raw string) string
	Debounce  time.Duration
	Timeout   time.Duration
	Lookup    Lookup
	Policy    MergePolicy
	// Targets restricts which returned fields may be merged. Empty means
	// every returned field.
	Targets []model.FieldName
}

// Phase is the lifecycle stage reported in Status.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseScheduled Phase = "scheduled"
	PhaseInFlight  Phase = "in_flight"
	PhaseApplied   Phase = "applied"
	PhaseNotFound  Phase = "not_found"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
	PhaseRetired   Phase = "retired"
)

// Status is the non-fatal side channel describing the latest request.
type Status struct {
	Trigger model.FieldName
	Phase   Phase
	Key     string
	Token   uint64
	Err     error
}

// Busy reports whether a lookup is scheduled or in flight.
func (s Status) Busy() bool {
	return s.Phase == PhaseScheduled || s.Phase == PhaseInFlight
}

// Option customises an Adapter.
type Option func(*Adapter)

// WithClock injects the clock driving the debounce timer.
func WithClock(c clock.Clock) Option {
	return func(a *Adapter) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithStatusListener registers fn for status transitions that happen off the
// caller's goroutine (lookup started, applied, not found, failed). Changes
// caused directly by OnTriggerChange, Cancel and Close are returned to the
// caller instead.
func WithStatusListener(fn func(Status)) Option {
	return func(a *Adapter) {
		a.onStatus = fn
	}
}

// Adapter debounces one trigger field and merges lookup results into a Sink.
type Adapter struct {
	cfg      Config
	sink     Sink
	clock    clock.Clock
	logger   *slog.Logger
	onStatus func(Status)
	targets  map[model.FieldName]struct{}

	mu     sync.Mutex
	token  uint64
	timer  clock.Timer
	cancel context.CancelFunc
	status Status
	closed bool
}

// New validates cfg and constructs an Adapter.
func New(cfg Config, sink Sink, opts ...Option) (*Adapter, error) {
	if strings.TrimSpace(string(cfg.Trigger)) == "" {
		return nil, model.Misconfigured("enrich", "trigger field is required", nil)
	}
	if cfg.KeyLength <= 0 {
		return nil, model.Misconfigured("enrich", fmt.Sprintf("%s: key length must be positive", cfg.Trigger), nil)
	}
	if cfg.Lookup == nil {
		return nil, model.Misconfigured("enrich", fmt.Sprintf("%s: lookup is required", cfg.Trigger), nil)
	}
	if sink == nil {
		return nil, model.Misconfigured("enrich", fmt.Sprintf("%s: sink is required", cfg.Trigger), nil)
	}
	if cfg.Debounce < 0 || cfg.Timeout < 0 {
		return nil, model.Misconfigured("enrich", fmt.Sprintf("%s: negative durations are not allowed", cfg.Trigger), nil)
	}
	switch cfg.Policy {
	case "":
		cfg.Policy = FillEmptyOnly
	case FillEmptyOnly, Overwrite:
	default:
		return nil, model.Misconfigured("enrich", fmt.Sprintf("%s: unknown merge policy %q", cfg.Trigger, cfg.Policy), nil)
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Normalize == nil {
		cfg.Normalize = model.Digits
	}

	a := &Adapter{
		cfg:    cfg,
		sink:   sink,
		clock:  clock.Real(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		status: Status{Trigger: cfg.Trigger, Phase: PhaseIdle},
	}
	if len(cfg.Targets) > 0 {
		a.targets = make(map[model.FieldName]struct{}, len(cfg.Targets))
		for _, name := range cfg.Targets {
			if name == cfg.Trigger {
				return nil, model.Misconfigured("enrich", fmt.Sprintf("%s: trigger cannot be a merge target", cfg.Trigger), nil)
			}
			a.targets[name] = struct{}{}
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Trigger returns the watched field.
func (a *Adapter) Trigger() model.FieldName { return a.cfg.Trigger }

// Status returns the latest status.
func (a *Adapter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// OnTriggerChange reacts to a new trigger value. Any pending or in-flight
// lookup is cancelled; a new one is scheduled only when the normalised value
// has exactly the configured key length.
func (a *Adapter) OnTriggerChange(raw string) Status {
	key := a.cfg.Normalize(raw)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return a.status
	}
	superseded := a.stopLocked()
	if superseded {
		a.logger.Debug("enrich: superseded pending lookup", "trigger", a.cfg.Trigger, "token", a.token-1)
	}

	if len(key) != a.cfg.KeyLength {
		a.status = Status{Trigger: a.cfg.Trigger, Phase: PhaseIdle, Key: key, Token: a.token}
		return a.status
	}

	token := a.token
	a.status = Status{Trigger: a.cfg.Trigger, Phase: PhaseScheduled, Key: key, Token: token}
	a.timer = a.clock.AfterFunc(a.cfg.Debounce, func() { a.fire(token, key) })
	a.logger.Debug("enrich: lookup scheduled", "trigger", a.cfg.Trigger, "key", key, "token", token)
	return a.status
}

// Cancel drops any pending or in-flight lookup.
func (a *Adapter) Cancel() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return a.status
	}
	if a.stopLocked() {
		a.status = Status{Trigger: a.cfg.Trigger, Phase: PhaseCancelled, Key: a.status.Key, Token: a.token}
	}
	return a.status
}

// Close retires the adapter. Results still in flight are discarded and later
// trigger changes are ignored.
func (a *Adapter) Close() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return a.status
	}
	a.stopLocked()
	a.closed = true
	a.status = Status{Trigger: a.cfg.Trigger, Phase: PhaseRetired, Token: a.token}
	return a.status
}

// stopLocked stops the timer, cancels the in-flight request and invalidates
// the current token. It reports whether something was pending.
func (a *Adapter) stopLocked() bool {
	pending := a.status.Busy()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.token++
	return pending
}

func (a *Adapter) isCurrent(token uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.closed && a.token == token
}

func (a *Adapter) fire(token uint64, key string) {
	a.mu.Lock()
	if a.closed || a.token != token {
		a.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Timeout)
	a.timer = nil
	a.cancel = cancel
	a.status = Status{Trigger: a.cfg.Trigger, Phase: PhaseInFlight, Key: key, Token: token}
	started := a.status
	a.mu.Unlock()
	a.notify(started)

	values, err := a.cfg.Lookup.Lookup(ctx, key)
	cancel()

	current := func() bool { return a.isCurrent(token) }
	if err != nil {
		if !current() {
			a.logger.Debug("enrich: discarded stale failure", "trigger", a.cfg.Trigger, "key", key, "token", token)
			return
		}
		phase := PhaseFailed
		if errors.Is(err, ErrNotFound) {
			phase = PhaseNotFound
			a.logger.Debug("enrich: no data for key", "trigger", a.cfg.Trigger, "key", key)
		} else {
			a.logger.Warn("enrich: lookup failed", "trigger", a.cfg.Trigger, "key", key, "error", err)
		}
		a.settle(Status{Trigger: a.cfg.Trigger, Phase: phase, Key: key, Token: token, Err: err})
		return
	}

	if !a.sink.Merge(a.filter(values), a.cfg.Policy, current) {
		a.logger.Debug("enrich: discarded stale result", "trigger", a.cfg.Trigger, "key", key, "token", token)
		return
	}
	a.settle(Status{Trigger: a.cfg.Trigger, Phase: PhaseApplied, Key: key, Token: token})
}

func (a *Adapter) settle(status Status) {
	a.mu.Lock()
	if a.closed || a.token != status.Token {
		a.mu.Unlock()
		return
	}
	a.cancel = nil
	a.status = status
	a.mu.Unlock()
	a.notify(status)
}

func (a *Adapter) notify(status Status) {
	if a.onStatus != nil {
		a.onStatus(status)
	}
}

func (a *Adapter) filter(values model.Values) model.Values {
	out := make(model.Values, len(values))
	for name, value := range values {
		if name == a.cfg.Trigger {
			continue
		}
		if a.targets != nil {
			if _, ok := a.targets[name]; !ok {
				continue
			}
		}
		out[name] = value
	}
	return out
}

package actions

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/grafana/rbac-actions/debounce"
	"github.com/grafana/rbac-actions/types"
)

// Checker resolves which of the requested permissions the current user holds.
type Checker interface {
	// CheckUserHasPermissions returns the granted subset of permissions.
	// When passed is not nil it is used instead of the user's own permissions.
	CheckUserHasPermissions(ctx context.Context, permissions, passed []types.Permission) ([]types.Permission, error)
	// IsLoading reports whether the checker itself is still loading the user.
	IsLoading() bool
}

// Result is a snapshot of a Tracker.
type Result struct {
	AllowedActions AllowedActions
	IsLoading      bool
	// Err is the error returned by the last check, as is.
	Err         error
	Permissions []types.Permission
}

type TrackerOption func(*Tracker)

func WithLogger(logger log.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) TrackerOption {
	return func(t *Tracker) {
		t.tracer = tracer
	}
}

// WithPassedPermissions checks against the given permissions instead of the user's.
func WithPassedPermissions(passed []types.Permission) TrackerOption {
	return func(t *Tracker) {
		t.passed = passed
	}
}

func WithLocaleDebounce(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.debounceDelay = d
	}
}

func WithInitialLocale(locale string) TrackerOption {
	return func(t *Tracker) {
		t.locale = locale
	}
}

// WithWarner shares a warner between trackers, so deprecations are reported once for all of them.
func WithWarner(w *OnceWarner) TrackerOption {
	return func(t *Tracker) {
		t.warner = w
	}
}

// Tracker keeps the allowed actions of a set of permissions up to date.
// A check runs whenever the permissions or the settled locale change.
type Tracker struct {
	checker       Checker
	logger        log.Logger
	tracer        trace.Tracer
	warner        *OnceWarner
	passed        []types.Permission
	debounceDelay time.Duration
	debouncer     *debounce.Debouncer

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	permissions []types.Permission
	locale      string
	// inputs of the last check
	checkedPermissions []types.Permission
	checkedLocale      string
	checked            bool
	// generation of the last check, older completions are discarded
	generation  uint64
	cancelCheck context.CancelFunc
	loading     bool
	granted     []types.Permission
	err         error
	changed     chan struct{}
}

// NewTracker starts tracking the allowed actions of in, the first check is triggered right away.
func NewTracker(checker Checker, in Input, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		checker:       checker,
		logger:        log.NewJSONLogger(log.NewSyncWriter(os.Stdout)),
		tracer:        noop.Tracer{},
		debounceDelay: DefaultLocaleDebounce,
		changed:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.warner == nil {
		t.warner = NewOnceWarner(t.logger)
	}
	t.debouncer = debounce.New(t.debounceDelay)
	t.ctx, t.cancel = context.WithCancel(context.Background())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.permissions = in.Flatten(t.warner)
	t.triggerLocked()

	return t
}

// SetPermissions replaces the tracked permissions.
// A new check is only triggered when they differ from the last checked ones.
// It has no effect once the tracker is closed.
func (t *Tracker) SetPermissions(in Input) {
	permissions := in.Flatten(t.warner)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ctx.Err() != nil {
		return
	}
	t.permissions = permissions
	if t.shouldCheckLocked() {
		t.triggerLocked()
	}
}

// SetLocale updates the locale permissions are checked for once it stopped changing.
func (t *Tracker) SetLocale(locale string) {
	t.debouncer.Do(func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		if t.ctx.Err() != nil {
			return
		}
		t.locale = locale
		if t.shouldCheckLocked() {
			t.triggerLocked()
		}
	})
}

// State returns the current allowed actions.
func (t *Tracker) State() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

// Changed returns a channel closed on the next state change.
func (t *Tracker) Changed() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.changed
}

// Wait blocks until the running check, if any, completes.
func (t *Tracker) Wait(ctx context.Context) (Result, error) {
	for {
		t.mu.Lock()
		res := t.stateLocked()
		loading, changed := t.loading, t.changed
		t.mu.Unlock()

		if !loading {
			return res, nil
		}

		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-changed:
		}
	}
}

// Close cancels any running check and stops reacting to locale changes.
func (t *Tracker) Close() {
	t.debouncer.Stop()
	t.cancel()
}

func (t *Tracker) stateLocked() Result {
	return Result{
		AllowedActions: Shape(t.permissions, t.granted),
		IsLoading:      t.loading || t.checker.IsLoading(),
		Err:            t.err,
		Permissions:    types.ClonePermissions(t.permissions),
	}
}

func (t *Tracker) shouldCheckLocked() bool {
	if !t.checked {
		return true
	}
	if t.locale != t.checkedLocale {
		return true
	}
	return !cmp.Equal(t.permissions, t.checkedPermissions, cmpopts.EquateEmpty())
}

func (t *Tracker) triggerLocked() {
	if t.cancelCheck != nil {
		t.cancelCheck()
	}

	t.generation++
	t.checked = true
	t.checkedPermissions = types.ClonePermissions(t.permissions)
	t.checkedLocale = t.locale
	t.granted = nil
	t.err = nil
	t.loading = true

	ctx, cancel := context.WithCancel(types.WithLocale(t.ctx, t.locale))
	t.cancelCheck = cancel
	go t.check(ctx, t.generation, types.ClonePermissions(t.permissions), t.locale)

	t.notifyLocked()
}

func (t *Tracker) check(ctx context.Context, generation uint64, permissions []types.Permission, locale string) {
	ctx, span := t.tracer.Start(ctx, "Tracker.check")
	defer span.End()

	span.SetAttributes(attribute.Int("permissions", len(permissions)))
	span.SetAttributes(attribute.String("locale", locale))

	granted, err := t.checker.CheckUserHasPermissions(ctx, permissions, t.passed)
	if err != nil {
		span.RecordError(err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if generation != t.generation {
		_ = level.Debug(t.logger).Log("msg", "discarding outdated permission check", "generation", generation, "current", t.generation)
		return
	}

	t.loading = false
	if err != nil {
		_ = level.Error(t.logger).Log("msg", "permission check failed", "err", err)
		t.err = err
	} else {
		span.SetAttributes(attribute.Int("granted", len(granted)))
		t.granted = granted
	}
	t.notifyLocked()
}

func (t *Tracker) notifyLocked() {
	close(t.changed)
	t.changed = make(chan struct{})
}

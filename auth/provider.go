package auth

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/grafana/rbac-actions/types"
)

type ProviderOption func(*Provider)

func WithProviderLogger(logger log.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

func WithProviderTracer(tracer trace.Tracer) ProviderOption {
	return func(p *Provider) {
		p.tracer = tracer
	}
}

// Provider holds the permissions of the authenticated user and decides which of
// a set of requested permissions the user is granted.
// It implements actions.Checker.
type Provider struct {
	client Client
	logger log.Logger
	tracer trace.Tracer

	mu          sync.RWMutex
	permissions []types.Permission
	loading     bool
}

func NewProvider(client Client, opts ...ProviderOption) *Provider {
	p := &Provider{
		client: client,
		logger: log.NewJSONLogger(log.NewSyncWriter(os.Stdout)),
		tracer: noop.Tracer{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Refresh loads the permissions of the user. IsLoading reports true until it returns.
// On error the previously loaded permissions are kept.
func (p *Provider) Refresh(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "Provider.Refresh")
	defer span.End()

	p.setLoading(true)
	defer p.setLoading(false)

	perms, err := p.client.GetUserPermissions(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}

	p.mu.Lock()
	p.permissions = perms
	p.mu.Unlock()

	span.SetAttributes(attribute.Int("permissions", len(perms)))
	_ = level.Debug(p.logger).Log("msg", "loaded user permissions", "count", len(perms))
	return nil
}

// Reload drops the cached permissions before loading them again.
func (p *Provider) Reload(ctx context.Context) error {
	if err := p.client.Invalidate(ctx); err != nil {
		_ = level.Warn(p.logger).Log("msg", "could not invalidate cached permissions", "err", err)
	}
	return p.Refresh(ctx)
}

func (p *Provider) IsLoading() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loading
}

// Permissions returns the loaded permissions of the user.
func (p *Provider) Permissions() []types.Permission {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.permissions
}

// CheckUserHasPermissions returns the permissions matching the requested ones.
// Matches are looked up in passed, or in the user's permissions when passed is nil.
// A request without subject matches the action on any subject.
// When a match carries conditions, every match is evaluated by the server and only
// the ones it allows are returned.
func (p *Provider) CheckUserHasPermissions(ctx context.Context, permissions, passed []types.Permission) ([]types.Permission, error) {
	ctx, span := p.tracer.Start(ctx, "Provider.CheckUserHasPermissions")
	defer span.End()

	if len(permissions) == 0 {
		return nil, nil
	}

	source := passed
	if source == nil {
		source = p.Permissions()
	}

	matching := matchPermissions(permissions, source)
	span.SetAttributes(attribute.Int("requested", len(permissions)))
	span.SetAttributes(attribute.Int("matching", len(matching)))

	if !anyConditions(matching) {
		return matching, nil
	}

	allowed, err := p.client.CheckPermissions(ctx, matching)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(allowed) != len(matching) {
		return nil, fmt.Errorf("%w: expected %d results, got %d", ErrInvalidResponse, len(matching), len(allowed))
	}

	res := make([]types.Permission, 0, len(matching))
	for i, perm := range matching {
		if allowed[i] {
			res = append(res, perm)
		}
	}
	span.SetAttributes(attribute.Int("granted", len(res)))
	return res, nil
}

func (p *Provider) setLoading(loading bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = loading
}

// matchPermissions keeps the source permissions satisfying at least one request, in source order.
func matchPermissions(requested, source []types.Permission) []types.Permission {
	var res []types.Permission
	for _, s := range source {
		for _, r := range requested {
			if s.Satisfies(r.Action, r.Subject) {
				res = append(res, s)
				break
			}
		}
	}
	return res
}

func anyConditions(permissions []types.Permission) bool {
	for _, p := range permissions {
		if p.HasConditions() {
			return true
		}
	}
	return false
}

package auth

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	goquery "github.com/google/go-querystring/query"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"

	"github.com/grafana/rbac-actions/cache"
	"github.com/grafana/rbac-actions/types"
)

var _ Client = &ClientImpl{}

var (
	ErrMissingConfig    = errors.New("missing config")
	ErrInvalidQuery     = errors.New("invalid query")
	ErrInvalidToken     = errors.New("invalid token: cannot query server")
	ErrInvalidResponse  = errors.New("invalid response from server")
	ErrUnexpectedStatus = errors.New("unexpected response status")

	CacheExp = 5 * time.Minute

	permissionsPath = "/admin/users/me/permissions"
	checkPath       = "/admin/permissions/check"
)

// Client performs requests to the admin API on behalf of the authenticated user.
type Client interface {
	// GetUserPermissions returns every permission of the user.
	GetUserPermissions(ctx context.Context) ([]types.Permission, error)
	// CheckPermissions evaluates the conditions of permissions server side.
	// The answer is aligned with the request.
	CheckPermissions(ctx context.Context, permissions []types.Permission) ([]bool, error)
	// Invalidate drops the cached permissions of the user.
	Invalidate(ctx context.Context) error
}

// ClientOption allows setting custom parameters during construction.
type ClientOption func(*ClientImpl) error

// WithHTTPClient allows overriding the default Doer, which is
// automatically created using http.Client. This is useful for tests.
func WithHTTPClient(doer HTTPRequestDoer) ClientOption {
	return func(c *ClientImpl) error {
		c.client = doer
		return nil
	}
}

func WithCache(cache cache.Cache) ClientOption {
	return func(c *ClientImpl) error {
		c.cache = cache
		return nil
	}
}

func WithClientLogger(logger log.Logger) ClientOption {
	return func(c *ClientImpl) error {
		c.logger = logger
		return nil
	}
}

func WithClientTracer(tracer trace.Tracer) ClientOption {
	return func(c *ClientImpl) error {
		c.tracer = tracer
		return nil
	}
}

// WithRegisterer registers the client metrics.
func WithRegisterer(reg prometheus.Registerer) ClientOption {
	return func(c *ClientImpl) error {
		c.metrics = newClientMetrics(reg)
		return nil
	}
}

type ClientImpl struct {
	singlef singleflight.Group
	client  HTTPRequestDoer
	cache   cache.Cache
	cfg     ClientCfg
	logger  log.Logger
	tracer  trace.Tracer
	metrics *clientMetrics
}

func NewClient(cfg ClientCfg, opts ...ClientOption) (*ClientImpl, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: missing admin API url", ErrMissingConfig)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = CacheExp
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	client := &ClientImpl{
		singlef: singleflight.Group{},
		cfg:     cfg,
		logger:  log.NewJSONLogger(log.NewSyncWriter(os.Stdout)),
		tracer:  noop.Tracer{},
	}

	for _, opt := range opts {
		if err := opt(client); err != nil {
			_ = level.Error(client.logger).Log("msg", "error applying option", "err", err)
		}
	}

	if client.metrics == nil {
		client.metrics = newClientMetrics(nil)
	}

	if client.cache == nil {
		client.cache = cache.NewLocalCache(cache.Config{
			Expiry:          cfg.CacheTTL,
			CleanupInterval: time.Minute,
		})
	}

	// create httpClient, if not already present
	if client.client == nil {
		client.client = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   4 * time.Second,
					KeepAlive: 15 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				MaxIdleConns:          100,
				IdleConnTimeout:       30 * time.Second,
			},
			Timeout: cfg.Timeout,
		}
	}

	return client, nil
}

// permissionsCacheKey is scoped to the token, permissions belong to the user it authenticates.
func (c *ClientImpl) permissionsCacheKey() string {
	sum := sha256.Sum256([]byte(c.cfg.Token))
	return "permissions-" + hex.EncodeToString(sum[:8])
}

// GetUserPermissions implements Client.
func (c *ClientImpl) GetUserPermissions(ctx context.Context) ([]types.Permission, error) {
	ctx, span := c.tracer.Start(ctx, "ClientImpl.GetUserPermissions")
	defer span.End()

	key := c.permissionsCacheKey()

	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		_ = level.Warn(c.logger).Log("msg", "could not retrieve from cache", "err", err)
	}

	if ok {
		perms := []types.Permission{}
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&perms); err != nil {
			_ = level.Warn(c.logger).Log("msg", "could not decode data from cache", "err", err)
		} else {
			_ = level.Debug(c.logger).Log("msg", "retrieved permissions from cache", "key", key)
			c.metrics.cache.WithLabelValues("hit").Inc()
			span.SetAttributes(attribute.Bool("cached", true))
			return perms, nil
		}
	}
	c.metrics.cache.WithLabelValues("miss").Inc()

	res, err, _ := c.singlef.Do(key, func() (interface{}, error) {
		var perms []types.Permission
		if err := c.do(ctx, "permissions", http.MethodGet, c.cfg.URL+permissionsPath, nil, &perms); err != nil {
			return nil, err
		}
		return perms, nil
	})
	if err != nil {
		span.RecordError(err)
		_ = level.Error(c.logger).Log("msg", "error fetching user permissions", "err", err)
		return nil, err
	}

	perms := res.([]types.Permission)
	span.SetAttributes(attribute.Int("permissions", len(perms)))
	c.cacheNoFail(ctx, perms, key)

	return perms, nil
}

// CheckPermissions implements Client.
func (c *ClientImpl) CheckPermissions(ctx context.Context, permissions []types.Permission) ([]bool, error) {
	ctx, span := c.tracer.Start(ctx, "ClientImpl.CheckPermissions")
	defer span.End()

	if len(permissions) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, "at least one permission must be provided")
	}

	query := checkQuery{}
	if locale, ok := types.LocaleFrom(ctx); ok {
		query.Locale = locale
		span.SetAttributes(attribute.String("locale", locale))
	}
	v, err := goquery.Values(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuery, err)
	}

	url := c.cfg.URL + checkPath
	if encoded := v.Encode(); encoded != "" {
		url += "?" + encoded
	}

	body, err := json.Marshal(checkRequest{Permissions: toCheckItems(permissions)})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuery, err)
	}

	var res []bool
	if err := c.do(ctx, "check", http.MethodPost, url, bytes.NewReader(body), &res); err != nil {
		span.RecordError(err)
		_ = level.Error(c.logger).Log("msg", "error checking permissions", "err", err)
		return nil, err
	}

	if len(res) != len(permissions) {
		return nil, fmt.Errorf("%w: expected %d results, got %d", ErrInvalidResponse, len(permissions), len(res))
	}
	return res, nil
}

// Invalidate implements Client.
func (c *ClientImpl) Invalidate(ctx context.Context) error {
	return c.cache.Delete(ctx, c.permissionsCacheKey())
}

func (c *ClientImpl) do(ctx context.Context, endpoint, method, url string, body io.Reader, out any) error {
	start := time.Now()
	defer func() {
		c.metrics.duration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		c.metrics.requests.WithLabelValues(endpoint, "error").Inc()
		return err
	}
	defer res.Body.Close()

	c.metrics.requests.WithLabelValues(endpoint, strconv.Itoa(res.StatusCode)).Inc()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return ErrInvalidToken
	}

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s%s", ErrUnexpectedStatus, res.Status, apiErrorMessage(res.Body))
	}

	response := Response[json.RawMessage]{}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidResponse, err)
	}
	if response.Error != nil {
		return fmt.Errorf("%w: %s", ErrInvalidResponse, response.Error.Message)
	}
	if response.Data == nil {
		return fmt.Errorf("%w: %s", ErrInvalidResponse, "missing data")
	}
	if err := json.Unmarshal(*response.Data, out); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidResponse, err)
	}
	return nil
}

// apiErrorMessage extracts the message of an error response, if any.
func apiErrorMessage(body io.Reader) string {
	response := Response[json.RawMessage]{}
	if err := json.NewDecoder(body).Decode(&response); err != nil || response.Error == nil {
		return ""
	}
	return ": " + strings.TrimSpace(response.Error.Message)
}

func (c *ClientImpl) cacheNoFail(ctx context.Context, perms []types.Permission, key string) {
	buf := bytes.Buffer{}
	err := gob.NewEncoder(&buf).Encode(perms)
	if err != nil {
		_ = level.Warn(c.logger).Log("msg", "error encoding result for cache", "err", err)
		return
	}

	if err = c.cache.Set(ctx, key, buf.Bytes(), c.cfg.CacheTTL); err != nil {
		_ = level.Warn(c.logger).Log("msg", "error caching result", "key", key, "err", err)
	}
}

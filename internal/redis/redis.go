package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aiox-platform/redis-metrics/internal/config"
)

// DefaultRetireGrace is how long a client replaced by a resize keeps serving
// callers that fetched it before the swap.
const DefaultRetireGrace = time.Minute

// Handle is the shared, pooled connection to one Redis instance. The pointer
// stays stable for the lifetime of the Manager that built it, even when the
// underlying pool is rebuilt with a new size.
type Handle struct {
	mu      sync.RWMutex
	client  *redis.Client
	opts    redis.Options
	grace   time.Duration
	retired []*redis.Client
}

func newHandle(opts *redis.Options) *Handle {
	return &Handle{client: redis.NewClient(opts), opts: *opts, grace: DefaultRetireGrace}
}

// Client returns the current pooled client. It is safe for concurrent use.
func (h *Handle) Client() *redis.Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.client
}

// PoolSize reports the live connection ceiling.
func (h *Handle) PoolSize() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.opts.PoolSize
}

// resize swaps in a pool bounded by n. The previous client stays open for
// the grace period so commands already holding it can finish.
func (h *Handle) resize(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	opts := h.opts
	opts.PoolSize = n
	prev := h.client
	h.client = redis.NewClient(&opts)
	h.opts = opts
	h.retired = append(h.retired, prev)

	time.AfterFunc(h.grace, func() { _ = h.retire(prev) })
}

// retire closes c unless Close already did.
func (h *Handle) retire(c *redis.Client) error {
	h.mu.Lock()
	idx := slices.Index(h.retired, c)
	if idx >= 0 {
		h.retired = slices.Delete(h.retired, idx, idx+1)
	}
	h.mu.Unlock()

	if idx < 0 {
		return nil
	}
	return c.Close()
}

// Close closes the current client and any retired ones still draining.
func (h *Handle) Close() error {
	h.mu.Lock()
	clients := append([]*redis.Client{h.client}, h.retired...)
	h.retired = nil
	h.mu.Unlock()

	var errs []error
	for _, c := range clients {
		if err := c.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Manager turns a connection URL and a base64 CA certificate into a lazily
// built, cached Handle.
type Manager struct {
	url      string
	certPath string
	logger   *slog.Logger

	mu       sync.Mutex
	maxConns int
	handle   *Handle
	caPath   string
	build    func() (*Handle, error)
}

func NewManager(cfg config.RedisConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = config.DefaultMaxConnections
	}
	m := &Manager{
		url:      cfg.URL,
		certPath: cfg.CertPath,
		logger:   logger,
		maxConns: maxConns,
	}
	m.build = m.newHandle
	return m
}

// Handle returns the cached handle, building it on first use. It returns nil
// when no URL is configured or the build fails; a later call retries.
func (m *Manager) Handle() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		return m.handle
	}
	if m.url == "" {
		m.logger.Debug("No Redis URL supplied")
		return nil
	}

	h, err := m.build()
	if err != nil {
		d, _ := ParseURL(m.url)
		m.logger.Error("Error connecting to Redis Instance",
			"data", fmt.Sprintf("host: %s, port: %d, db: %d", d.Host, d.Port, d.DB),
			"error", err,
		)
		return nil
	}
	m.handle = h
	return h
}

// newHandle must be called with m.mu held.
func (m *Manager) newHandle() (*Handle, error) {
	d, err := ParseURL(m.url)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("Redis client created", "data", map[string]any{
		"host":      d.Host,
		"port":      d.Port,
		"db":        d.DB,
		"cert_path": m.certPath,
		"username":  d.Username,
	})

	opts, err := redis.ParseURL(m.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	caPath, err := materializeCA(m.certPath)
	if err != nil {
		return nil, err
	}
	tlsCfg, err := tlsConfigFromCA(caPath, d.Host)
	if err != nil {
		os.Remove(caPath)
		return nil, err
	}

	opts.TLSConfig = tlsCfg
	opts.PoolSize = m.maxConns
	m.caPath = caPath
	return newHandle(opts), nil
}

// Ping round-trips a PING through the cached handle.
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.Lock()
	h := m.handle
	m.mu.Unlock()

	if h == nil {
		return fmt.Errorf("%w: no connection handle", ErrConnection)
	}
	if err := h.Client().Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// IsConnected reports whether a PING through the handle succeeds.
func (m *Manager) IsConnected(ctx context.Context) bool {
	return m.Ping(ctx) == nil
}

// Close disconnects the pool, forgets the handle and removes the temporary
// CA file. A later Handle call builds a new pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	h, caPath := m.handle, m.caPath
	m.handle, m.caPath = nil, ""
	m.mu.Unlock()

	var errs []error
	if h != nil {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis pool: %w", err))
		}
	}
	if caPath != "" {
		if err := os.Remove(caPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("%w: removing temp certificate: %v", ErrIO, err))
		}
	}
	return errors.Join(errs...)
}

// UpdateMaxConnections changes the pool ceiling. Non-positive values are
// rejected with a warning.
func (m *Manager) UpdateMaxConnections(n int) {
	if n <= 0 {
		m.logger.Warn("Invalid max_connections value", "data", n)
		return
	}

	m.mu.Lock()
	m.maxConns = n
	h := m.handle
	m.mu.Unlock()

	if h != nil {
		h.resize(n)
	}
}

func (m *Manager) MaxConnections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxConns
}

func (m *Manager) String() string {
	return fmt.Sprintf("Manager(url=%q, cert_path=%q, max_connections=%d)",
		redactURL(m.url), m.certPath, m.MaxConnections())
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Redacted()
}

package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/strtab"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/resilience"
	"github.com/fsnotify/fsnotify"
)

const defaultPollInterval = 30 * time.Second

// ReloadFunc observes every successful load.
type ReloadFunc func(stats catalog.Stats, took time.Duration)

type Options struct {
	Catalog      catalog.Options
	Retry        resilience.RetryConfig
	Timeout      time.Duration
	Debounce     time.Duration
	PollInterval time.Duration
	Metrics      *metrics.Metrics
	OnReload     ReloadFunc
}

// Manager owns the current catalog. Readers call Current and get an
// immutable snapshot; loads build a new catalog aside and swap it in whole.
type Manager struct {
	source  Source
	opts    Options
	current atomic.Pointer[catalog.Catalog]
	gate    *Gate
	loadMu  sync.Mutex
	version atomic.Value
	logger  *slog.Logger
}

func NewManager(source Source, opts Options) *Manager {
	if opts.Debounce <= 0 {
		opts.Debounce = 250 * time.Millisecond
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	return &Manager{
		source: source,
		opts:   opts,
		gate:   NewGate(),
		logger: slog.Default().With("component", "catalog-loader", "source", source.Name()),
	}
}

// Current returns the live catalog, or nil before the first successful load.
func (m *Manager) Current() *catalog.Catalog {
	return m.current.Load()
}

// Gate resolves with the outcome of the first load. A failed first load
// resolves it with an error for good; Wait and Ready also consult Current so
// a later successful reload still serves.
func (m *Manager) Gate() *Gate {
	return m.gate
}

// Ready reports whether a catalog is being served.
func (m *Manager) Ready() bool {
	return m.Current() != nil
}

// HealthCheck reports down until the first load settles and while no catalog
// is served, degraded when namespaces were omitted.
func (m *Manager) HealthCheck(ctx context.Context) health.ComponentHealth {
	select {
	case <-m.gate.Done():
	default:
		return health.ComponentHealth{Status: health.StatusDown, Message: "initial catalog load in progress"}
	}
	cat, err := m.Wait(ctx)
	if err != nil {
		return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
	}
	s := cat.Stats()
	msg := fmt.Sprintf("%d namespaces, %d items", s.Namespaces, s.Items)
	if s.Omitted > 0 {
		return health.ComponentHealth{Status: health.StatusDegraded, Message: fmt.Sprintf("%s, %d omitted", msg, s.Omitted)}
	}
	return health.ComponentHealth{Status: health.StatusUp, Message: msg}
}

// Wait returns the live catalog, blocking until the first load settles or ctx
// is done. Every failure wraps ErrCatalogNotReady.
func (m *Manager) Wait(ctx context.Context) (*catalog.Catalog, error) {
	if cat := m.Current(); cat != nil {
		return cat, nil
	}
	_, err := m.gate.Wait(ctx)
	if cat := m.Current(); cat != nil {
		return cat, nil
	}
	if err == nil {
		return nil, apperrors.ErrCatalogNotReady
	}
	return nil, fmt.Errorf("%w: %w", apperrors.ErrCatalogNotReady, err)
}

// Load fetches and builds a catalog and makes it current. Fetch failures are
// retried; a blob that does not parse is not. A failed or cancelled load
// leaves the previous catalog in place. The first load that completes,
// successfully or not, resolves the gate.
func (m *Manager) Load(ctx context.Context) (*catalog.Catalog, error) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	if m.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	version := m.sourceVersion(ctx)
	var cat *catalog.Catalog
	err := resilience.Retry(ctx, "catalog-load", m.opts.Retry, func(ctx context.Context) error {
		data, err := m.source.Fetch(ctx)
		if err != nil {
			return err
		}
		built, err := catalog.Load(ctx, data, m.opts.Catalog)
		if err != nil {
			if errors.Is(err, apperrors.ErrInvalidContainer) || errors.Is(err, apperrors.ErrChecksumMismatch) {
				return resilience.Permanent(err)
			}
			return err
		}
		cat = built
		return nil
	})
	took := time.Since(start)

	if err != nil {
		m.observe("error", took, nil)
		if ctx.Err() == nil {
			m.gate.Resolve(nil, err)
		}
		m.logger.Error("catalog load failed", "error", err, "duration_ms", took.Milliseconds())
		return nil, fmt.Errorf("loading catalog from %s: %w", m.source.Name(), err)
	}

	m.current.Store(cat)
	m.version.Store(version)
	m.gate.Resolve(cat, nil)
	stats := cat.Stats()
	m.observe("ok", took, &stats)
	m.logger.Info("catalog swapped in",
		"namespaces", stats.Namespaces,
		"items", stats.Items,
		"omitted", stats.Omitted,
		"fingerprint", stats.Fingerprint,
		"duration_ms", took.Milliseconds(),
	)
	if m.opts.OnReload != nil {
		m.opts.OnReload(stats, took)
	}
	return cat, nil
}

func (m *Manager) observe(status string, took time.Duration, stats *catalog.Stats) {
	mt := m.opts.Metrics
	if mt == nil {
		return
	}
	mt.CatalogLoadsTotal.WithLabelValues(status).Inc()
	mt.CatalogLoadDuration.Observe(took.Seconds())
	if stats != nil {
		mt.CatalogNamespaces.Set(float64(stats.Namespaces))
		mt.CatalogItems.Set(float64(stats.Items))
		mt.CatalogOmitted.Set(float64(stats.Omitted))
	}
}

// Watch reloads the catalog when the source changes, until ctx is done. File
// sources are followed with fsnotify; versioned sources are polled.
func (m *Manager) Watch(ctx context.Context) error {
	switch src := m.source.(type) {
	case interface{ WatchPath() string }:
		return m.watchFile(ctx, src.WatchPath())
	case Versioned:
		return m.poll(ctx, src)
	default:
		return fmt.Errorf("source %s cannot be watched", m.source.Name())
	}
}

func (m *Manager) watchFile(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// The directory is watched because writers replace the file by rename.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}
	m.logger.Info("watching index file", "path", path, "debounce", m.opts.Debounce)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(m.opts.Debounce, func() {
				if _, err := m.Load(ctx); err != nil {
					m.logger.Warn("reload failed, keeping previous catalog", "error", err)
				}
			})
			timerMu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("watcher error", "error", err)
		}
	}
}

// sourceVersion is taken before the fetch, so a change racing the fetch is
// picked up by the next poll.
func (m *Manager) sourceVersion(ctx context.Context) string {
	src, ok := m.source.(Versioned)
	if !ok {
		return ""
	}
	v, err := src.Version(ctx)
	if err != nil {
		return ""
	}
	return v
}

func (m *Manager) loadedVersion() string {
	v, _ := m.version.Load().(string)
	return v
}

func (m *Manager) poll(ctx context.Context, src Versioned) error {
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			v, err := src.Version(ctx)
			if err != nil {
				m.logger.Warn("version check failed", "error", err)
				continue
			}
			if v == m.loadedVersion() {
				continue
			}
			if _, err := m.Load(ctx); err != nil {
				m.logger.Warn("reload failed, keeping previous catalog", "error", err)
			}
		}
	}
}

// CatalogOptions translates decoder configuration into catalog.Options. Empty
// vocabularies fall back to the defaults.
func CatalogOptions(cfg config.DecoderConfig) (catalog.Options, error) {
	var kinds *record.KindTable
	if len(cfg.Kinds) > 0 {
		kinds = record.NewKindTable(cfg.Kinds)
	}
	opts := catalog.Options{
		Decoder:     record.NewDecoder(kinds, cfg.MaxDepth),
		Concurrency: cfg.Concurrency,
	}
	if len(cfg.Sentinels) > 0 {
		sentinels := make([]strtab.Sentinel, 0, len(cfg.Sentinels))
		for _, sc := range cfg.Sentinels {
			role, err := strtab.ParseRole(sc.Role)
			if err != nil {
				return catalog.Options{}, fmt.Errorf("sentinel %d: %w: %v", sc.Code, apperrors.ErrInvalidInput, err)
			}
			sentinels = append(sentinels, strtab.Sentinel{Code: sc.Code, Value: sc.Value, Role: role})
		}
		vocab, err := strtab.NewVocabulary(sentinels)
		if err != nil {
			return catalog.Options{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
		}
		opts.Vocabulary = vocab
	}
	return opts, nil
}

// RetryConfig translates loader retry configuration.
func RetryConfig(cfg config.RetryConfig) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.BaseDelay,
		MaxDelay:     cfg.MaxDelay,
	}
}

package kmlload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"field-route-service/internal/domain"
	"field-route-service/internal/geo"
	"field-route-service/internal/kml"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/platform/report"
	"field-route-service/internal/ports"
)

// Loader is the single entry point for turning a zone/plan into a parsed
// and validated document. Concurrent loads of the same key share one read,
// and successful results are cached until evicted or reloaded.
//
// The Loader is safe for concurrent use.
type Loader struct {
	source   ports.KMLSource
	parser   *kml.Parser
	logger   *slog.Logger
	now      func() time.Time
	capacity int

	group singleflight.Group

	mu    sync.RWMutex
	cache map[domain.ZoneKey]*LoadResult
	order []domain.ZoneKey
}

type Options struct {
	// Capacity bounds the cache; the oldest entry is evicted first. Zero
	// means unbounded.
	Capacity int
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewLoader(source ports.KMLSource, opts Options) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	parser := kml.NewParser(logger)
	parser.Now = now

	return &Loader{
		source:   source,
		parser:   parser,
		logger:   logger,
		now:      now,
		capacity: opts.Capacity,
		cache:    make(map[domain.ZoneKey]*LoadResult),
	}
}

// LoadForZone validates zone and plan, then loads the key.
func (l *Loader) LoadForZone(ctx context.Context, zone int, plan string, force bool) *LoadResult {
	key, err := domain.NewZoneKey(zone, plan)
	if err != nil {
		return failure(domain.ZoneKey{Zone: zone, Plan: domain.Plan(strings.ToUpper(plan))}, err, 0)
	}
	return l.Load(ctx, key, force)
}

// Load returns the cached result for key unless force is set, otherwise
// reads, parses and validates the file. It never returns nil; failures are
// reported through Success and Err.
func (l *Loader) Load(ctx context.Context, key domain.ZoneKey, force bool) *LoadResult {
	if !force {
		if res, ok := l.cached(key); ok {
			obs.KMLCacheRequests.WithLabelValues("hit").Inc()
			return res
		}
	}

	// The shared load must outlive any single caller's cancellation.
	flightCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key.String(), func() (any, error) {
		if !force {
			if res, ok := l.cached(key); ok {
				return res, nil
			}
		}
		return l.load(flightCtx, key), nil
	})

	select {
	case <-ctx.Done():
		return failure(key, ctx.Err(), 0)
	case r := <-ch:
		if r.Shared {
			obs.KMLCacheRequests.WithLabelValues("shared").Inc()
		} else {
			obs.KMLCacheRequests.WithLabelValues("miss").Inc()
		}
		return r.Val.(*LoadResult)
	}
}

func (l *Loader) load(ctx context.Context, key domain.ZoneKey) *LoadResult {
	start := l.now()
	elapsed := func() int64 { return l.now().Sub(start).Milliseconds() }

	res, err := l.read(ctx, key)
	if err != nil {
		obs.KMLLoadDuration.WithLabelValues("error").Observe(float64(elapsed()) / 1000)
		l.logger.Warn("kml load failed", "key", key.String(), "err", err)

		var nf *NotFoundError
		if !errors.As(err, &nf) {
			report.ErrorWith(err, map[string]string{"zone_key": key.String()})
		}
		return failure(key, err, elapsed())
	}

	res.Metadata.LoadTimeMs = elapsed()
	obs.KMLLoadDuration.WithLabelValues("ok").Observe(float64(res.Metadata.LoadTimeMs) / 1000)
	l.logger.Info("kml loaded",
		"key", key.String(),
		"routes", res.Metadata.RouteCount,
		"points", res.Metadata.TotalPoints,
		"valid", res.Metadata.IsValid,
		"dur_ms", res.Metadata.LoadTimeMs,
	)

	l.store(key, res)
	return res
}

func (l *Loader) read(ctx context.Context, key domain.ZoneKey) (*LoadResult, error) {
	ok, err := l.source.Exists(ctx, key)
	if err != nil {
		return nil, &ReadError{Key: key, Err: err}
	}
	if !ok {
		return nil, &NotFoundError{Key: key}
	}

	text, err := l.source.ReadText(ctx, key)
	if err != nil {
		return nil, &ReadError{Key: key, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &ReadError{Key: key, Err: errors.New("file is empty")}
	}

	doc, err := l.parser.Parse(text)
	if err != nil {
		return nil, err
	}

	validation := kml.Validate(doc)
	for _, r := range doc.Routes {
		r.Stats = geo.RouteStats(r)
	}

	return &LoadResult{
		Success:    true,
		Zone:       key.Zone,
		Plan:       key.Plan,
		Document:   doc,
		Validation: &validation,
		Content:    text,
		Metadata: LoadMetadata{
			FileSizeChars: len([]rune(text)),
			RouteCount:    len(doc.Routes),
			TotalPoints:   doc.TotalPoints(),
			IsValid:       validation.IsValid,
		},
	}, nil
}

func (l *Loader) cached(key domain.ZoneKey) (*LoadResult, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res, ok := l.cache[key]
	return res, ok
}

func (l *Loader) store(key domain.ZoneKey, res *LoadResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.cache[key]; !ok {
		l.order = append(l.order, key)
	}
	l.cache[key] = res

	for l.capacity > 0 && len(l.order) > l.capacity {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.cache, oldest)
		l.logger.Debug("kml cache evicted", "key", oldest.String())
	}
}

// IsAvailable reports whether a file is provisioned for zone/plan.
func (l *Loader) IsAvailable(ctx context.Context, zone int, plan string) (bool, error) {
	key, err := domain.NewZoneKey(zone, plan)
	if err != nil {
		return false, err
	}
	return l.source.Exists(ctx, key)
}

// ListAvailable returns every provisioned file sorted by zone, then plan.
func (l *Loader) ListAvailable(ctx context.Context) ([]ports.KMLFileInfo, error) {
	files, err := l.source.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("list available kml: %w", err)
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Key.Zone != files[j].Key.Zone {
			return files[i].Key.Zone < files[j].Key.Zone
		}
		return files[i].Key.Plan < files[j].Key.Plan
	})
	return files, nil
}

// Info returns file information for key.
func (l *Loader) Info(ctx context.Context, key domain.ZoneKey) (*ports.KMLFileInfo, error) {
	files, err := l.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	for i := range files {
		if files[i].Key == key {
			return &files[i], nil
		}
	}
	return nil, &NotFoundError{Key: key}
}

// Validate returns the validation of the (possibly cached) load of key.
func (l *Loader) Validate(ctx context.Context, key domain.ZoneKey) (*domain.ValidationResult, error) {
	res := l.Load(ctx, key, false)
	if !res.Success {
		return nil, res.Err
	}
	return res.Validation, nil
}

// Report renders the validation report for key.
func (l *Loader) Report(ctx context.Context, key domain.ZoneKey) (string, error) {
	v, err := l.Validate(ctx, key)
	if err != nil {
		return "", err
	}
	return kml.Report(key.FileName(), *v), nil
}

// Preload loads keys with at most limit concurrent loads. Results are
// returned in key order.
func (l *Loader) Preload(ctx context.Context, keys []domain.ZoneKey, limit int) ([]*LoadResult, error) {
	if limit <= 0 {
		limit = 1
	}

	results := make([]*LoadResult, len(keys))
	var g errgroup.Group
	g.SetLimit(limit)

	for i, key := range keys {
		g.Go(func() error {
			results[i] = l.Load(ctx, key, false)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (l *Loader) IsInCache(key domain.ZoneKey) bool {
	_, ok := l.cached(key)
	return ok
}

// RemoveFromCache drops key and reports whether it was cached.
func (l *Loader) RemoveFromCache(key domain.ZoneKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.cache[key]; !ok {
		return false
	}
	delete(l.cache, key)
	for i, k := range l.order {
		if k == key {
			l.order = append(l.order[:i:i], l.order[i+1:]...)
			break
		}
	}
	return true
}

func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[domain.ZoneKey]*LoadResult)
	l.order = nil
}

func (l *Loader) CacheStats() CacheStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, 0, len(l.order))
	for _, k := range l.order {
		keys = append(keys, k.String())
	}
	return CacheStats{Size: len(l.cache), Capacity: l.capacity, Keys: keys}
}

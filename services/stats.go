package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"smrms-be/models"
	"smrms-be/repository"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	monthLabelLayout  = "Jan 2006"
	dashboardCacheKey = "smrms:stats:dashboard"
)

type BuildingIssueStat struct {
	BuildingCode string `json:"buildingCode"`
	BuildingName string `json:"buildingName"`
	Total        int64  `json:"total"`
	Active       int64  `json:"active"`
	Resolved     int64  `json:"resolved"`
}

type Dashboard struct {
	TotalAllTime     int64               `json:"totalAllTime"`
	TotalThisMonth   int64               `json:"totalThisMonth"`
	StatusSummary    map[string]int64    `json:"statusSummary"`
	PrioritySummary  map[string]int64    `json:"prioritySummary"`
	IssuesByBuilding []BuildingIssueStat `json:"issuesByBuilding"`
	GeneratedAt      time.Time           `json:"generatedAt"`
}

type MonthlyCount struct {
	Month string    `json:"month"`
	Start time.Time `json:"start"`
	Count int64     `json:"count"`
}

// StatsCache holds serialized dashboards for a short TTL.
type StatsCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

type redisStatsCache struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisStatsCache wraps a redis client. Cache errors are logged and
// treated as misses.
func NewRedisStatsCache(client *redis.Client, log *zap.Logger) StatsCache {
	return &redisStatsCache{client: client, log: log}
}

func (c *redisStatsCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("stats cache read failed", zap.Error(err))
		}
		return nil, false
	}
	return val, true
}

func (c *redisStatsCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn("stats cache write failed", zap.Error(err))
	}
}

type StatsOption func(*StatsService)

func WithStatsClock(now Clock) StatsOption {
	return func(s *StatsService) { s.now = now }
}

// WithLocation sets the calendar used for month boundaries.
func WithLocation(loc *time.Location) StatsOption {
	return func(s *StatsService) { s.loc = loc }
}

func WithStatsCache(cache StatsCache, ttl time.Duration) StatsOption {
	return func(s *StatsService) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// StatsService computes read-only rollups over the issue collection.
type StatsService struct {
	store    repository.Store
	log      *zap.Logger
	now      Clock
	loc      *time.Location
	cache    StatsCache
	cacheTTL time.Duration
}

func NewStatsService(store repository.Store, log *zap.Logger, opts ...StatsOption) *StatsService {
	s := &StatsService{store: store, log: log, now: systemClock, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// monthStart is the first instant of the calendar month containing t.
func monthStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

func (s *StatsService) Dashboard(ctx context.Context) (*Dashboard, error) {
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, dashboardCacheKey); ok {
			var cached Dashboard
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	now := s.now()
	start := monthStart(now, s.loc)
	end := start.AddDate(0, 1, 0)

	d := &Dashboard{GeneratedAt: now}
	var perBuilding map[primitive.ObjectID]repository.BuildingIssueCount
	var buildings []models.Building

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.TotalAllTime, err = s.store.CountIssues(gctx, repository.IssueFilter{})
		return err
	})
	g.Go(func() (err error) {
		d.TotalThisMonth, err = s.store.CountIssues(gctx, repository.IssueFilter{CreatedFrom: &start, CreatedTo: &end})
		return err
	})
	g.Go(func() error {
		byStatus, err := s.store.CountIssuesBy(gctx, repository.GroupByStatus)
		if err != nil {
			return err
		}
		d.StatusSummary = zeroFill(byStatus, models.Statuses)
		return nil
	})
	g.Go(func() error {
		byPriority, err := s.store.CountIssuesBy(gctx, repository.GroupByPriority)
		if err != nil {
			return err
		}
		d.PrioritySummary = zeroFill(byPriority, models.Priorities)
		return nil
	})
	g.Go(func() error {
		var err error
		perBuilding, err = s.store.CountIssuesPerBuilding(gctx)
		return err
	})
	g.Go(func() (err error) {
		buildings, err = s.store.ListBuildings(gctx, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fromStore(err, "statistics")
	}

	d.IssuesByBuilding = make([]BuildingIssueStat, 0, len(buildings))
	for _, b := range buildings {
		c := perBuilding[b.ID]
		d.IssuesByBuilding = append(d.IssuesByBuilding, BuildingIssueStat{
			BuildingCode: b.Code,
			BuildingName: b.Name,
			Total:        c.Total,
			Active:       c.Active,
			Resolved:     c.Fixed,
		})
	}

	if s.cache != nil {
		if raw, err := json.Marshal(d); err == nil {
			s.cache.Set(ctx, dashboardCacheKey, raw, s.cacheTTL)
		}
	}
	return d, nil
}

// MonthlySeries returns exactly months entries, oldest first, ending with
// the current month. Each window is [start, next start).
func (s *StatsService) MonthlySeries(ctx context.Context, months int) ([]MonthlyCount, error) {
	if months <= 0 {
		return nil, invalid("months must be positive")
	}
	current := monthStart(s.now(), s.loc)

	series := make([]MonthlyCount, months)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := 0; i < months; i++ {
		idx := i
		start := current.AddDate(0, idx-(months-1), 0)
		end := start.AddDate(0, 1, 0)
		series[idx] = MonthlyCount{Month: start.Format(monthLabelLayout), Start: start}
		g.Go(func() error {
			n, err := s.store.CountIssues(gctx, repository.IssueFilter{CreatedFrom: &start, CreatedTo: &end})
			if err != nil {
				return err
			}
			series[idx].Count = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fromStore(err, "statistics")
	}
	return series, nil
}

func zeroFill[T ~string](counts map[string]int64, keys []T) map[string]int64 {
	out := make(map[string]int64, len(keys))
	for _, k := range keys {
		out[string(k)] = 0
	}
	for k, v := range counts {
		out[k] = v
	}
	return out
}

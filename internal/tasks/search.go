package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytdrop/internal/metrics"
	"github.com/desertthunder/ytdrop/internal/models"
	"github.com/desertthunder/ytdrop/internal/services"
	"github.com/desertthunder/ytdrop/internal/shared"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	defaultCacheSize = 512
	defaultCacheTTL  = time.Hour
)

// searchEntry is a cached search outcome. A nil match is a cached miss.
type searchEntry struct {
	match *models.Match
	err   error
}

// searcher rate limits video searches and remembers their outcomes for the length of a run.
//
// Only successes and [shared.ErrSearchMiss] are cached; transport failures are retried by the next lookup.
type searcher struct {
	video   services.VideoService
	limiter *rate.Limiter
	cache   *expirable.LRU[string, searchEntry]
	metrics *metrics.Recorder
	logger  *log.Logger
}

func newSearcher(video services.VideoService, limiter *rate.Limiter, size int, ttl time.Duration, m *metrics.Recorder, logger *log.Logger) *searcher {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &searcher{
		video:   video,
		limiter: limiter,
		cache:   expirable.NewLRU[string, searchEntry](size, nil, ttl),
		metrics: m,
		logger:  logger,
	}
}

func (s *searcher) Search(ctx context.Context, query string) (*models.Match, error) {
	if entry, ok := s.cache.Get(query); ok {
		s.metrics.SearchCache(true)
		s.logger.Debug("search cache hit", "query", query)
		return entry.match, entry.err
	}
	s.metrics.SearchCache(false)

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	match, err := s.video.Search(ctx, query)
	if err == nil || errors.Is(err, shared.ErrSearchMiss) {
		s.cache.Add(query, searchEntry{match: match, err: err})
	}
	return match, err
}

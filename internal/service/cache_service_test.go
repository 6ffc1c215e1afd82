package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/exam-stats-api/pkg/errors"
)

type stubCacheRepo struct {
	store    map[string][]byte
	ttls     map[string]time.Duration
	getErr   error
	patterns []string
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if s.getErr != nil {
		return s.getErr
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
		s.ttls = make(map[string]time.Duration)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	s.ttls[key] = ttl
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	for key := range s.store {
		if ok, _ := path.Match(pattern, key); ok {
			delete(s.store, key)
		}
	}
	return nil
}

func TestCacheServiceRoundTripAndMetrics(t *testing.T) {
	repo := &stubCacheRepo{}
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, 5*time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var out []string
	hit, err := svc.Get(ctx, "statsview:rankings", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "statsview:rankings", []string{"d1"}, 0))
	assert.Equal(t, 5*time.Minute, repo.ttls["statsview:rankings"])

	hit, err = svc.Get(ctx, "statsview:rankings", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"d1"}, out)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
	assert.InDelta(t, 0.5, snapshot.CacheHitRatio, 1e-9)
}

func TestCacheServiceBackendErrorIsReported(t *testing.T) {
	repo := &stubCacheRepo{getErr: errors.New("connection refused")}
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	var out string
	hit, err := svc.Get(context.Background(), "statsview:x", &out)
	assert.False(t, hit)
	assert.Error(t, err)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := &stubCacheRepo{}
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), false)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", 1, 0))
	assert.Empty(t, repo.store)
	require.NoError(t, svc.Invalidate(ctx, "statsview:*"))
	assert.Empty(t, repo.patterns)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "statsview:rankings:district:1:20", CacheKey("statsview", "rankings", "district", "", "1", "20"))
	assert.Equal(t, "statsview:exam:a|b", CacheKey("statsview", "exam", "a:b"))
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-stats-api/internal/models"
	"github.com/noah-isme/exam-stats-api/internal/stats"
	appErrors "github.com/noah-isme/exam-stats-api/pkg/errors"
)

const (
	statsCacheNamespace = "statsview"
	statsCachePattern   = statsCacheNamespace + ":*"
)

type rankingReader interface {
	Rankings(ctx context.Context, kind models.UnitKind, filter models.UnitRankingFilter) ([]models.UnitRanking, int, error)
	ListBadgeHolders(ctx context.Context, filter models.StudentBadgeFilter) ([]models.StudentBadgeRow, int, error)
}

type examBoardReader interface {
	ExamBoard(ctx context.Context, examID string) ([]models.ExamResultRow, error)
}

type examLookup interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
}

// RankingPage is a page of unit rankings.
type RankingPage struct {
	Items []models.UnitRanking `json:"items"`
	Total int                  `json:"total"`
}

// BadgePage is a page of badge holders.
type BadgePage struct {
	Badge string                   `json:"badge"`
	Items []models.StudentBadgeRow `json:"items"`
	Total int                      `json:"total"`
}

// ExamBoard is the result board of one exam.
type ExamBoard struct {
	Exam    models.Exam            `json:"exam"`
	Results []models.ExamResultRow `json:"results"`
}

// LeaderboardService serves the read side of the statistics: rankings, badge
// listings and exam boards, cached until the next run.
type LeaderboardService struct {
	directory rankingReader
	results   examBoardReader
	exams     examLookup
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewLeaderboardService constructs the read service.
func NewLeaderboardService(directory rankingReader, results examBoardReader, exams examLookup, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *LeaderboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaderboardService{directory: directory, results: results, exams: exams, cache: cache, metrics: metrics, logger: logger}
}

// Rankings lists districts, schools or teachers by average score. The boolean reports a cache hit.
func (s *LeaderboardService) Rankings(ctx context.Context, kind models.UnitKind, filter models.UnitRankingFilter) (*RankingPage, bool, error) {
	switch kind {
	case models.UnitDistrict, models.UnitSchool, models.UnitTeacher:
	default:
		return nil, false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown unit %q", kind))
	}

	key := CacheKey(statsCacheNamespace, "rankings", string(kind), filter.DistrictID, strconv.Itoa(filter.Page), strconv.Itoa(filter.PageSize))
	var cached RankingPage
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	start := time.Now()
	items, total, err := s.directory.Rankings(ctx, kind, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rankings")
	}
	s.metrics.ObserveDBQuery("stats_rankings_"+string(kind), time.Since(start))

	page := &RankingPage{Items: items, Total: total}
	if page.Items == nil {
		page.Items = []models.UnitRanking{}
	}
	s.store(ctx, key, page)
	return page, false, nil
}

// BadgeHolders lists students carrying the badge named by filter.Badge (progress,
// district or republic).
func (s *LeaderboardService) BadgeHolders(ctx context.Context, filter models.StudentBadgeFilter) (*BadgePage, bool, error) {
	badge, ok := stats.BadgeByKey(filter.Badge)
	if !ok {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "badge must be one of progress, district, republic")
	}

	key := CacheKey(statsCacheNamespace, "badges", filter.Badge, filter.DistrictID, strconv.Itoa(filter.Page), strconv.Itoa(filter.PageSize))
	var cached BadgePage
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	query := filter
	query.Badge = string(badge)
	start := time.Now()
	items, total, err := s.directory.ListBadgeHolders(ctx, query)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load badge holders")
	}
	s.metrics.ObserveDBQuery("stats_badge_holders", time.Since(start))

	page := &BadgePage{Badge: string(badge), Items: items, Total: total}
	if page.Items == nil {
		page.Items = []models.StudentBadgeRow{}
	}
	s.store(ctx, key, page)
	return page, false, nil
}

// ExamBoard returns the results of one exam with their tier labels.
func (s *LeaderboardService) ExamBoard(ctx context.Context, examID string) (*ExamBoard, bool, error) {
	key := CacheKey(statsCacheNamespace, "exam", examID)
	var cached ExamBoard
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	rows, err := s.results.ExamBoard(ctx, examID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam results")
	}
	for i := range rows {
		rows[i].Level = stats.Classify(rows[i].TotalScore).String()
	}
	if rows == nil {
		rows = []models.ExamResultRow{}
	}

	board := &ExamBoard{Exam: *exam, Results: rows}
	s.store(ctx, key, board)
	return board, false, nil
}

// Invalidate drops every cached read model.
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, statsCachePattern); err != nil {
		s.logger.Warn("invalidate statistics cache", zap.Error(err))
	}
}

func (s *LeaderboardService) store(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, 0); err != nil {
		s.logger.Warn("cache statistics view", zap.String("key", key), zap.Error(err))
	}
}

package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-stats-api/internal/models"
	appErrors "github.com/noah-isme/exam-stats-api/pkg/errors"
	"github.com/noah-isme/exam-stats-api/pkg/export"
)

const exportPageSize = 100

var exportUnits = map[string]models.UnitKind{
	"districts": models.UnitDistrict,
	"schools":   models.UnitSchool,
	"teachers":  models.UnitTeacher,
}

var exportTitles = map[models.UnitKind]string{
	models.UnitDistrict: "District ranking",
	models.UnitSchool:   "School ranking",
	models.UnitTeacher:  "Teacher ranking",
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders unit rankings into downloadable files.
type ExportService struct {
	directory rankingReader
	renderers map[export.Format]export.Renderer
	logger    *zap.Logger
	enabled   bool
	now       func() time.Time
}

// NewExportService constructs an ExportService. Missing renderers fall back to the
// package defaults.
func NewExportService(directory rankingReader, renderers map[export.Format]export.Renderer, enabled bool, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	all := map[export.Format]export.Renderer{
		export.FormatCSV:  export.NewCSVExporter(),
		export.FormatPDF:  export.NewPDFExporter(),
		export.FormatXLSX: export.NewXLSXExporter(),
	}
	for format, renderer := range renderers {
		all[format] = renderer
	}
	return &ExportService{
		directory: directory,
		renderers: all,
		logger:    logger,
		enabled:   enabled,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ExportRanking renders the full ranking of districts, schools or teachers.
func (s *ExportService) ExportRanking(ctx context.Context, unit string, rawFormat string, districtID string) (*ExportFile, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrServiceDisabled, "exports are disabled")
	}
	kind, ok := exportUnits[strings.ToLower(unit)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unit must be one of districts, schools, teachers")
	}
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, err.Error())
	}

	rows, err := s.collect(ctx, kind, districtID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rankings")
	}

	data := rankingDataset(kind, rows)
	payload, err := s.renderers[format].Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("ranking exported", zap.String("unit", string(kind)), zap.String("format", string(format)), zap.Int("rows", len(rows)))

	return &ExportFile{
		Filename:    fmt.Sprintf("%s-ranking-%s.%s", kind, s.now().Format("20060102"), format),
		ContentType: format.ContentType(),
		Data:        payload,
	}, nil
}

func (s *ExportService) collect(ctx context.Context, kind models.UnitKind, districtID string) ([]models.UnitRanking, error) {
	var all []models.UnitRanking
	for page := 1; ; page++ {
		items, total, err := s.directory.Rankings(ctx, kind, models.UnitRankingFilter{DistrictID: districtID, Page: page, PageSize: exportPageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < exportPageSize || len(all) >= total {
			return all, nil
		}
	}
}

func rankingDataset(kind models.UnitKind, rows []models.UnitRanking) export.Dataset {
	headers := []string{"Rank", "Name"}
	parent := ""
	switch kind {
	case models.UnitSchool:
		parent = "District"
	case models.UnitTeacher:
		parent = "School"
	}
	if parent != "" {
		headers = append(headers, parent)
	}
	headers = append(headers, "Students", "Score", "Average")

	data := export.Dataset{Title: exportTitles[kind], Headers: headers, Rows: make([]map[string]string, 0, len(rows))}
	for _, r := range rows {
		row := map[string]string{
			"Rank":     strconv.Itoa(r.Rank),
			"Name":     r.Name,
			"Students": strconv.FormatFloat(r.Rate, 'f', -1, 64),
			"Score":    strconv.Itoa(r.Score),
			"Average":  strconv.FormatFloat(r.AverageScore, 'f', 2, 64),
		}
		if parent != "" && r.ParentName != nil {
			row[parent] = *r.ParentName
		}
		data.Rows = append(data.Rows, row)
	}
	return data
}

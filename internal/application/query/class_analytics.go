package query

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smartattd/smartattd/internal/application/report"
	"github.com/smartattd/smartattd/internal/domain/attendance"
	"github.com/smartattd/smartattd/internal/domain/student"
	"github.com/smartattd/smartattd/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASS ANALYTICS QUERY
// Сводка посещаемости группы за месяц: численность, зоны риска, средний
// процент и текстовый отчёт для заведующего кафедрой.
// ══════════════════════════════════════════════════════════════════════════════

// GetClassAnalyticsQuery содержит фильтры группы.
type GetClassAnalyticsQuery struct {
	// Branch - направление (обязательно).
	Branch string

	// Batch - поток (обязательно).
	Batch string

	// Subject - предмет (пустая строка = все предметы).
	Subject string

	// Period - месяц и год (нулевое значение = текущий месяц).
	Period attendance.Period

	// SkipNarrative - не обращаться к генератору текста.
	SkipNarrative bool
}

// Validate проверяет корректность параметров запроса.
func (q GetClassAnalyticsQuery) Validate() error {
	if err := requireField("GetClassAnalytics", "branch", q.Branch); err != nil {
		return err
	}
	return requireField("GetClassAnalytics", "batch", q.Batch)
}

// AnalyticsDTO - сводные показатели группы.
type AnalyticsDTO struct {
	TotalStudents int `json:"totalStudents"`
	Safe          int `json:"safe"`
	Warning       int `json:"warning"`
	Critical      int `json:"critical"`

	// AvgAttendance - средний процент с одним знаком после запятой ("82.5").
	AvgAttendance string `json:"avgAttendance"`
}

// ClassAnalyticsResult содержит результат запроса.
type ClassAnalyticsResult struct {
	Analytics AnalyticsDTO `json:"analytics"`

	// Narrative - текст отчёта или фиксированная заглушка.
	Narrative string `json:"aiInsight"`

	// NarrativeAvailable - текст получен от генератора.
	NarrativeAvailable bool `json:"aiInsightAvailable"`

	Period attendance.Period `json:"period"`

	// Stats - исходная статистика (с флагом HasData).
	Stats attendance.ClassStats `json:"-"`

	// FromCache - статистика взята из кеша.
	FromCache bool `json:"-"`
}

// GetClassAnalyticsHandler обрабатывает запросы аналитики группы.
type GetClassAnalyticsHandler struct {
	records  attendance.Repository
	students student.Repository
	cache    attendance.StatsCache
	builder  *report.PromptBuilder
	narrator report.Narrator
	config   Config
	log      *logger.Logger
}

// NewGetClassAnalyticsHandler создаёт новый обработчик.
// cache, narrator и log могут быть nil.
func NewGetClassAnalyticsHandler(
	records attendance.Repository,
	students student.Repository,
	cache attendance.StatsCache,
	narrator report.Narrator,
	config Config,
	log *logger.Logger,
) *GetClassAnalyticsHandler {
	config = config.withDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &GetClassAnalyticsHandler{
		records:  records,
		students: students,
		cache:    cache,
		builder:  report.NewPromptBuilder(config.Thresholds),
		narrator: narrator,
		config:   config,
		log:      log.With(logger.Component("class_analytics")),
	}
}

// Handle выполняет запрос аналитики группы.
func (h *GetClassAnalyticsHandler) Handle(ctx context.Context, q GetClassAnalyticsQuery) (*ClassAnalyticsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	period, err := resolvePeriod(q.Period, h.config)
	if err != nil {
		return nil, err
	}

	filter := attendance.Filter{
		Branch:  student.ParseBranch(q.Branch).String(),
		Batch:   strings.TrimSpace(q.Batch),
		Subject: strings.TrimSpace(q.Subject),
	}.WithPeriod(period)

	stats, fromCache, err := h.stats(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := &ClassAnalyticsResult{
		Analytics: AnalyticsDTO{
			TotalStudents: stats.TotalStudents,
			Safe:          stats.Safe,
			Warning:       stats.Warning,
			Critical:      stats.Critical,
			AvgAttendance: report.FormatPercent(stats.AvgPercentage),
		},
		Period:    period,
		Stats:     stats,
		FromCache: fromCache,
	}

	// Данных нет - генератор не вызываем.
	if !stats.HasData {
		result.Narrative = report.NarrativeNoData
		return result, nil
	}

	result.Narrative, result.NarrativeAvailable = h.narrate(ctx, q, filter, stats)
	return result, nil
}

// stats берёт статистику из кеша или считает заново.
// Численность группы читается всегда: кеш сбрасывается при записи часов,
// но не при регистрации студента, поэтому запись с другой численностью
// считается устаревшей.
func (h *GetClassAnalyticsHandler) stats(ctx context.Context, filter attendance.Filter) (attendance.ClassStats, bool, error) {
	total, err := load(ctx, h.config, func(ctx context.Context) (int, error) {
		return h.students.CountByClass(ctx, filter.Branch, filter.Batch)
	})
	if err != nil {
		return attendance.ClassStats{}, false, storeFailure("GetClassAnalytics", "failed to count students", err)
	}

	if h.cache != nil {
		cached, err := h.cache.GetStats(ctx, filter)
		if err == nil && cached != nil && cached.TotalStudents == total {
			return *cached, true, nil
		}
	}

	records, err := load(ctx, h.config, func(ctx context.Context) ([]*attendance.Record, error) {
		return h.records.QueryByFilter(ctx, filter)
	})
	if err != nil {
		return attendance.ClassStats{}, false, storeFailure("GetClassAnalytics", "failed to load attendance", err)
	}

	stats := h.config.Thresholds.Aggregate(records, total)

	if h.cache != nil {
		if err := h.cache.SetStats(ctx, filter, stats); err != nil {
			h.log.Warn("analytics cache write failed", logger.Err(err))
		}
	}

	return stats, false, nil
}

// narrate запрашивает текст отчёта. Любая ошибка генератора даёт заглушку.
func (h *GetClassAnalyticsHandler) narrate(
	ctx context.Context,
	q GetClassAnalyticsQuery,
	filter attendance.Filter,
	stats attendance.ClassStats,
) (string, bool) {
	if q.SkipNarrative || h.narrator == nil {
		return report.NarrativeUnavailable, false
	}

	prompt := h.builder.Build(report.ReportContext{
		Subject: filter.Subject,
		Branch:  filter.Branch,
		Batch:   filter.Batch,
		Period:  filter.Period(),
		Stats:   stats,
	})

	start := time.Now()
	text, err := h.narrator.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty narrative")
	}
	if err != nil {
		h.log.Warn("narrative generation failed",
			logger.Branch(filter.Branch),
			logger.Batch(filter.Batch),
			logger.Subject(filter.Subject),
			logger.Err(err),
			logger.Latency(time.Since(start)),
		)
		return report.NarrativeUnavailable, false
	}

	return text, true
}

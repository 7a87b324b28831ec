// Package query contains read operations following CQRS pattern.
// Queries never modify attendance state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smartattd/smartattd/internal/domain/attendance"
	"github.com/smartattd/smartattd/internal/domain/shared"
	"github.com/smartattd/smartattd/pkg/retry"
	"github.com/smartattd/smartattd/pkg/timeutil"
)

// Config содержит общие настройки обработчиков запросов.
type Config struct {
	// Thresholds - границы зон риска.
	Thresholds attendance.Thresholds

	// TargetFraction - целевая доля посещаемости для прогноза часов.
	TargetFraction float64

	// Clock и Location определяют текущий месяц по умолчанию.
	Clock    timeutil.Clock
	Location *time.Location

	// Retrier оборачивает чтения из хранилища.
	Retrier *retry.Retrier

	// QueryTimeout ограничивает одну попытку чтения (0 = без ограничения).
	QueryTimeout time.Duration
}

// DefaultConfig возвращает настройки по умолчанию.
func DefaultConfig() Config {
	return Config{
		Thresholds:     attendance.DefaultThresholds(),
		TargetFraction: attendance.DefaultTargetFraction,
		Clock:          timeutil.SystemClock,
		Location:       time.UTC,
		Retrier:        retry.DatabaseRetrier(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if !c.Thresholds.IsValid() {
		c.Thresholds = d.Thresholds
	}
	if !(c.TargetFraction > 0 && c.TargetFraction < 1) {
		c.TargetFraction = d.TargetFraction
	}
	if c.Clock == nil {
		c.Clock = d.Clock
	}
	if c.Location == nil {
		c.Location = d.Location
	}
	if c.Retrier == nil {
		c.Retrier = d.Retrier
	}
	c.Retrier = c.Retrier.With(retry.WithRetryIf(isTransient))
	return c
}

// isTransient - повторяем всё, кроме ошибок ввода, "не найдено" и отмены.
// Сырые ошибки драйвера считаются временными.
func isTransient(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case shared.IsRetryable(err):
		return true
	case shared.IsValidation(err), shared.IsInvalidArgument(err), shared.IsNotFound(err):
		return false
	default:
		return true
	}
}

// load выполняет чтение из хранилища с повторами; каждая попытка
// ограничена QueryTimeout.
func load[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	return retry.DoWithData(ctx, cfg.Retrier, func(ctx context.Context) (T, error) {
		if cfg.QueryTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.QueryTimeout)
			defer cancel()
		}
		return fn(ctx)
	})
}

// storeFailure помечает ошибку хранилища как недоступность коллаборатора.
func storeFailure(op, msg string, err error) error {
	if shared.IsNotFound(err) || shared.IsValidation(err) {
		return err
	}
	return shared.WrapError("query", op, shared.ErrCollaboratorUnavailable, msg, err)
}

// resolvePeriod подставляет текущий месяц для пустого периода
// и приводит название месяца к полному английскому виду.
func resolvePeriod(p attendance.Period, cfg Config) (attendance.Period, error) {
	if p.IsZero() {
		month, year := timeutil.CurrentPeriod(cfg.Clock, cfg.Location)
		return attendance.Period{Month: month, Year: year}, nil
	}
	month, err := timeutil.ParseMonth(p.Month)
	if err != nil || p.Year <= 0 {
		return attendance.Period{}, shared.ErrInvalidPeriod
	}
	return attendance.Period{Month: month, Year: p.Year}, nil
}

func requireField(op, name, value string) error {
	if strings.TrimSpace(value) == "" {
		return shared.NewDomainError("query", op, shared.ErrValidation, name+" is required")
	}
	return nil
}

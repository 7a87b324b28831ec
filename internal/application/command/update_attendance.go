package command

import (
	"context"
	"fmt"
	"time"

	"github.com/smartattd/smartattd/internal/domain/attendance"
	"github.com/smartattd/smartattd/pkg/logger"
	"github.com/smartattd/smartattd/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE ATTENDANCE COMMAND
// Creates or overwrites one attendance record. The period defaults to the
// current month in the college timezone.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateAttendanceCommand contains one entry to write.
type UpdateAttendanceCommand struct {
	StudentID     string
	Subject       string
	TotalHours    int
	AttendedHours int

	// Period is optional; zero means "now".
	Period attendance.Period
}

func (c UpdateAttendanceCommand) entry() AttendanceEntry {
	return AttendanceEntry{
		StudentID:     c.StudentID,
		Subject:       c.Subject,
		TotalHours:    c.TotalHours,
		AttendedHours: c.AttendedHours,
	}.normalized()
}

// Validate validates the command. Missing identifiers are hard errors here.
func (c UpdateAttendanceCommand) Validate() error {
	return checkEntry(c.entry())
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// Config contains settings shared by the attendance write handlers.
type Config struct {
	// MaxParallel bounds concurrent key groups in bulk updates.
	MaxParallel int

	// Clock and Location decide the default period.
	Clock    timeutil.Clock
	Location *time.Location
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		MaxParallel: 8,
		Clock:       timeutil.SystemClock,
		Location:    time.UTC,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxParallel < 1 {
		c.MaxParallel = d.MaxParallel
	}
	if c.Clock == nil {
		c.Clock = d.Clock
	}
	if c.Location == nil {
		c.Location = d.Location
	}
	return c
}

// UpdateAttendanceHandler handles the UpdateAttendanceCommand.
type UpdateAttendanceHandler struct {
	repo   attendance.Repository
	cache  attendance.StatsCache
	config Config
	log    *logger.Logger
}

// NewUpdateAttendanceHandler creates a new UpdateAttendanceHandler.
// cache and log may be nil.
func NewUpdateAttendanceHandler(
	repo attendance.Repository,
	cache attendance.StatsCache,
	config Config,
	log *logger.Logger,
) *UpdateAttendanceHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &UpdateAttendanceHandler{
		repo:   repo,
		cache:  cache,
		config: config.withDefaults(),
		log:    log.With(logger.Component("update_attendance")),
	}
}

// Handle executes the update attendance command and returns the stored record.
func (h *UpdateAttendanceHandler) Handle(ctx context.Context, cmd UpdateAttendanceCommand) (*attendance.Record, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	period, err := resolvePeriod(cmd.Period, h.config.Clock, h.config.Location)
	if err != nil {
		return nil, err
	}

	e := cmd.entry()
	key := attendance.NewKey(e.StudentID, e.Subject, period)

	start := time.Now()
	rec, created, err := h.repo.Upsert(ctx, key, e.Hours())
	if err != nil {
		return nil, fmt.Errorf("update_attendance: %w", err)
	}

	h.log.Info("attendance updated",
		logger.StudentID(key.StudentID),
		logger.Subject(key.Subject),
		logger.Period(period.String()),
		logger.Bool("created", created),
		logger.Band(string(rec.Band())),
		logger.Latency(time.Since(start)),
	)

	invalidate(ctx, h.cache, h.log, []subjectPeriod{{subject: key.Subject, period: period}})

	return rec, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INVALIDATION
// ══════════════════════════════════════════════════════════════════════════════

type subjectPeriod struct {
	subject string
	period  attendance.Period
}

// invalidate drops cached analytics. Failures are logged and never returned:
// the write already succeeded and entries expire on their own.
func invalidate(ctx context.Context, cache attendance.StatsCache, log *logger.Logger, pairs []subjectPeriod) {
	if cache == nil {
		return
	}
	for _, p := range pairs {
		if err := cache.InvalidateSubject(ctx, p.subject, p.period); err != nil {
			log.Warn("analytics cache invalidation failed",
				logger.Subject(p.subject),
				logger.Period(p.period.String()),
				logger.Err(err),
			)
		}
	}
}

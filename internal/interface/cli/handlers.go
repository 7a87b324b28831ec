package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smartattd/smartattd/internal/application/command"
	"github.com/smartattd/smartattd/internal/application/query"
	"github.com/smartattd/smartattd/internal/application/report"
	"github.com/smartattd/smartattd/internal/domain/attendance"
	"github.com/smartattd/smartattd/internal/domain/shared"
	"github.com/smartattd/smartattd/internal/domain/student"
	"github.com/smartattd/smartattd/internal/infrastructure/persistence/postgres"
	"github.com/smartattd/smartattd/internal/interface/cli/presenter"
	"github.com/smartattd/smartattd/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Deps contains everything the subcommands need.
type Deps struct {
	Students student.Repository

	UpdateAttendance     *command.UpdateAttendanceHandler
	BulkUpdateAttendance *command.BulkUpdateAttendanceHandler

	ClassAnalytics  *query.GetClassAnalyticsHandler
	ClassAttendance *query.GetClassAttendanceHandler
	StudentReport   *query.GetStudentReportHandler
	ClassRoster     *query.GetClassRosterHandler

	// Narrator may be nil.
	Narrator report.Narrator

	// Schema is nil when running without a database.
	Schema SchemaMigrator

	// Health lists the backing services checked by the health command.
	Health []HealthCheck

	// TargetFraction is the default target for predict.
	TargetFraction float64

	// ReferenceIntake is the intake year of first-year students.
	ReferenceIntake int

	// Location is the zone dates are printed in; nil keeps them as stored.
	Location *time.Location

	Logger *logger.Logger
}

// SchemaMigrator applies and inspects database migrations.
type SchemaMigrator interface {
	Migrate(ctx context.Context) (int, error)
	Rollback(ctx context.Context) error
	Status(ctx context.Context) ([]postgres.Migration, error)
}

// HealthCheck checks one backing service. A nil Check means the service is
// built in and always available.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handlers implements the SmartAttd subcommands.
type Handlers struct {
	deps Deps
	log  *logger.Logger
}

// NewHandlers creates the subcommand handlers.
func NewHandlers(deps Deps) *Handlers {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	if !(deps.TargetFraction > 0 && deps.TargetFraction < 1) {
		deps.TargetFraction = attendance.DefaultTargetFraction
	}
	return &Handlers{deps: deps, log: log.With(logger.Component("cli"))}
}

// Register registers all subcommands on the router.
func (h *Handlers) Register(r *Router) {
	r.RegisterCommand("migrate", "apply, inspect or roll back database migrations", CommandFunc(h.migrate))
	r.RegisterCommand("health", "check the store and cache connections", CommandFunc(h.health))
	r.RegisterCommand("add-student", "register one student", CommandFunc(h.addStudent))
	r.RegisterCommand("import-students", "register students from a CSV roster", CommandFunc(h.importStudents))
	r.RegisterCommand("students", "list registered students of a class", CommandFunc(h.students))
	r.RegisterCommand("update", "write one attendance record", CommandFunc(h.update))
	r.RegisterCommand("import", "bulk-write attendance from CSV", CommandFunc(h.importAttendance))
	r.RegisterCommand("analytics", "class risk summary with AI insight", CommandFunc(h.analytics))
	r.RegisterCommand("attendance", "class attendance register", CommandFunc(h.attendance))
	r.RegisterCommand("student", "per-student report", CommandFunc(h.student))
	r.RegisterCommand("predict", "hours needed to reach the target", CommandFunc(h.predict))
}

// ─────────────────────────────────────────────────────────────────────────────
// period flags
// ─────────────────────────────────────────────────────────────────────────────

type periodFlags struct {
	month string
	year  int
}

func (p *periodFlags) period() attendance.Period {
	return attendance.Period{Month: strings.TrimSpace(p.month), Year: p.year}
}

func bindPeriod(fs *flag.FlagSet) *periodFlags {
	p := &periodFlags{}
	fs.StringVar(&p.month, "month", "", "month name or number (default: current)")
	fs.IntVar(&p.year, "year", 0, "year (default: current)")
	return p
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEMA
// ══════════════════════════════════════════════════════════════════════════════

func (h *Handlers) migrate(ctx context.Context, cmdCtx CommandContext) error {
	fs := cmdCtx.FlagSet()
	status := fs.Bool("status", false, "list migrations and whether they are applied")
	rollback := fs.Bool("rollback", false, "roll back the last applied migration")
	if err := fs.Parse(cmdCtx.Args); err != nil {
		return err
	}
	if h.deps.Schema == nil {
		return errors.New("migrate: DATABASE_URL is not configured")
	}

	switch {
	case *status:
		migrations, err := h.deps.Schema.Status(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		presenter.Migrations(cmdCtx.Out, migrations, h.deps.Location)
		return nil

	case *rollback:
		if err := h.deps.Schema.Rollback(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		h.log.Warn("last migration rolled back")
		fmt.Fprintln(cmdCtx.Out, "rolled back the last migration")
		return nil
	}

	applied, err := h.deps.Schema.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	h.log.Info("migrations applied", logger.Int("count", applied))
	fmt.Fprintf(cmdCtx.Out, "applied %d migration(s)\n", applied)
	return nil
}

// health checks every configured service and fails if any is down.
func (h *Handlers) health(ctx context.Context, cmdCtx CommandContext) error {
	fs := cmdCtx.FlagSet()
	timeout := fs.Duration("timeout", 5*time.Second, "per-check timeout")
	if err := fs.Parse(cmdCtx.Args); err != nil {
		return err
	}

	results := make([]presenter.HealthResult, 0, len(h.deps.Health))
	var failed []string
	for _, hc := range h.deps.Health {
		res := presenter.HealthResult{Name: hc.Name}
		if hc.Check != nil {
			checkCtx, cancel := context.WithTimeout(ctx, *timeout)
			start := time.Now()
			res.Err = hc.Check(checkCtx)
			res.Latency = time.Since(start)
			cancel()
		}
		if res.Err != nil {
			failed = append(failed, hc.Name)
			h.log.Warn("health check failed", logger.Component(hc.Name), logger.Err(res.Err))
		}
		results = append(results, res)
	}

	presenter.Health(cmdCtx.Out, results)

	if len(failed) > 0 {
		return shared.WrapError("health", "Check", shared.ErrCollaboratorUnavailable,
			"unhealthy: "+strings.Join(failed, ", "), nil)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

func (h *Handlers) addStudent(ctx context.Context, cmdCtx CommandContext) error {
	fs := cmdCtx.FlagSet()
	var row StudentRow
	fs.StringVar(&row.RollNo, "roll", "", "roll number (required)")
	fs.StringVar(&row.Name, "name", "", "full name (required)")
	fs.StringVar(&row.Email, "email", "", "email (required)")
	fs.StringVar(&row.Phone, "phone", "", "phone")
	fs.StringVar(&row.Branch, "branch", "", "branch, e.g. CSE (required)")
	fs.StringVar(&row.Batch, "batch", "", "batch, e.g. 2024-2028")
	fs.IntVar(&row.YearOfStudy, "year-of-study", 0, "year of study 1-4 (instead of -batch)")
	fs.StringVar(&row.GuardianName, "guardian-name", "", "guardian name")
	fs.StringVar(&row.GuardianEmail, "guardian-email", "", "guardian email")
	fs.StringVar(&row.GuardianPhone, "guardian-phone", "", "guardian phone")
	if err := fs.Parse(cmdCtx.Args); err != nil {
		return err
	}

	s, err := h.createStudent(ctx, row)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmdCtx.Out, "registered %s\n", s)
	return nil
}

func (h *Handlers) importStudents(ctx context.Context, cmdCtx CommandContext) error {
	fs := cmdCtx.FlagSet()
	file := fs.String("file", "", "CSV roster (required)")
	if err := fs.Parse(cmdCtx.Args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("import-students: -file is required")
	}

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("import-students: %w", err)
	}
	defer f.Close()

	rows, rowErrs, err := ParseStudentCSV(f)
	if err != nil {
		return fmt.Errorf("import-students: %w", err)
	}

	created := 0
	for _, row := range rows {
		if _, err := h.createStudent(ctx, row); err != nil {
			rowErrs = append(rowErrs, RowError{Line: row.Line, Err: err})
			continue
		}
		created++
	}

	fmt.Fprintf(cmdCtx.Out, "registered %d student(s), %d row(s) rejected\n", created, len(rowErrs))
	for _, re := range rowErrs {
		fmt.Fprintf(cmdCtx.Out, "  %v\n", re)
	}
	return nil
}

func (h *Handlers) createStudent(ctx context.Context, row StudentRow) (*student.Student, error) {
	batch := student.Batch(row.Batch)
	if batch == "" && row.YearOfStudy != 0 {
		b, err := student.BatchForYear(row.YearOfStudy, h.deps.ReferenceIntake)
		if err != nil {
			return nil, err
		}
		batch = b
	}

	s, err := student.NewStudent(student.NewStudentParams{
		ID:            uuid.NewString(),
		RollNo:        row.RollNo,
		Name:          row.Name,
		Email:         row.Email,
		Phone:         row.Phone,
		Branch:        student.ParseBranch(row.Branch),
		Batch:         batch,
		GuardianName:  row.GuardianName,
		GuardianEmail: row.GuardianEmail,
		GuardianPhone: row.GuardianPhone,
	})
	if err != nil {
		return nil, err
	}

	if err := h.deps.Students.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// resolveStudentID returns id, or looks the student up by roll number.
func (h *Handlers) resolveStudentID(ctx context.Context, id, rollNo string) (string, error) {
	if id = strings.TrimSpace(id); id != "" {
		return id, nil
	}
	if rollNo = strings.TrimSpace(rollNo); rollNo == "" {
		return "", nil
	}
	s, err := h.deps.Students.GetByRollNo(ctx, rollNo)
	if err != nil {
		return "", err
	}
	return s.ID, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE WRITES
// ══════════════════════════════════════════════════════════════════════════════

func (h *Handlers) update(ctx context.Context, cmdCtx CommandContext) error {
	fs := cmdCtx.FlagSet()
	id := fs.String("student", "", "student id")
	roll := fs.String("roll", "", "roll number (instead of -student)")
	subject := fs.String("subject", "", "subject (required)")
	total := fs.Int("total", 0, "total hours conducted")
	attended := fs.Int("attended", 0, "hours attended")
	p := bindPeriod(fs)
	if err := fs.Parse(cmdCtx.Args); err != nil {
		return err
	}

	studentID, err := h.resolveStudentID(ctx, *id, *roll)
	if err != nil {
		return err
	}

	rec, err := h.deps.UpdateAttendance.Handle(ctx, command.UpdateAttendanceCommand{
		StudentID:     studentID,
		Subject:       *subject,
		TotalHours:    *total,
		AttendedHours: *attended,
		Period:        p.period(),
	})
	if err != nil {
		return err
	}

	presenter.Record(cmdCtx.Out, rec)
	return nil
}

func (h *Handlers) importAttendance(ctx context.Context, cmdCtx CommandContext) error {
	fs := cmdCtx.FlagSet()
	file := fs.String("file", "", "CSV file (required)")
	p := bindPeriod(fs)
	if err := fs.Parse(cmdCtx.Args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("import: -file is required")
	}

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	defer f.Close()

	rows, rowErrs, err := ParseAttendanceCSV(f)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	entries := make([]command.AttendanceEntry, 0, len(rows))
	lines := make([]int, 0, len(rows))
	for _, row := range rows {
		studentID, err := h.resolveStudentID(ctx, row.StudentID, row.RollNo)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: row.Line, Err: err})
			continue
		}
		entries = append(entries, command.AttendanceEntry{
			StudentID:     studentID,
			Subject:       row.Subject,
			TotalHours:    row.TotalHours,
			AttendedHours: row.AttendedHours,
		})
		lines = append(lines, row.Line)
	}

	for _, re := range rowErrs {
		fmt.Fprintf(cmdCtx.Out, "rejected %v\n", re)
	}

	res, err := h.deps.BulkUpdateAttendance.Handle(ctx, command.BulkUpdateAttendanceCommand{
		Entries: entries,
		Period:  p.period(),
	})
	if err != nil {
		return err
	}

	presenter.BulkResult(cmdCtx.Out, res, lines)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// READS
// ══════════════════════════════════════════════════════════════════════════════

func (h *Handlers) analytics(ctx context.Context, cmdCtx CommandContext) error {
	fs := cmdCtx.FlagSet()
	var q query.GetClassAnalyticsQuery
	fs.StringVar(&q.Branch, "branch", "", "branch (required)")
	fs.StringVar(&q.Batch, "batch", "", "batch (required)")
	fs.StringVar(&q.Subject, "subject", "", "subject (default: all)")
	fs.BoolVar(&q.SkipNarrative, "no-ai", false, "skip the AI insight")
	p := bindPeriod(fs)
	if err := fs.Parse(cmdCtx.Args); err != nil {
		return err
	}
	q.Period = p.period()

	res, err := h.deps.ClassAnalytics.Handle(ctx, q)
	if err != nil {
		return err
	}

	presenter.ClassAnalytics(cmdCtx.Out, q, res)
	return nil
}

func (h *Handlers) attendance(ctx context.Context, cmdCtx CommandContext) error {
	fs := cmdCtx.FlagSet()
	var q query.GetClassAttendanceQuery
	fs.StringVar(&q.Branch, "branch", "", "branch (required)")
	fs.StringVar(&q.Batch, "batch", "", "batch (required)")
	fs.StringVar(&q.Subject, "subject", "", "subject (default: all)")
	p := bindPeriod(fs)
	if err := fs.Parse(cmdCtx.Args); err != nil {
		return err
	}
	q.Period = p.period()

	res, err := h.deps.ClassAttendance.Handle(ctx, q)
	if err != nil {
		return err
	}

	presenter.ClassAttendance(cmdCtx.Out, res)
	return nil
}

func (h *Handlers) students(ctx context.Context, cmdCtx CommandContext) error {
	fs := cmdCtx.FlagSet()
	var q query.GetClassRosterQuery
	fs.StringVar(&q.Branch, "branch", "", "branch (default: all)")
	fs.StringVar(&q.Batch, "batch", "", "batch (default: all)")
	if err := fs.Parse(cmdCtx.Args); err != nil {
		return err
	}

	res, err := h.deps.ClassRoster.Handle(ctx, q)
	if err != nil {
		return err
	}

	presenter.ClassRoster(cmdCtx.Out, res)
	return nil
}

func (h *Handlers) student(ctx context.Context, cmdCtx CommandContext) error {
	fs := cmdCtx.FlagSet()
	var q query.GetStudentReportQuery
	fs.StringVar(&q.StudentID, "student", "", "student id")
	fs.StringVar(&q.RollNo, "roll", "", "roll number")
	withAI := fs.Bool("ai", false, "add an AI-written brief")
	p := bindPeriod(fs)
	if err := fs.Parse(cmdCtx.Args); err != nil {
		return err
	}
	q.Period = p.period()

	res, err := h.deps.StudentReport.Handle(ctx, q)
	if err != nil {
		return err
	}

	presenter.StudentReport(cmdCtx.Out, res)

	if *withAI {
		text, ok := h.brief(ctx, res)
		presenter.Narrative(cmdCtx.Out, "Brief", text, ok)
	}
	return nil
}

// brief asks the narrator for a student brief, falling back to the fixed
// unavailable text.
func (h *Handlers) brief(ctx context.Context, res *query.GetStudentReportResult) (string, bool) {
	if len(res.Subjects) == 0 {
		return report.NarrativeNoData, false
	}
	if h.deps.Narrator == nil {
		return report.NarrativeUnavailable, false
	}

	text, err := h.deps.Narrator.Generate(ctx, res.Prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		h.log.Warn("student brief generation failed",
			logger.StudentID(res.Student.ID),
			logger.Err(err),
		)
		return report.NarrativeUnavailable, false
	}
	return text, true
}

func (h *Handlers) predict(_ context.Context, cmdCtx CommandContext) error {
	fs := cmdCtx.FlagSet()
	attended := fs.Int("attended", 0, "hours attended")
	total := fs.Int("total", 0, "total hours conducted")
	target := fs.Float64("target", h.deps.TargetFraction, "target ratio in (0,1)")
	if err := fs.Parse(cmdCtx.Args); err != nil {
		return err
	}

	needed, err := attendance.HoursNeeded(*attended, *total, *target)
	if err != nil {
		return err
	}

	presenter.Prediction(cmdCtx.Out, *attended, *total, *target, needed)
	return nil
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case shared.IsValidation(err), shared.IsInvalidArgument(err),
		shared.IsDataInconsistency(err), shared.IsAlreadyExists(err),
		errors.Is(err, ErrUnknownCommand):
		return 2
	case shared.IsNotFound(err):
		return 3
	case shared.IsCollaboratorUnavailable(err):
		return 4
	default:
		return 1
	}
}

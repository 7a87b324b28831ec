package command

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smartattd/smartattd/internal/domain/attendance"
	"github.com/smartattd/smartattd/internal/domain/shared"
	"github.com/smartattd/smartattd/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BULK UPDATE ATTENDANCE COMMAND
// Applies a lecturer's batch of entries for one period. Entries are
// independent: a bad or failing entry never blocks its siblings.
// ══════════════════════════════════════════════════════════════════════════════

// BulkUpdateAttendanceCommand contains a batch of entries.
type BulkUpdateAttendanceCommand struct {
	Entries []AttendanceEntry

	// Period applies to every entry; zero means "now".
	Period attendance.Period
}

// Validate validates the batch as a whole. Per-entry problems are reported
// in the result instead.
func (c BulkUpdateAttendanceCommand) Validate() error {
	if len(c.Entries) == 0 {
		return shared.ErrEmptyBatch
	}
	return nil
}

// OutcomeStatus is what happened to one entry.
type OutcomeStatus string

const (
	OutcomeApplied OutcomeStatus = "applied"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// EntryOutcome is the per-entry result, in input order.
type EntryOutcome struct {
	Index   int
	Key     attendance.Key
	Status  OutcomeStatus
	Created bool
	Record  *attendance.Record
	Err     error
}

// SkippedEntry is an entry without studentId or subject.
type SkippedEntry struct {
	Index  int            `json:"index"`
	Key    attendance.Key `json:"key"`
	Reason string         `json:"reason"`
}

// FailedEntry is an entry that was rejected or whose write failed.
type FailedEntry struct {
	Index int            `json:"index"`
	Key   attendance.Key `json:"key"`
	Err   error          `json:"-"`
}

// Reason returns the error text.
func (f FailedEntry) Reason() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// BulkUpdateResult summarises a batch.
type BulkUpdateResult struct {
	Period       attendance.Period
	AppliedCount int
	CreatedCount int
	Skipped      []SkippedEntry
	Failed       []FailedEntry
	Outcomes     []EntryOutcome
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// BulkUpdateAttendanceHandler handles the BulkUpdateAttendanceCommand.
type BulkUpdateAttendanceHandler struct {
	repo   attendance.Repository
	cache  attendance.StatsCache
	config Config
	log    *logger.Logger
}

// NewBulkUpdateAttendanceHandler creates a new BulkUpdateAttendanceHandler.
// cache and log may be nil.
func NewBulkUpdateAttendanceHandler(
	repo attendance.Repository,
	cache attendance.StatsCache,
	config Config,
	log *logger.Logger,
) *BulkUpdateAttendanceHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &BulkUpdateAttendanceHandler{
		repo:   repo,
		cache:  cache,
		config: config.withDefaults(),
		log:    log.With(logger.Component("bulk_update_attendance")),
	}
}

// Handle executes the bulk update.
//
// Entries sharing a key are written one after another in batch order, so the
// last one wins. Distinct keys are written concurrently, at most MaxParallel
// at a time. Each write is a single Repository.Upsert. If ctx is cancelled,
// entries not yet written are reported as failed; written ones stay written.
func (h *BulkUpdateAttendanceHandler) Handle(ctx context.Context, cmd BulkUpdateAttendanceCommand) (*BulkUpdateResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	period, err := resolvePeriod(cmd.Period, h.config.Clock, h.config.Location)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	outcomes := make([]EntryOutcome, len(cmd.Entries))

	// Validate and group by key, preserving first-seen key order.
	groups := make(map[attendance.Key][]int)
	var order []attendance.Key

	for i, raw := range cmd.Entries {
		e := raw.normalized()
		key := attendance.NewKey(e.StudentID, e.Subject, period)
		outcomes[i] = EntryOutcome{Index: i, Key: key}

		if err := checkEntry(e); err != nil {
			outcomes[i].Err = err
			if isMissingField(err) {
				outcomes[i].Status = OutcomeSkipped
			} else {
				outcomes[i].Status = OutcomeFailed
			}
			continue
		}

		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	// Fan out across keys. Each goroutine owns the outcome slots of its
	// group, so no further synchronisation is needed.
	var g errgroup.Group
	g.SetLimit(h.config.MaxParallel)

	for _, key := range order {
		key := key // per-iteration copy (Go 1.22+ loop semantics)
		idxs := groups[key]
		g.Go(func() error {
			for _, i := range idxs {
				if err := ctx.Err(); err != nil {
					outcomes[i].Status = OutcomeFailed
					outcomes[i].Err = err
					continue
				}

				rec, created, err := h.repo.Upsert(ctx, key, cmd.Entries[i].normalized().Hours())
				if err != nil {
					outcomes[i].Status = OutcomeFailed
					outcomes[i].Err = err
					continue
				}
				outcomes[i].Status = OutcomeApplied
				outcomes[i].Record = rec
				outcomes[i].Created = created
			}
			return nil
		})
	}
	_ = g.Wait()

	result := h.collect(period, outcomes)

	h.log.Info("bulk attendance update finished",
		logger.Period(period.String()),
		logger.Int("entries", len(cmd.Entries)),
		logger.Int("keys", len(order)),
		logger.Int("applied", result.AppliedCount),
		logger.Int("created", result.CreatedCount),
		logger.Int("skipped", len(result.Skipped)),
		logger.Int("failed", len(result.Failed)),
		logger.Latency(time.Since(start)),
	)
	for _, f := range result.Failed {
		h.log.Warn("attendance entry failed",
			logger.Int("index", f.Index),
			logger.StudentID(f.Key.StudentID),
			logger.Subject(f.Key.Subject),
			logger.Err(f.Err),
		)
	}

	if result.AppliedCount > 0 {
		invalidate(ctx, h.cache, h.log, appliedSubjects(period, outcomes))
	}

	return result, nil
}

func (h *BulkUpdateAttendanceHandler) collect(period attendance.Period, outcomes []EntryOutcome) *BulkUpdateResult {
	result := &BulkUpdateResult{
		Period:   period,
		Outcomes: outcomes,
	}

	for _, o := range outcomes {
		switch o.Status {
		case OutcomeApplied:
			result.AppliedCount++
			if o.Created {
				result.CreatedCount++
			}
		case OutcomeSkipped:
			result.Skipped = append(result.Skipped, SkippedEntry{
				Index:  o.Index,
				Key:    o.Key,
				Reason: o.Err.Error(),
			})
		case OutcomeFailed:
			result.Failed = append(result.Failed, FailedEntry{
				Index: o.Index,
				Key:   o.Key,
				Err:   o.Err,
			})
		}
	}

	return result
}

func appliedSubjects(period attendance.Period, outcomes []EntryOutcome) []subjectPeriod {
	seen := make(map[string]bool)
	var pairs []subjectPeriod
	for _, o := range outcomes {
		if o.Status != OutcomeApplied || seen[o.Key.Subject] {
			continue
		}
		seen[o.Key.Subject] = true
		pairs = append(pairs, subjectPeriod{subject: o.Key.Subject, period: period})
	}
	return pairs
}

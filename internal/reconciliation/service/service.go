package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/smallbiznis/lingohub/internal/booking/domain"
	"github.com/smallbiznis/lingohub/internal/clock"
	"github.com/smallbiznis/lingohub/internal/errs"
	"github.com/smallbiznis/lingohub/internal/observability/metrics"
	"github.com/smallbiznis/lingohub/internal/reconciliation/domain"
	"github.com/smallbiznis/lingohub/pkg/db/pagination"
	"github.com/smallbiznis/lingohub/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidCursor = errs.New(errs.Validation, "invalid_cursor")

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	BookingRepo bookingdomain.Repository
	Syncer      StatusSyncer
}

// Service runs the offline consistency pipeline: scan, record, repair.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	auditor    *Auditor
	reconciler *Reconciler
}

func NewService(p Params) *Service {
	log := p.Log.Named("reconciliation.service")
	return &Service{
		db:         p.DB,
		log:        log,
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		auditor:    NewAuditor(p.DB),
		reconciler: NewReconciler(p.DB, log.Named("reconciler"), p.Clock, p.BookingRepo, p.Syncer),
	}
}

// Audit is the read-only scan. It also publishes the per-kind gauge.
func (s *Service) Audit(ctx context.Context, limit int) ([]domain.Violation, error) {
	violations, err := s.auditor.Scan(ctx, limit)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(auditedKinds))
	for _, v := range violations {
		counts[string(v.Kind)]++
	}
	metrics.Scheduler().SetViolations(auditedKinds, counts)
	return violations, nil
}

var auditedKinds = []string{
	string(domain.ViolationMismatchedStatus),
	string(domain.ViolationOrphanedPayment),
	string(domain.ViolationOrphanedEnrollment),
	string(domain.ViolationMissingPayment),
	string(domain.ViolationMissingEnrollment),
}

// Record appends violations to the admin report under one correlation id.
func (s *Service) Record(ctx context.Context, violations []domain.Violation, correlationID string) error {
	if len(violations) == 0 {
		return nil
	}
	if correlationID == "" {
		_, correlationID = correlation.EnsureCorrelationID(ctx)
	}
	now := s.clock.Now()
	rows := make([]domain.ConsistencyViolation, 0, len(violations))
	for _, v := range violations {
		rows = append(rows, domain.ConsistencyViolation{
			ID:            s.genID.Generate(),
			Kind:          v.Kind,
			EntityType:    v.EntityType,
			EntityID:      v.EntityID,
			BookingID:     v.BookingID,
			Detail:        v.Detail,
			Source:        domain.SourceAuditor,
			CorrelationID: correlationID,
			DetectedAt:    now,
		})
	}
	return s.repo.InsertViolations(ctx, s.db, rows)
}

func (s *Service) Repair(ctx context.Context, violations []domain.Violation) (*domain.RepairReport, error) {
	return s.reconciler.Repair(ctx, violations)
}

type RunOptions struct {
	Limit      int
	Record     bool
	AutoRepair bool
}

type RunResult struct {
	CorrelationID string               `json:"correlation_id"`
	Violations    []domain.Violation   `json:"violations"`
	Report        *domain.RepairReport `json:"report,omitempty"`
}

// Run scans, optionally records, and optionally repairs in one pass.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	ctx, cid := correlation.EnsureCorrelationID(ctx)
	result := &RunResult{CorrelationID: cid}
	violations, err := s.Audit(ctx, opts.Limit)
	if err != nil {
		return nil, err
	}
	result.Violations = violations

	if opts.Record {
		if err := s.Record(ctx, violations, result.CorrelationID); err != nil {
			return nil, err
		}
	}
	if !opts.AutoRepair {
		s.log.Info("reconcile scan finished",
			zap.String("correlation_id", result.CorrelationID),
			zap.Int("violations", len(violations)),
		)
		return result, nil
	}

	report, err := s.reconciler.Repair(ctx, violations)
	result.Report = report
	if err != nil {
		return result, err
	}
	s.log.Info("reconcile run finished",
		zap.String("correlation_id", result.CorrelationID),
		zap.Int("examined", report.Examined),
		zap.Int("repaired", report.Repaired),
		zap.Int("already_consistent", report.AlreadyConsistent),
		zap.Int("unrecoverable", report.Unrecoverable),
	)
	return result, nil
}

type ViolationPage struct {
	Items      []domain.ConsistencyViolation `json:"items"`
	NextCursor string                        `json:"next_cursor,omitempty"`
}

// ListViolations pages the recorded report newest first.
func (s *Service) ListViolations(ctx context.Context, rawCursor string, limit int) (*ViolationPage, error) {
	var cursor snowflake.ID
	if raw := strings.TrimSpace(rawCursor); raw != "" {
		decoded, err := pagination.DecodeCursor(raw)
		if err != nil {
			return nil, ErrInvalidCursor
		}
		id, err := snowflake.ParseString(decoded.ID)
		if err != nil || id <= 0 {
			return nil, ErrInvalidCursor
		}
		cursor = id
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	rows, err := s.repo.ListViolations(ctx, s.db, cursor, limit+1)
	if err != nil {
		return nil, err
	}
	items, more := pagination.Trim(rows, limit)
	page := &ViolationPage{Items: items}
	if more {
		next, err := pagination.EncodeCursor(pagination.Cursor{ID: items[len(items)-1].ID.String()})
		if err != nil {
			return nil, err
		}
		page.NextCursor = next
	}
	return page, nil
}

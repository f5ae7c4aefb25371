package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/lingohub/internal/config"
	"github.com/smallbiznis/lingohub/internal/observability/logger"
	reconciliationservice "github.com/smallbiznis/lingohub/internal/reconciliation/service"
	"go.uber.org/zap"
)

func (s *Server) reconcileConfig() config.ReconcileConfig {
	if s.reconcileCfg == nil {
		return config.DefaultReconcileConfig()
	}
	return s.reconcileCfg.Get()
}

type cleanupRequest struct {
	CutoffDays *int `json:"cutoff_days"`
}

// CleanupBookings deletes unfinished bookings older than the cutoff. Linked
// payments and enrollments are left for the reconciler.
func (s *Server) CleanupBookings(c *gin.Context) {
	var req cleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	cutoffDays := s.reconcileConfig().CleanupCutoffDays
	if req.CutoffDays != nil {
		cutoffDays = *req.CutoffDays
	}

	ctx := c.Request.Context()
	deleted, err := s.bookingSvc.Cleanup(ctx, cutoffDays)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	role, actorID := actorFields(c)
	logger.FromContext(ctx).Warn("admin booking cleanup",
		zap.String("actor_role", role),
		zap.String("actor_id", actorID),
		zap.Int("cutoff_days", cutoffDays),
		zap.Int64("deleted", deleted),
	)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": deleted, "cutoff_days": cutoffDays}})
}

// RepairOrphanedRecords scans, records the findings and repairs them.
func (s *Server) RepairOrphanedRecords(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}
	if limit == 0 {
		limit = s.reconcileConfig().ScanLimit
	}

	ctx := c.Request.Context()
	result, err := s.reconcileSvc.Run(ctx, reconciliationservice.RunOptions{
		Limit:      limit,
		Record:     true,
		AutoRepair: true,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	role, actorID := actorFields(c)
	logger.FromContext(ctx).Info("admin reconcile run",
		zap.String("actor_role", role),
		zap.String("actor_id", actorID),
		zap.String("correlation_id", result.CorrelationID),
		zap.Int("violations", len(result.Violations)),
	)
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// AuditRecords is the read-only scan.
func (s *Server) AuditRecords(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}
	if limit == 0 {
		limit = s.reconcileConfig().ScanLimit
	}

	violations, err := s.reconcileSvc.Audit(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": violations})
}

func (s *Server) ListViolations(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	page, err := s.reconcileSvc.ListViolations(c.Request.Context(), c.Query("cursor"), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": page.Items, "next_cursor": page.NextCursor})
}

func (s *Server) ListSettings(c *gin.Context) {
	resp, err := s.settingsSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateSettingRequest struct {
	Value *string `json:"value"`
}

func (s *Server) UpdateSetting(c *gin.Context) {
	var req updateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		AbortWithError(c, newValidationError("value", "invalid_setting_value", "value is required"))
		return
	}

	key := strings.TrimSpace(c.Param("key"))
	resp, err := s.settingsSvc.Set(c.Request.Context(), key, *req.Value)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	role, actorID := actorFields(c)
	logger.FromContext(c.Request.Context()).Info("platform setting updated",
		zap.String("actor_role", role),
		zap.String("actor_id", actorID),
		zap.String("key", resp.Key),
	)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

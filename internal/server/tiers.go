package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	tierdomain "github.com/smallbiznis/lingohub/internal/tier/domain"
)

func parsePlanType(raw string) tierdomain.PlanType {
	return tierdomain.PlanType(strings.ToUpper(strings.TrimSpace(raw)))
}

// ListCurrentTiers lists the live catalog for an audience.
func (s *Server) ListCurrentTiers(c *gin.Context) {
	audience, err := tierdomain.ParseAudience(c.Param("audience"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.tierSvc.ListTiers(c.Request.Context(), audience, false)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ResolveTier(c *gin.Context) {
	audience, err := tierdomain.ParseAudience(c.Param("audience"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.tierSvc.ResolveTier(c.Request.Context(), audience, parsePlanType(c.Param("plan_type")), s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTiers(c *gin.Context) {
	audience, err := tierdomain.ParseAudience(c.Param("audience"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	includeSuperseded, err := parseOptionalBool(c.Query("include_superseded"))
	if err != nil {
		AbortWithError(c, newValidationError("include_superseded", "invalid_include_superseded", "invalid include_superseded"))
		return
	}

	resp, err := s.tierSvc.ListTiers(c.Request.Context(), audience, includeSuperseded != nil && *includeSuperseded)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTier(c *gin.Context) {
	audience, err := tierdomain.ParseAudience(c.Param("audience"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.tierSvc.GetTier(c.Request.Context(), audience, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateTier(c *gin.Context) {
	audience, err := tierdomain.ParseAudience(c.Param("audience"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req tierdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Audience = audience
	req.PlanType = parsePlanType(string(req.PlanType))
	req.Name = strings.TrimSpace(req.Name)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))

	resp, err := s.tierSvc.CreateTier(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

// UpdateTier edits a tier. A price or rate change supersedes the current
// version instead of rewriting it.
func (s *Server) UpdateTier(c *gin.Context) {
	audience, err := tierdomain.ParseAudience(c.Param("audience"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req tierdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Audience = audience
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.tierSvc.UpdateTier(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteTier(c *gin.Context) {
	audience, err := tierdomain.ParseAudience(c.Param("audience"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.tierSvc.DeleteTier(c.Request.Context(), audience, c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RepriceTier moves live subscriptions off a superseded tier version.
func (s *Server) RepriceTier(c *gin.Context) {
	audience, err := tierdomain.ParseAudience(c.Param("audience"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.Reprice(c.Request.Context(), audience, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

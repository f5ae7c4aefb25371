package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/lingohub/internal/subscription/domain"
	tierdomain "github.com/smallbiznis/lingohub/internal/tier/domain"
)

// subscriptionCall is a Service method expression. The service is bound only
// after the holder has been validated.
type subscriptionCall func(svc subscriptiondomain.Service, ctx context.Context, holder tierdomain.Audience, id string) (*subscriptiondomain.Subscription, error)

func parseHolder(c *gin.Context) (tierdomain.Audience, error) {
	holder, err := tierdomain.ParseAudience(c.Param("holder"))
	if err != nil {
		return "", subscriptiondomain.ErrInvalidHolder
	}
	return holder, nil
}

func (s *Server) CreateSubscription(c *gin.Context) {
	holder, err := parseHolder(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req subscriptiondomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Holder = holder
	req.HolderID = strings.TrimSpace(req.HolderID)
	req.PlanType = parsePlanType(string(req.PlanType))

	resp, err := s.subscriptionSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set("subscription_id", resp.ID.String())

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetSubscription(c *gin.Context) {
	s.transitionSubscription(c, subscriptiondomain.Service.Get)
}

func (s *Server) ActivateSubscription(c *gin.Context) {
	s.transitionSubscription(c, subscriptiondomain.Service.Activate)
}

func (s *Server) RenewSubscription(c *gin.Context) {
	s.transitionSubscription(c, subscriptiondomain.Service.Renew)
}

func (s *Server) CancelSubscription(c *gin.Context) {
	s.transitionSubscription(c, subscriptiondomain.Service.Cancel)
}

func (s *Server) ExpireSubscription(c *gin.Context) {
	s.transitionSubscription(c, subscriptiondomain.Service.Expire)
}

func (s *Server) MarkSubscriptionPastDue(c *gin.Context) {
	s.transitionSubscription(c, subscriptiondomain.Service.MarkPastDue)
}

func (s *Server) ApplySubscriptionPayment(c *gin.Context) {
	s.transitionSubscription(c, subscriptiondomain.Service.ApplyPayment)
}

type changeTierRequest struct {
	PlanType string `json:"plan_type" binding:"required"`
}

func (s *Server) ChangeSubscriptionTier(c *gin.Context) {
	holder, err := parseHolder(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req changeTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("plan_type", "invalid_plan_type", "plan_type is required"))
		return
	}

	c.Set("subscription_id", c.Param("id"))
	resp, err := s.subscriptionSvc.ChangeTier(c.Request.Context(), holder, c.Param("id"), parsePlanType(req.PlanType))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSubscriptionLogs(c *gin.Context) {
	holder, err := parseHolder(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.ListLogs(c.Request.Context(), holder, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSubscriptionBillingHistory(c *gin.Context) {
	holder, err := parseHolder(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.ListBillingHistory(c.Request.Context(), holder, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) transitionSubscription(c *gin.Context, call subscriptionCall) {
	holder, err := parseHolder(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("subscription_id", c.Param("id"))
	resp, err := call(s.subscriptionSvc, c.Request.Context(), holder, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

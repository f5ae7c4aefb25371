package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	bookingdomain "github.com/smallbiznis/lingohub/internal/booking/domain"
	"github.com/smallbiznis/lingohub/internal/errs"
	"github.com/smallbiznis/lingohub/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/lingohub/internal/payment/domain"
	"go.uber.org/zap"
)

const maxWebhookBytes = 1 << 20

// CreateBooking opens a booking and its checkout. When the gateway could not
// open the checkout the failed booking is still returned, with a 502.
func (s *Server) CreateBooking(c *gin.Context) {
	var req bookingdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.bookingSvc.CreateBooking(c.Request.Context(), req)
	if resp != nil {
		c.Set("booking_id", resp.BookingID)
	}
	if err != nil {
		if resp != nil && errs.Is(err, errs.ExternalGateway) {
			_ = c.Error(err)
			_, payload := mapError(err)
			c.JSON(http.StatusBadGateway, gin.H{"data": resp, "error": payload})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetBooking(c *gin.Context) {
	resp, err := s.bookingSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("booking_id", resp.Booking.ID.String())
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// SyncBookingPayment polls the gateway for the booking's checkout session and
// applies the result.
func (s *Server) SyncBookingPayment(c *gin.Context) {
	outcome, err := s.paymentSvc.SyncBooking(c.Request.Context(), c.Param("id"))
	s.respondOutcome(c, outcome, err)
}

type paymentStatusRequest struct {
	SessionRef string `json:"session_ref" binding:"required"`
}

func (s *Server) SyncPaymentStatus(c *gin.Context) {
	var req paymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("session_ref", "invalid_session_ref", "session_ref is required"))
		return
	}

	outcome, err := s.paymentSvc.SyncStatus(c.Request.Context(), strings.TrimSpace(req.SessionRef))
	s.respondOutcome(c, outcome, err)
}

// HandlePaymentWebhook acknowledges duplicate and rejected deliveries so the
// provider stops retrying them.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	c.Set("payment_provider", provider)
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	outcome, err := s.paymentSvc.HandleWebhook(c.Request.Context(), provider, payload, c.Request.Header)
	if err != nil {
		switch {
		case errors.Is(err, paymentdomain.ErrEventAlreadyProcessed),
			errors.Is(err, paymentdomain.ErrTransitionRejected),
			errors.Is(err, paymentdomain.ErrEventIgnored):
			logger.FromContext(c.Request.Context()).Info("payment webhook ignored",
				zap.String("provider", provider),
				zap.String("reason", errs.CodeOf(err)),
			)
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.Set("booking_id", outcome.Triple.Booking.ID.String())
	c.JSON(http.StatusOK, gin.H{"status": "ok", "applied": outcome.Applied})
}

// respondOutcome returns the current triple. A rejected transition still
// reports the unchanged triple alongside the conflict.
func (s *Server) respondOutcome(c *gin.Context, outcome *paymentdomain.Outcome, err error) {
	if outcome != nil {
		c.Set("booking_id", outcome.Triple.Booking.ID.String())
	}
	if err != nil {
		if outcome != nil && errors.Is(err, paymentdomain.ErrTransitionRejected) {
			_ = c.Error(err)
			_, payload := mapError(err)
			c.JSON(http.StatusConflict, gin.H{"data": outcome, "error": payload})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": outcome})
}

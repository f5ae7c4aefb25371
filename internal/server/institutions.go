package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetInstitutionRate shows the live resolved commission rate. It is for
// display only; bookings keep the rate frozen at creation.
func (s *Server) GetInstitutionRate(c *gin.Context) {
	resp, err := s.rates.Describe(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

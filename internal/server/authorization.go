package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/lingohub/internal/authorization"
	obscontext "github.com/smallbiznis/lingohub/internal/observability/context"
)

// Admin requests are authenticated upstream. The proxy forwards the caller's
// role and id in these headers.
const (
	headerActorRole = "X-Actor-Role"
	headerActorID   = "X-Actor-Id"
)

// AdminActor copies the forwarded actor onto the request context.
func (s *Server) AdminActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := strings.ToLower(strings.TrimSpace(c.GetHeader(headerActorRole)))
		id := strings.TrimSpace(c.GetHeader(headerActorID))
		if role == "" {
			AbortWithError(c, authorization.ErrInvalidActor)
			return
		}
		ctx := obscontext.WithActor(c.Request.Context(), role, id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) authorizeAdmin(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.authzSvc == nil {
			AbortWithError(c, authorization.ErrForbidden)
			return
		}
		role, _ := obscontext.ActorFromContext(c.Request.Context())
		if err := s.authzSvc.Authorize(c.Request.Context(), role, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func actorFields(c *gin.Context) (string, string) {
	return obscontext.ActorFromContext(c.Request.Context())
}

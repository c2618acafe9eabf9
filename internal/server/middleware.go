package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coworkhq/coworkd/internal/session"
)

const (
	headerRequestID = "X-Request-Id"
	headerUserID    = "X-User-Id"
	headerUserEmail = "X-User-Email"
	headerOrgID     = "X-Org-Id"

	ctxPrincipalKey = "principal"
)

// requestID echoes or assigns a correlation id for every request.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// identity lifts the verified caller placed by the fronting auth layer into a
// Principal. The core never derives identity claims itself.
func (s *Server) identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := session.Principal{
			UserID:    strings.TrimSpace(c.GetHeader(headerUserID)),
			UserEmail: strings.TrimSpace(c.GetHeader(headerUserEmail)),
			OrgID:     strings.TrimSpace(c.GetHeader(headerOrgID)),
		}
		if !p.Authenticated() {
			abortError(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if !p.Scoped() {
			abortError(c, http.StatusForbidden, "organization scope required")
			return
		}
		c.Set(ctxPrincipalKey, p)
		c.Next()
	}
}

func principal(c *gin.Context) session.Principal {
	if v, ok := c.Get(ctxPrincipalKey); ok {
		if p, ok := v.(session.Principal); ok {
			return p
		}
	}
	return session.Principal{}
}

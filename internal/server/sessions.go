package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coworkhq/coworkd/internal/store"
)

type createSessionRequest struct {
	ModelID string `json:"modelId"`
	Title   string `json:"title"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	p := principal(c)

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		abortError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sessionID, err := store.NewSessionID()
	if err != nil {
		s.renderError(c, err)
		return
	}
	sess := &store.Session{
		SessionID: sessionID,
		UserID:    p.UserID,
		OrgID:     p.OrgID,
		ModelID:   strings.TrimSpace(req.ModelID),
		Title:     strings.TrimSpace(req.Title),
	}
	if err := s.st.CreateSession(c.Request.Context(), sess); err != nil {
		s.renderError(c, err)
		return
	}
	s.log.Info("session created", "session_id", sess.SessionID, "org_id", p.OrgID)
	c.JSON(http.StatusCreated, gin.H{"session": sess})
}

func (s *Server) handleListSessions(c *gin.Context) {
	p := principal(c)

	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			abortError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	cursor, ok := store.DecodeSessionsCursor(c.Query("cursor"))
	if !ok {
		abortError(c, http.StatusBadRequest, "invalid cursor")
		return
	}

	sessions, next, err := s.st.ListSessions(c.Request.Context(), p.OrgID, p.UserID, limit, cursor)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "nextCursor": next})
}

func (s *Server) handleGetSession(c *gin.Context) {
	p := principal(c)
	sess, err := s.st.GetSessionOwned(c.Request.Context(), p.OrgID, p.UserID, c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

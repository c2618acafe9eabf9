package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coworkhq/coworkd/internal/feedback"
)

func (s *Server) handleListFeedback(c *gin.Context) {
	p := principal(c)
	items, sum, err := s.feedback.ListForSession(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": items, "summary": sum})
}

func (s *Server) handleRecordFeedback(c *gin.Context) {
	p := principal(c)

	var req feedback.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.MessageID) == "" {
		abortError(c, http.StatusBadRequest, "missing messageId")
		return
	}
	fb, err := s.feedback.Record(c.Request.Context(), p, c.Param("id"), req)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"feedback": fb})
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coworkhq/coworkd/internal/orchestrator"
)

func (s *Server) handleListAgents(c *gin.Context) {
	p := principal(c)
	sess, err := s.st.GetSessionOwned(c.Request.Context(), p.OrgID, p.UserID, c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	agents, err := s.st.ListSubAgents(c.Request.Context(), sess.SessionID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

func (s *Server) handleCancelAgent(c *gin.Context) {
	p := principal(c)
	sess, err := s.st.GetSessionOwned(c.Request.Context(), p.OrgID, p.UserID, c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	row, err := s.st.GetSubAgent(c.Request.Context(), sess.SessionID, c.Param("agentId"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	if orchestrator.IsTerminal(row.Status) {
		abortError(c, http.StatusBadRequest, "sub-agent is not running")
		return
	}
	if !s.orch.Cancel(c.Request.Context(), row.AgentID) {
		// The agent reached a terminal state between the read and the cancel.
		abortError(c, http.StatusBadRequest, "sub-agent is not running")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "sub-agent cancelled"})
}

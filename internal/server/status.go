package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleStatus(c *gin.Context) {
	if s.monitor == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	c.JSON(http.StatusOK, s.monitor.Status(c.Request.Context()))
}

package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coworkhq/coworkd/internal/skills"
)

func (s *Server) handleListSkills(c *gin.Context) {
	p := principal(c)

	f := skills.Filters{
		Category: strings.TrimSpace(c.Query("category")),
		Search:   strings.TrimSpace(c.Query("search")),
	}
	for _, raw := range c.QueryArray("tags") {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				f.Tags = append(f.Tags, tag)
			}
		}
	}

	listing, err := s.skills.List(c.Request.Context(), p.OrgID, strings.TrimSpace(c.Query("sessionId")), f)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (s *Server) handleCreateSkill(c *gin.Context) {
	p := principal(c)

	var req skills.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sk, err := s.skills.Create(c.Request.Context(), p, req)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"skill": sk})
}

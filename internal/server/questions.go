package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleGetQuestion(c *gin.Context) {
	p := principal(c)
	if _, err := s.st.GetSessionOwned(c.Request.Context(), p.OrgID, p.UserID, c.Param("id")); err != nil {
		s.renderError(c, err)
		return
	}
	questionID := c.Param("questionId")
	q, ok := s.questions.Peek(questionID)
	if !ok {
		abortError(c, http.StatusNotFound, "not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"questionId": questionID, "question": q})
}

type answerRequest struct {
	Answers map[string]any `json:"answers"`
}

func (s *Server) handleAnswerQuestion(c *gin.Context) {
	p := principal(c)
	if _, err := s.st.GetSessionOwned(c.Request.Context(), p.OrgID, p.UserID, c.Param("id")); err != nil {
		s.renderError(c, err)
		return
	}

	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Answers) == 0 {
		abortError(c, http.StatusBadRequest, "missing answers")
		return
	}

	// Late answers are indistinguishable from unknown ids: the record is gone
	// either way.
	if !s.questions.Resolve(c.Param("questionId"), req.Answers) {
		abortError(c, http.StatusNotFound, "not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

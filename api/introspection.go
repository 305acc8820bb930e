package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coreconvo/introspection"
)

type runIntrospectionRequest struct {
	DialogueId string                   `json:"dialogue_id" binding:"required"`
	AiId       string                   `json:"ai_id" binding:"required"`
	Goal       string                   `json:"goal" binding:"required"`
	Plan       []introspection.StepPlan `json:"plan"`
}

// RunIntrospectionHandler implements POST /api/introspection/run: drives a
// self_reflection Session per §4.8 and returns the finished
// IntrospectionSession, including each step's outcome and the closing
// summary.
func (ctrl *Controller) RunIntrospectionHandler(c *gin.Context) {
	var req runIntrospectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := ctrl.intro.Run(c.Request.Context(), req.DialogueId, req.AiId, req.Goal, req.Plan)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GetIntrospectionSessionHandler implements GET /api/introspection/:id.
func (ctrl *Controller) GetIntrospectionSessionHandler(c *gin.Context) {
	session, err := ctrl.repo.GetIntrospectionSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

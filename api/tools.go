package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coreconvo/tools"
)

type toolView struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Parameters  any    `json:"parameter_schema"`
}

// ListToolsHandler implements GET /api/tools.
func (ctrl *Controller) ListToolsHandler(c *gin.Context) {
	registered := ctrl.invoker.Registry().List()
	views := make([]toolView, 0, len(registered))
	for _, t := range registered {
		views = append(views, toolView{Id: t.ID(), Name: t.Name(), Category: t.Category(), Description: t.Description(), Parameters: t.ParameterSchema()})
	}
	c.JSON(http.StatusOK, gin.H{"items": views})
}

// ListToolCategoriesHandler implements GET /api/tools/categories.
func (ctrl *Controller) ListToolCategoriesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": ctrl.invoker.Registry().Categories()})
}

type invokeToolRequest struct {
	DialogueId string         `json:"dialogue_id"`
	TurnId     string         `json:"turn_id"`
	ToolId     string         `json:"tool_id" binding:"required"`
	Parameters map[string]any `json:"parameters"`
}

// InvokeToolHandler implements POST /api/tools: a direct, out-of-pipeline
// tool invocation (e.g. for UI "try it" affordances), reusing the same
// Invoker the orchestrator's tool loop drives.
func (ctrl *Controller) InvokeToolHandler(c *gin.Context) {
	var req invokeToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result := ctrl.invoker.Invoke(c.Request.Context(), tools.Invocation{
		DialogueId: req.DialogueId,
		TurnId:     req.TurnId,
		ToolId:     req.ToolId,
		Parameters: req.Parameters,
	})
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	body := gin.H{"success": result.Success, "output": result.Output, "latency_ms": result.LatencyMs}
	if result.Err != nil {
		body["error"] = result.Err.Error()
	}
	c.JSON(status, body)
}

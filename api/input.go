package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coreconvo/domain"
	"coreconvo/inputparser"
)

// inputRequest is the wire shape of POST /api/input.
type inputRequest struct {
	DialogueId  string                 `json:"dialogue_id" binding:"required"`
	SessionId   string                 `json:"session_id"`
	TurnId      string                 `json:"turn_id"`
	SenderRole  domain.ParticipantRole `json:"sender_role" binding:"required"`
	SenderId    string                 `json:"sender_id"`
	ContentType domain.ContentType     `json:"content_type" binding:"required"`
	Content     string                 `json:"content"`
	Metadata    map[string]any         `json:"metadata"`
}

// PostInputHandler implements POST /api/input: accepts an inbound envelope,
// runs it through the orchestrator pipeline, and returns
// {message_id, status, content, content_type}.
func (ctrl *Controller) PostInputHandler(c *gin.Context) {
	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	env := inputparser.Envelope{
		DialogueId:  req.DialogueId,
		SessionId:   req.SessionId,
		TurnId:      req.TurnId,
		SenderRole:  req.SenderRole,
		SenderId:    req.SenderId,
		ContentType: req.ContentType,
		Content:     req.Content,
		Metadata:    req.Metadata,
	}

	result, err := ctrl.orch.ProcessInput(c.Request.Context(), env)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message_id":   result.MessageId,
		"status":       result.Status,
		"content":      result.Content,
		"content_type": result.ContentType,
	})
}

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"coreconvo/domain"
)

// QuerySessionsHandler implements GET /api/query/sessions.
func (ctrl *Controller) QuerySessionsHandler(c *gin.Context) {
	filter := domain.SessionFilter{
		DialogueId: c.Query("dialogue_id"),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 20),
	}
	page, err := ctrl.repo.ListSessions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// QueryTurnsHandler implements GET /api/query/turns.
func (ctrl *Controller) QueryTurnsHandler(c *gin.Context) {
	filter := domain.TurnFilter{
		DialogueId: c.Query("dialogue_id"),
		SessionId:  c.Query("session_id"),
		Status:     domain.TurnStatus(c.Query("status")),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 20),
	}
	page, err := ctrl.repo.ListTurns(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// QueryMessagesHandler implements GET /api/query/messages with role/content
// type/time-range/full-text filters.
func (ctrl *Controller) QueryMessagesHandler(c *gin.Context) {
	filter := domain.MessageFilter{
		DialogueId:  c.Query("dialogue_id"),
		SessionId:   c.Query("session_id"),
		TurnId:      c.Query("turn_id"),
		SenderRole:  domain.ParticipantRole(c.Query("sender_role")),
		ContentType: domain.ContentType(c.Query("content_type")),
		Query:       c.Query("query"),
		Page:        queryInt(c, "page", 1),
		PageSize:    queryInt(c, "page_size", 20),
	}
	if raw := c.Query("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.Since = &t
		}
	}
	if raw := c.Query("until"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.Until = &t
		}
	}
	page, err := ctrl.repo.ListMessages(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

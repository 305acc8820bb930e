package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"coreconvo/domain"
)

type createDialogueRequest struct {
	DialogueType domain.DialogueType `json:"dialogue_type"`
	HumanId      string              `json:"human_id"`
	AiId         string              `json:"ai_id"`
	RelationId   string              `json:"relation_id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Metadata     map[string]any      `json:"metadata"`
}

// CreateDialogueHandler builds a handler for POST /api/dialogues/new (fixed
// == "") and the per-type creators, each pinning dialogue_type from the
// route rather than trusting the request body.
func (ctrl *Controller) CreateDialogueHandler(fixedType domain.DialogueType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createDialogueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		dialogueType := fixedType
		if dialogueType == "" {
			dialogueType = req.DialogueType
		}
		dialogue, err := ctrl.orch.CreateDialogue(c.Request.Context(), domain.Dialogue{
			DialogueType: dialogueType,
			HumanId:      req.HumanId,
			AiId:         req.AiId,
			RelationId:   req.RelationId,
			Title:        req.Title,
			Description:  req.Description,
			Metadata:     req.Metadata,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, dialogue)
	}
}

// ListDialoguesHandler implements GET /api/dialogues[?…] and
// GET /api/query/dialogues (same filters, same shape).
func (ctrl *Controller) ListDialoguesHandler(c *gin.Context) {
	filter := domain.DialogueFilter{
		DialogueType: domain.DialogueType(c.Query("dialogue_type")),
		HumanId:      c.Query("human_id"),
		AiId:         c.Query("ai_id"),
		Page:         queryInt(c, "page", 1),
		PageSize:     queryInt(c, "page_size", 20),
	}
	if raw := c.Query("is_active"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			filter.IsActive = &b
		}
	}
	page, err := ctrl.repo.ListDialogues(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (ctrl *Controller) GetDialogueHandler(c *gin.Context) {
	dialogue, err := ctrl.repo.GetDialogue(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dialogue)
}

func (ctrl *Controller) CloseDialogueHandler(c *gin.Context) {
	if err := ctrl.orch.CloseDialogue(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coreconvo/notificationhub"
)

type notifyRequest struct {
	ParticipantId string `json:"participant_id"`
	Broadcast     bool   `json:"broadcast"`
	Data          any    `json:"data"`
	IsFinal       bool   `json:"is_final"`
}

func (ctrl *Controller) dispatchNotify(c *gin.Context, kind notificationhub.EventKind) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ev := notificationhub.Event{Type: kind, Data: req.Data, IsFinal: req.IsFinal}
	if req.Broadcast || req.ParticipantId == "" {
		ctrl.hub.Broadcast(ev)
	} else {
		ctrl.hub.Publish(req.ParticipantId, ev)
	}
	c.Status(http.StatusAccepted)
}

// NotifyMessageHandler implements POST /api/notify/message.
func (ctrl *Controller) NotifyMessageHandler(c *gin.Context) {
	ctrl.dispatchNotify(c, notificationhub.EventKindMessage)
}

// NotifyDialogueUpdateHandler implements POST /api/notify/dialogue_update.
func (ctrl *Controller) NotifyDialogueUpdateHandler(c *gin.Context) {
	ctrl.dispatchNotify(c, notificationhub.EventKindDialogueUpdate)
}

// NotifyStreamResponseHandler implements POST /api/notify/stream_response.
func (ctrl *Controller) NotifyStreamResponseHandler(c *gin.Context) {
	ctrl.dispatchNotify(c, notificationhub.EventKindStreamChunk)
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// clientFrame is the client→server frame shape of §6.5: {action, data}.
type clientFrame struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// WebsocketHandler implements GET /ws?participant_id=…&token=…, matching the
// teacher's upgrade-then-spawn-reader-goroutine pattern
// (api.FlowEventsWebsocketHandler) generalized from a flow-event stream to
// NotificationHub's per-participant Subscription.
func (ctrl *Controller) WebsocketHandler(c *gin.Context) {
	participantId := c.Query("participant_id")
	if participantId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participant_id is required"})
		return
	}

	upgrader.CheckOrigin = CheckWebSocketOrigin(ctrl.origins)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket: failed to upgrade connection")
		return
	}
	defer conn.Close()

	sub := ctrl.hub.Subscribe(participantId)
	defer sub.Close()

	stop := make(chan struct{})
	go func() {
		defer close(stop)
		for {
			if _, raw, err := conn.ReadMessage(); err != nil {
				return
			} else {
				ctrl.handleClientFrame(participantId, raw)
			}
		}
	}()

	for {
		for _, ev := range sub.Drain() {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
		if !sub.Wait(stop) {
			return
		}
	}
}

// handleClientFrame is a best-effort hook for client→server frames (e.g.
// acknowledgements); unknown actions are ignored.
func (ctrl *Controller) handleClientFrame(participantId string, raw []byte) {
	var frame clientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return
	}
	switch frame.Action {
	case "ping":
	default:
	}
}

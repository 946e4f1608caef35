package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/minutes-backend/internal/platform/logger"
	"github.com/yungbote/minutes-backend/internal/realtime/sse"
)

type EventsHandler struct {
	log *logger.Logger
	hub *sse.Hub
}

func NewEventsHandler(log *logger.Logger, hub *sse.Hub) *EventsHandler {
	return &EventsHandler{log: log.With("handler", "EventsHandler"), hub: hub}
}

// GET /api/meetings/events?meeting_id=
func (h *EventsHandler) Stream(c *gin.Context) {
	channel := sse.ChannelAll
	if id := c.Query("meeting_id"); id != "" {
		channel = sse.MeetingChannel(id)
	}
	client := h.hub.NewClient(channel)
	h.log.Debug("SSE stream open", "client_id", client.ID, "channel", channel)
	defer h.hub.CloseClient(client)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
}

package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/bekzatkhan/supply-accountability/internal/accountability"
	"github.com/bekzatkhan/supply-accountability/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventsHandler streams item state changes over a websocket. An
// authority subscribes to a session with ?session_id=; a holder gets
// only events for items snapshotted under their own ID.
type EventsHandler struct {
	Hub *accountability.Hub
}

func NewEventsHandler(hub *accountability.Hub) *EventsHandler {
	return &EventsHandler{Hub: hub}
}

const writeWait = 10 * time.Second

// Stream upgrades the connection and forwards hub events matching the
// caller's filter until the client goes away.
func (h *EventsHandler) Stream(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var filter accountability.Filter
	if getRole(c) == model.RoleAuthority {
		sid, err := strconv.ParseUint(c.QueryParam("session_id"), 10, 64)
		if err != nil || sid == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id required"})
		}
		filter = accountability.SessionFilter(sid)
	} else {
		filter = accountability.HolderFilter(uid)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	events, unsubscribe := h.Hub.Subscribe(filter)
	defer unsubscribe()

	// Reader goroutine only notices the client closing; inbound
	// frames are not part of the protocol.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return nil
			}
		case <-closed:
			return nil
		case <-c.Request().Context().Done():
			return nil
		}
	}
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"partscope/internal/logger"
	hub "partscope/internal/service/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket. The page is served from
// the same origin, so only same-origin upgrades are accepted.
var Upgrader = websocket.Upgrader{}

// EventsHandler streams the caller's session state over a websocket. The
// current snapshot is sent right after connecting.
func EventsHandler(hubService *hub.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		hubService.Register(sess.ID, connection)
		defer hubService.Unregister(sess.ID, connection)

		state := sess.Snapshot()
		if data, err := json.Marshal(state); err == nil {
			hubService.Broadcast(sess.ID, state.Version, data)
		}

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Warning("Viewer disconnected with error: %v", err)
				}
				break
			}
		}
	}
}

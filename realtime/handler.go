package realtime

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades the request and serves the realtime frame
// protocol for one socket. The connection itself is unauthenticated; access
// control happens per channel through the signed subscribe handshake, so a
// socket that never presents a valid credential receives nothing.
func HandleWebSocket(c echo.Context, hub *Hub) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		SocketID: uuid.NewString(),
		conn:     conn,
		channels: make(map[string]bool),
	}

	hub.register <- client

	established, _ := json.Marshal(connEstablishedData{SocketID: client.SocketID})
	if err := client.send(frame{Event: EventConnEstablished, Data: established}); err != nil {
		hub.unregister <- client
		return nil
	}

	go readLoop(conn, hub, client)
	return nil
}

func readLoop(conn *websocket.Conn, hub *Hub, client *Client) {
	defer func() {
		hub.unregister <- client
	}()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}

		switch f.Event {
		case EventSubscribe:
			var req subscribeData
			if err := json.Unmarshal(f.Data, &req); err != nil {
				continue
			}
			if err := hub.Subscribe(client, req.Channel, req.Auth); err != nil {
				msg, _ := json.Marshal(errorData{Message: err.Error()})
				client.send(frame{Event: EventSubscribeError, Channel: req.Channel, Data: msg})
				continue
			}
			client.send(frame{Event: EventSubscribeSucceeded, Channel: req.Channel})
		case EventUnsubscribe:
			var req subscribeData
			if err := json.Unmarshal(f.Data, &req); err != nil {
				continue
			}
			hub.Unsubscribe(client, req.Channel)
		}
	}
}

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	ws "github.com/plan-sync/backend/internal/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 65536
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketUpgrade returns a handler that upgrades HTTP connections to WebSocket.
// An optional ?user_id= limits the connection to that user's events.
func WebSocketUpgrade(hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade")
			return
		}

		client := ws.NewClient(hub, r.URL.Query().Get("user_id"))
		hub.Register(client)

		go writePump(conn, client)
		go readPump(conn, client, hub)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
func writePump(conn *websocket.Conn, client *ws.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the WebSocket connection to the hub.
func readPump(conn *websocket.Conn, client *ws.Client, hub *ws.Hub) {
	defer func() {
		hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("websocket read")
			}
			break
		}

		handleClientMessage(message, client)
	}
}

// handleClientMessage processes one client command and queues the reply.
func handleClientMessage(message []byte, client *ws.Client) {
	var cmd ws.ClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		reply(client, ws.NewMessage(ws.TypeError, ws.ErrorPayload{
			Code:    "invalid_message",
			Message: "message must be a JSON object with a type",
		}))
		return
	}

	switch cmd.Type {
	case ws.TypePing:
		reply(client, ws.NewMessage(ws.TypePong, nil))

	case ws.TypeSubscribe:
		var p ws.SubscribePayload
		if len(cmd.Payload) > 0 {
			if err := json.Unmarshal(cmd.Payload, &p); err != nil {
				reply(client, ws.NewMessage(ws.TypeError, ws.ErrorPayload{
					Code:         "invalid_payload",
					Message:      "subscribe payload must be {\"user_id\": \"...\"}",
					OriginalType: string(cmd.Type),
				}))
				return
			}
		}
		client.Subscribe(p.UserID)
		reply(client, ws.NewMessage(ws.TypeSubscribeAck, p))

	case ws.TypeUnsubscribe:
		client.Subscribe("")
		reply(client, ws.NewMessage(ws.TypeSubscribeAck, ws.SubscribePayload{}))

	default:
		reply(client, ws.NewMessage(ws.TypeError, ws.ErrorPayload{
			Code:         "unknown_command",
			Message:      "unsupported command",
			OriginalType: string(cmd.Type),
		}))
	}
}

func reply(client *ws.Client, msg ws.Message) {
	data, err := msg.JSON()
	if err != nil {
		log.Error().Err(err).Msg("encoding websocket reply")
		return
	}
	if !client.Reply(data) {
		log.Debug().Str("type", string(msg.Type)).Msg("websocket reply dropped")
	}
}

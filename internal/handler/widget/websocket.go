package widget

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 54 * time.Second
	wsWriteTimeout = 10 * time.Second
)

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outgoingMessage struct {
	Type         string      `json:"type"`
	ConnectionID string      `json:"connectionId,omitempty"`
	Data         interface{} `json:"data,omitempty"`
	Timestamp    int64       `json:"timestamp"`
}

// wsHub tracks bridge WebSocket connections.
type wsHub struct {
	h        *Handler
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*wsClient
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func newWSHub(h *Handler) *wsHub {
	return &wsHub{
		h: h,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[string]*wsClient),
	}
}

func (hub *wsHub) count() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.clients)
}

// handleWebSocket 处理WebSocket连接
func (hub *wsHub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{id: ulid.Make().String(), conn: conn}
	hub.mu.Lock()
	hub.clients[client.id] = client
	hub.mu.Unlock()

	defer func() {
		hub.mu.Lock()
		delete(hub.clients, client.id)
		hub.mu.Unlock()
		conn.Close()
		hub.h.log.Info("websocket closed", "connection", client.id)
	}()

	hub.h.log.Info("websocket connected", "connection", client.id, "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, unsubscribe := hub.h.ctrl.Subscribe()
	defer unsubscribe()

	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	go hub.pingLoop(ctx, client)

	client.send(outgoingMessage{Type: "connected", ConnectionID: client.id})
	client.send(outgoingMessage{Type: "state", Data: hub.h.ctrl.Snapshot()})
	go hub.pushLoop(ctx, client, updates)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				hub.h.log.Warn("websocket read error", "connection", client.id, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if err := hub.dispatch(ctx, msg); err != nil {
			client.sendError(msg.Type, err)
		}
	}
}

// dispatch applies one inbound command to the controller.
func (hub *wsHub) dispatch(ctx context.Context, msg inboundMessage) error {
	h := hub.h

	switch msg.Type {
	case "open":
		var payload openPayload
		if err := decodeData(msg.Data, &payload); err != nil {
			return err
		}
		h.open(ctx, payload.Message)
	case "close":
		h.ctrl.Close()
	case "draft":
		var payload textPayload
		if err := decodeData(msg.Data, &payload); err != nil {
			return err
		}
		h.ctrl.SetDraft(payload.Text)
	case "send":
		var payload textPayload
		if err := decodeData(msg.Data, &payload); err != nil {
			return err
		}
		return h.send(ctx, payload.Text)
	case "record_start":
		return h.startRecording(ctx)
	case "record_stop":
		h.stopRecording(ctx)
	case "speak":
		var payload speakPayload
		if err := decodeData(msg.Data, &payload); err != nil {
			return err
		}
		return h.speak(ctx, payload.ID)
	case "auto_speak":
		var payload autoSpeakPayload
		if err := decodeData(msg.Data, &payload); err != nil {
			return err
		}
		h.ctrl.SetAutoSpeak(payload.Enabled)
	case "new_conversation":
		h.ctrl.NewConversation()
	default:
		return fmt.Errorf("unknown command %q", msg.Type)
	}
	return nil
}

func (hub *wsHub) pushLoop(ctx context.Context, client *wsClient, updates <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			if err := client.send(outgoingMessage{Type: "state", Data: hub.h.ctrl.Snapshot()}); err != nil {
				return
			}
		}
	}
}

// pingLoop 定期发送ping消息
func (hub *wsHub) pingLoop(ctx context.Context, client *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) send(msg outgoingMessage) error {
	msg.Timestamp = time.Now().Unix()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *wsClient) sendError(command string, err error) {
	_ = c.send(outgoingMessage{
		Type: "error",
		Data: map[string]string{"command": command, "message": err.Error()},
	})
}

func decodeData(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid data: %w", err)
	}
	return nil
}

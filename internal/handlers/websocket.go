package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"casino-backend/internal/models"
	"casino-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	clientQueueLen = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	ledger services.Ledger
	hub    *WebSocketHub
	log    *logrus.Entry
}

// WebSocketHub fans game events out to the connections of the player they
// concern. A player may hold several connections.
type WebSocketHub struct {
	clients    map[int64]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	log        *logrus.Entry
}

type Client struct {
	UserID int64
	Conn   *websocket.Conn
	send   chan []byte
}

type Message struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id,omitempty"`
	GameID string `json:"game_id,omitempty"`
	Data   any    `json:"data"`
}

func NewWebSocketHub(log *logrus.Entry) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 100),
		done:       make(chan struct{}),
		log:        log,
	}
}

func NewWebSocketHandler(hub *WebSocketHub, ledger services.Ledger, log *logrus.Entry) *WebSocketHandler {
	return &WebSocketHandler{
		ledger: ledger,
		hub:    hub,
		log:    log,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetInt64("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("failed to upgrade to websocket")
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
		send:   make(chan []byte, clientQueueLen),
	}
	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}
	go client.writePump(h.log)

	h.sendBalance(c.Request.Context(), client)
	h.readPump(client)
}

func (h *WebSocketHandler) readPump(client *Client) {
	defer func() {
		select {
		case h.hub.unregister <- client:
		case <-h.hub.done:
		}
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(4096)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).WithField("user_id", client.UserID).Warn("websocket error")
			}
			return
		}
		h.handleMessage(client, &msg)
	}
}

func (c *Client) writePump(log *logrus.Entry) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.WithError(err).WithField("user_id", c.UserID).Debug("websocket write failed")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) handleMessage(client *Client, msg *Message) {
	switch msg.Type {
	case "PING":
		h.hub.deliver(client, &Message{
			Type: "PONG",
			Data: gin.H{"timestamp": time.Now().Unix()},
		})
	case "BALANCE":
		h.sendBalance(context.Background(), client)
	}
}

func (h *WebSocketHandler) sendBalance(ctx context.Context, client *Client) {
	wallet, err := h.ledger.GetWallet(ctx, client.UserID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", client.UserID).Warn("failed to get wallet for websocket")
		return
	}
	h.hub.deliver(client, &Message{Type: "BALANCE_UPDATE", Data: wallet.Response()})
}

// Run owns the client registry until ctx is cancelled.
func (hub *WebSocketHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(hub.done)
			for _, conns := range hub.clients {
				for client := range conns {
					client.Conn.Close()
				}
			}
			return

		case client := <-hub.register:
			conns, ok := hub.clients[client.UserID]
			if !ok {
				conns = make(map[*Client]struct{})
				hub.clients[client.UserID] = conns
			}
			conns[client] = struct{}{}
			hub.log.WithField("user_id", client.UserID).Debug("client registered")

		case client := <-hub.unregister:
			hub.remove(client)

		case message := <-hub.broadcast:
			hub.broadcastMessage(message)
		}
	}
}

func (hub *WebSocketHub) remove(client *Client) {
	conns, ok := hub.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := conns[client]; !ok {
		return
	}
	delete(conns, client)
	close(client.send)
	if len(conns) == 0 {
		delete(hub.clients, client.UserID)
	}
	hub.log.WithField("user_id", client.UserID).Debug("client unregistered")
}

// deliver queues msg for one client. Slow clients drop messages.
func (hub *WebSocketHub) deliver(client *Client, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		hub.log.WithError(err).Error("failed to marshal websocket message")
		return
	}
	select {
	case client.send <- data:
	default:
		hub.log.WithField("user_id", client.UserID).Warn("websocket queue full, dropping message")
	}
}

func (hub *WebSocketHub) broadcastMessage(message *Message) {
	if message.UserID != 0 {
		for client := range hub.clients[message.UserID] {
			hub.deliver(client, message)
		}
		return
	}
	for _, conns := range hub.clients {
		for client := range conns {
			hub.deliver(client, message)
		}
	}
}

// BroadcastGameEvent forwards an engine event to the player's connections.
// It never blocks the settlement path.
func (hub *WebSocketHub) BroadcastGameEvent(event *models.GameEvent) {
	msg := &Message{
		Type:   string(event.Type),
		UserID: event.UserID,
		GameID: event.GameID,
		Data:   event,
	}
	select {
	case hub.broadcast <- msg:
	default:
		hub.log.WithFields(logrus.Fields{"game_id": event.GameID, "type": event.Type}).Warn("broadcast queue full, dropping event")
	}
}

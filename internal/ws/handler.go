package ws

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/websocket"
)

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

type subscribeMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// subscriber is who is on the other end of the socket, taken from the
// session that opened it.
type subscriber struct {
	userID  string
	isStaff bool
}

// HandleWebSocket expects RequireAuth to have run. Customers may only
// subscribe to their own applications; staff may also follow the queue.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	who := subscriber{userID: c.GetString("user_id")}
	if v, ok := c.Get("user_is_staff"); ok {
		who.isStaff, _ = v.(bool)
	}
	websocket.Handler(func(conn *websocket.Conn) {
		client := NewClient(conn, who)
		go h.writer(client)
		h.reader(client)
	}).ServeHTTP(c.Writer, c.Request)
}

func (h *Handler) reader(client *Client) {
	defer func() {
		h.hub.UnsubscribeAll(client)
		client.close()
	}()

	for {
		var raw string
		if err := websocket.Message.Receive(client.conn, &raw); err != nil {
			return
		}
		var msg subscribeMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		if strings.ToLower(strings.TrimSpace(msg.Action)) != "subscribe" {
			continue
		}
		topic := subscriptionTopic(msg, client.who)
		if topic == "" {
			continue
		}
		h.hub.Subscribe(topic, client)
	}
}

func (h *Handler) writer(client *Client) {
	for payload := range client.out {
		if err := websocket.Message.Send(client.conn, string(payload)); err != nil {
			return
		}
	}
}

func subscriptionTopic(msg subscribeMessage, who subscriber) string {
	switch strings.ToLower(strings.TrimSpace(msg.Channel)) {
	case "user:applications":
		if who.userID == "" {
			return ""
		}
		return UserChannel(who.userID)
	case staffChannel:
		if !who.isStaff {
			return ""
		}
		return staffChannel
	default:
		return ""
	}
}

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/ahmedtaha100/RotateStay/backend/internal/attachments"
	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
	"github.com/ahmedtaha100/RotateStay/backend/internal/messaging"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type ConversationLister interface {
	ListConversationIDs(ctx context.Context, userID string) ([]string, error)
}

type Hub struct {
	Registry *Registry
	Router   *Router

	store      ConversationLister
	messages   *messaging.Service
	tracker    *messaging.Tracker
	validate   *validator.Validate
	log        *zap.Logger
	sendBuffer int

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub(reg *Registry, router *Router, store ConversationLister, svc *messaging.Service, tracker *messaging.Tracker, sendBuffer int, log *zap.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Hub{
		Registry:   reg,
		Router:     router,
		store:      store,
		messages:   svc,
		tracker:    tracker,
		validate:   validator.New(),
		log:        log,
		sendBuffer: sendBuffer,
		clients:    make(map[string]*Client),
	}
}

// Connect registers an upgraded connection for id and starts its pumps.
func (h *Hub) Connect(conn *websocket.Conn, id domain.Identity) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, h.sendBuffer),
		done:     make(chan struct{}),
		id:       uuid.NewString(),
		identity: id,
		ctx:      ctx,
		cancel:   cancel,
	}
	c.log = h.log.With(zap.String("conn_id", c.id), zap.String("user_id", id.UserID))

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.Registry.Register(id.UserID, c.id)
	c.log.Info("client connected")

	go c.writePump()
	go c.readPump()
	return c
}

func (h *Hub) disconnect(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()

	h.Registry.Unregister(c.identity.UserID, c.id)
	h.Router.LeaveAll(c.id)
	c.close()
	c.cancel()
	c.log.Info("client disconnected")
}

// Attach subscribes every live connection of userIDs to conversationID. Used
// when a conversation is created while its participants are connected.
func (h *Hub) Attach(conversationID string, userIDs ...string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, uid := range userIDs {
		for _, connID := range h.Registry.LiveConnections(uid) {
			if c, ok := h.clients[connID]; ok {
				h.Router.Join(c, conversationID)
			}
		}
	}
}

// Shutdown closes every connection.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.close()
	}
}

func (h *Hub) dispatch(c *Client, raw []byte) {
	var env inbound
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Debug("malformed frame", zap.Error(err))
		return
	}
	log := c.log.With(zap.String("event", env.Event))

	switch env.Event {
	case EventJoinConversations:
		if err := h.joinRooms(c); err != nil {
			log.Error("join conversations", zap.Error(err))
			h.ack(c, env.ID, ackData{Success: false, Error: "Failed to join conversations"})
			return
		}
		h.ack(c, env.ID, ackData{Success: true})

	case EventSendMessage:
		req, reason, err := decodeSend(env.Data)
		if err != nil {
			log.Info("bad send payload", zap.Error(err))
			h.ack(c, env.ID, ackData{Success: false, Error: reason})
			return
		}
		h.sendMessage(c, env.ID, req, log)

	case EventMarkAsRead:
		p, ok := h.roomPayload(env.Data)
		if !ok {
			return
		}
		if _, err := h.tracker.MarkAsRead(c.ctx, c.identity, p.ConversationID); err != nil {
			log.Info("mark as read rejected", zap.String("conversation_id", p.ConversationID), zap.Error(err))
			h.ack(c, env.ID, ackData{Success: false, Error: messaging.ClientMessage(err)})
			return
		}
		h.ack(c, env.ID, ackData{Success: true})

	case EventTypingStart, EventTypingStop:
		p, ok := h.roomPayload(env.Data)
		if !ok || !h.Router.IsSubscribed(c.id, p.ConversationID) {
			return
		}
		if env.Event == EventTypingStart {
			h.tracker.TypingStart(c.identity, p.ConversationID, c.id)
		} else {
			h.tracker.TypingStop(c.identity, p.ConversationID, c.id)
		}

	default:
		log.Debug("unknown event")
	}
}

func (h *Hub) joinRooms(c *Client) error {
	ids, err := h.store.ListConversationIDs(c.ctx, c.identity.UserID)
	if err != nil {
		return err
	}
	h.Router.Join(c, ids...)
	return nil
}

// decodeSend turns a send-message payload into a pipeline request. On failure
// it also returns the text the client is acked with.
func decodeSend(data json.RawMessage) (messaging.SendRequest, string, error) {
	var p sendPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return messaging.SendRequest{}, "Invalid message payload", err
	}
	req := messaging.SendRequest{ConversationID: p.ConversationID, Content: p.Content}
	if len(p.FileData) == 0 || string(p.FileData) == "null" {
		return req, "", nil
	}
	var f filePayload
	if err := json.Unmarshal(p.FileData, &f); err != nil {
		return messaging.SendRequest{}, messaging.ClientMessage(messaging.ErrAttachmentInvalid), err
	}
	req.File = &attachments.File{Data: f.Buffer, Type: f.Type, Name: f.Name}
	return req, "", nil
}

func (h *Hub) sendMessage(c *Client, ackID *int64, req messaging.SendRequest, log *zap.Logger) {
	msg, err := h.messages.Send(c.ctx, c.identity, req)
	if err != nil {
		reply := ackData{Success: false, Error: messaging.ClientMessage(err)}
		var rl *messaging.RateLimitError
		if errors.As(err, &rl) {
			reply.RetryAfterMs = rl.RetryAfter.Milliseconds()
		}
		log.Info("send rejected", zap.String("conversation_id", req.ConversationID), zap.Error(err))
		h.ack(c, ackID, reply)
		return
	}
	h.ack(c, ackID, ackData{Success: true, Message: msg})
}

// roomPayload decodes a payload naming a conversation. Frames without one are
// ignored.
func (h *Hub) roomPayload(data json.RawMessage) (roomPayload, bool) {
	var p roomPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return p, false
		}
	}
	if err := h.validate.Struct(p); err != nil {
		return p, false
	}
	return p, true
}

func (h *Hub) ack(c *Client, id *int64, data ackData) {
	if id == nil {
		return
	}
	frame, err := json.Marshal(outbound{Event: EventAck, ID: id, Data: data})
	if err != nil {
		c.log.Error("marshal ack", zap.Error(err))
		return
	}
	if err := c.Deliver(frame); err != nil {
		c.log.Debug("ack not delivered", zap.Error(err))
	}
}

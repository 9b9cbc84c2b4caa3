package chat

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSlowConnection   = errors.New("connection send buffer full")
)

// Subscriber is one live connection that can receive room events.
type Subscriber interface {
	ID() string
	UserID() string
	// Deliver queues frame without blocking.
	Deliver(frame []byte) error
}

// Router keeps conversation rooms and fans events out to their subscribers.
type Router struct {
	log *zap.Logger

	mu     sync.RWMutex
	rooms  map[string]map[string]Subscriber // conversation -> conn -> sub
	joined map[string]map[string]struct{}   // conn -> conversations
}

func NewRouter(log *zap.Logger) *Router {
	return &Router{
		log:    log,
		rooms:  make(map[string]map[string]Subscriber),
		joined: make(map[string]map[string]struct{}),
	}
}

func (r *Router) Join(sub Subscriber, conversationIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connRooms, ok := r.joined[sub.ID()]
	if !ok {
		connRooms = make(map[string]struct{})
		r.joined[sub.ID()] = connRooms
	}
	for _, id := range conversationIDs {
		room, ok := r.rooms[id]
		if !ok {
			room = make(map[string]Subscriber)
			r.rooms[id] = room
		}
		room[sub.ID()] = sub
		connRooms[id] = struct{}{}
	}
}

// LeaveAll removes connID from every room it joined.
func (r *Router) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.joined[connID] {
		room := r.rooms[id]
		delete(room, connID)
		if len(room) == 0 {
			delete(r.rooms, id)
		}
	}
	delete(r.joined, connID)
}

func (r *Router) IsSubscribed(connID, conversationID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[conversationID][connID]
	return ok
}

func (r *Router) RoomSize(conversationID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[conversationID])
}

func (r *Router) Broadcast(conversationID, event string, payload any) {
	r.BroadcastExcept(conversationID, event, payload, "")
}

// BroadcastExcept delivers event to every subscriber of the room except
// excludeConnID. Slow subscribers are dropped by their own Deliver.
func (r *Router) BroadcastExcept(conversationID, event string, payload any, excludeConnID string) {
	frame, err := json.Marshal(outbound{Event: event, Data: payload})
	if err != nil {
		r.log.Error("marshal room event", zap.String("event", event), zap.Error(err))
		return
	}

	r.mu.RLock()
	subs := lo.Values(r.rooms[conversationID])
	r.mu.RUnlock()

	for _, s := range subs {
		if s.ID() == excludeConnID {
			continue
		}
		err := s.Deliver(frame)
		if err == nil {
			continue
		}
		fields := []zap.Field{
			zap.String("event", event),
			zap.String("conversation_id", conversationID),
			zap.String("conn_id", s.ID()),
			zap.String("user_id", s.UserID()),
		}
		if errors.Is(err, ErrConnectionClosed) {
			r.log.Debug("skipped event for closed connection", fields...)
		} else {
			r.log.Warn("dropped event for slow connection", fields...)
		}
	}
}

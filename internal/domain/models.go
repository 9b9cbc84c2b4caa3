package domain

import (
	"strings"
	"time"
)

// Identity is the authenticated caller attached to a request or a live connection.
type Identity struct {
	UserID      string `json:"id"`
	DisplayName string `json:"name"`
	Email       string `json:"email"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u User) Identity() Identity {
	return Identity{UserID: u.ID, DisplayName: u.DisplayName(), Email: u.Email}
}

// Participant is the public projection of a user inside a conversation.
type Participant struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"-"`
}

func (p Participant) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type Conversation struct {
	ID            string        `json:"id"`
	Participants  []Participant `json:"participants"`
	LastMessageAt *time.Time    `json:"lastMessageAt"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// ConversationSummary is a conversation as listed for one caller.
type ConversationSummary struct {
	Conversation
	LastMessage *Message `json:"lastMessage"`
	UnreadCount int      `json:"unreadCount"`
}

type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	SenderID       string      `json:"senderId"`
	Sender         Participant `json:"sender"`
	Content        string      `json:"content"`
	FileURL        *string     `json:"fileUrl"`
	FileType       *string     `json:"fileType"`
	FileName       *string     `json:"fileName"`
	IsRead         bool        `json:"isRead"`
	ReadAt         *time.Time  `json:"readAt"`
	CreatedAt      time.Time   `json:"createdAt"`
}

const NotificationMessage = "MESSAGE"

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Link      string    `json:"link"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

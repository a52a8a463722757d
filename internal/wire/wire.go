// Package wire holds the JSON shapes shared by the HTTP API and the
// websocket push channel.
package wire

import "github.com/matheus3301/courier/internal/store"

// Push event names.
const (
	EventNewMessage   = "newMessage"
	EventMessagesSeen = "messagesSeen"
	EventOnlineUsers  = "getOnlineUsers"
)

// Envelope is the frame written to a websocket client.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Message is the public form of store.Message.
type Message struct {
	ID         string `json:"_id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text,omitempty"`
	Image      string `json:"image,omitempty"`
	Seen       bool   `json:"seen"`
	CreatedAt  int64  `json:"createdAt"`
}

// User is the public form of store.User. It never carries the password hash.
type User struct {
	ID         string `json:"_id"`
	Email      string `json:"email"`
	FullName   string `json:"fullName"`
	Bio        string `json:"bio"`
	ProfilePic string `json:"profilePic"`
	CreatedAt  int64  `json:"createdAt"`
}

// SeenNotice tells a sender that the receiver has seen some messages.
type SeenNotice struct {
	ReaderID   string   `json:"readerId"`
	MessageIDs []string `json:"messageIds"`
}

// FromMessage converts a stored message.
func FromMessage(m *store.Message) Message {
	return Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Image:      m.Image,
		Seen:       m.Seen,
		CreatedAt:  m.CreatedAt,
	}
}

// FromMessages converts a slice of stored messages. The result is never nil.
func FromMessages(msgs []store.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for i := range msgs {
		out = append(out, FromMessage(&msgs[i]))
	}
	return out
}

// FromUser converts a stored user.
func FromUser(u *store.User) User {
	return User{
		ID:         u.ID,
		Email:      u.Email,
		FullName:   u.FullName,
		Bio:        u.Bio,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}

package models

import (
	"time"
)

// Sender values for a message
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// DefaultChatTitle is the title a chat carries until its first user message
const DefaultChatTitle = "New Chat"

// Chat is a single ordered conversation belonging to one user. The id is an
// opaque 10-character random token generated at creation. Only the title is
// ever mutated, once, after the first user message. createdAt is assigned by
// the database so chat ordering does not depend on client clocks.
type Chat struct {
	ID        string    `json:"id" gorm:"primaryKey;size:16"`
	UserID    string    `json:"-" gorm:"index;size:128;not null"`
	Title     string    `json:"title" gorm:"size:64;not null;default:'New Chat'"`
	CreatedAt time.Time `json:"createdAt" gorm:"<-:create;type:timestamptz;not null;default:now()"`
}

// Message is one turn in a chat, authored by "user" or "bot". Text holds
// either plaintext or the base64 encrypted payload; IsEncrypted tells which.
// Records written before encryption existed have IsEncrypted false and are
// returned verbatim. Once written, the Text/IsEncrypted pair is immutable.
//
// Timestamp is assigned by the database; ties are broken by the serial ID,
// which reflects write order.
type Message struct {
	ID          uint      `json:"-" gorm:"primaryKey"`
	ExternalID  string    `json:"id" gorm:"uniqueIndex;size:40"`
	ChatID      string    `json:"-" gorm:"index:idx_messages_chat,priority:1;size:16;not null"`
	UserID      string    `json:"-" gorm:"index;size:128;not null"`
	Sender      string    `json:"sender" gorm:"size:8;not null"`
	Text        string    `json:"text" gorm:"type:text;not null"`
	IsEncrypted bool      `json:"isEncrypted" gorm:"not null;default:false"`
	Timestamp   time.Time `json:"timestamp" gorm:"<-:create;index:idx_messages_chat,priority:2;type:timestamptz;not null;default:now()"`
}

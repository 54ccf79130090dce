package models

import "time"

// Chat is a direct conversation between exactly two users. The pair is
// stored ordered (low, high) so the unique index covers both directions.
type Chat struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserLowID  uint      `gorm:"uniqueIndex:idx_chat_pair;not null" json:"-"`
	UserHighID uint      `gorm:"uniqueIndex:idx_chat_pair;not null" json:"-"`
	Users      []User    `gorm:"many2many:chat_users;constraint:OnDelete:CASCADE" json:"users"`
	Messages   []Message `gorm:"constraint:OnDelete:CASCADE" json:"messages"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ChatPair orders two participant ids the way Chat stores them.
func ChatPair(a, b uint) (low, high uint) {
	if a < b {
		return a, b
	}
	return b, a
}

// HasParticipant reports whether userID is one of the two members.
func (c *Chat) HasParticipant(userID uint) bool {
	return c.UserLowID == userID || c.UserHighID == userID
}

// Message is immutable once written.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatID    uint      `gorm:"index;not null" json:"chatId"`
	SenderID  uint      `gorm:"index;not null" json:"senderId"`
	Sender    *User     `gorm:"constraint:OnDelete:CASCADE" json:"sender,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// All lists every model for migrations.
func All() []any {
	return []any{
		&User{},
		&Post{},
		&Comment{},
		&Like{},
		&Follower{},
		&Notification{},
		&Chat{},
		&Message{},
	}
}

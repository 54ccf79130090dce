package models

import "time"

// Follower is a directed edge: FollowerID follows FollowingID.
type Follower struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FollowerID  uint      `gorm:"uniqueIndex:idx_follower_pair;not null" json:"followerId"`
	Follower    *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	FollowingID uint      `gorm:"uniqueIndex:idx_follower_pair;index;not null" json:"followingId"`
	Following   *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NotificationTypeFollow is emitted when someone starts following the recipient.
const NotificationTypeFollow = "follow"

// Notification is addressed to a single user.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Type      string    `gorm:"size:32;not null" json:"type"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	IsRead    bool      `gorm:"default:false;not null" json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

package repository

import (
	"context"

	"devlink/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowerRepository defines data access for the follow graph.
type FollowerRepository interface {
	// Follow inserts the edge and, only when it is new, the notification.
	Follow(ctx context.Context, followerID, followingID uint, notification *models.Notification) (bool, error)
	Unfollow(ctx context.Context, followerID, followingID uint) (bool, error)
	ListFollowers(ctx context.Context, userID uint) ([]*models.User, error)
	ListFollowing(ctx context.Context, userID uint) ([]*models.User, error)
	Counts(ctx context.Context, userID uint) (FollowCounts, error)
	CountsFor(ctx context.Context, userIDs []uint) (map[uint]FollowCounts, error)
}

type followerRepository struct {
	db *gorm.DB
}

// NewFollowerRepository creates a new follower repository
func NewFollowerRepository(db *gorm.DB) FollowerRepository {
	return &followerRepository{db: db}
}

func (r *followerRepository) Follow(ctx context.Context, followerID, followingID uint, notification *models.Notification) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		edge := &models.Follower{FollowerID: followerID, FollowingID: followingID}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(edge)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		if notification == nil {
			return nil
		}
		return tx.Create(notification).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return created, nil
}

func (r *followerRepository) Unfollow(ctx context.Context, followerID, followingID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follower{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *followerRepository) ListFollowers(ctx context.Context, userID uint) ([]*models.User, error) {
	return r.listUsers(ctx, "followers.follower_id", "followers.following_id = ?", userID)
}

func (r *followerRepository) ListFollowing(ctx context.Context, userID uint) ([]*models.User, error) {
	return r.listUsers(ctx, "followers.following_id", "followers.follower_id = ?", userID)
}

func (r *followerRepository) listUsers(ctx context.Context, joinColumn, where string, userID uint) ([]*models.User, error) {
	var users []*models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN followers ON users.id = "+joinColumn).
		Where(where, userID).
		Order("followers.created_at DESC").
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *followerRepository) Counts(ctx context.Context, userID uint) (FollowCounts, error) {
	var counts FollowCounts
	db := r.db.WithContext(ctx).Model(&models.Follower{})
	if err := db.Where("following_id = ?", userID).Count(&counts.Followers).Error; err != nil {
		return counts, models.NewInternalError(err)
	}
	db = r.db.WithContext(ctx).Model(&models.Follower{})
	if err := db.Where("follower_id = ?", userID).Count(&counts.Following).Error; err != nil {
		return counts, models.NewInternalError(err)
	}
	return counts, nil
}

type groupCount struct {
	UserID uint
	Total  int64
}

// CountsFor returns follow counts for many users in two grouped queries.
func (r *followerRepository) CountsFor(ctx context.Context, userIDs []uint) (map[uint]FollowCounts, error) {
	out := make(map[uint]FollowCounts, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var followers, following []groupCount
	err := r.db.WithContext(ctx).Model(&models.Follower{}).
		Select("following_id AS user_id, COUNT(*) AS total").
		Where("following_id IN ?", userIDs).
		Group("following_id").
		Scan(&followers).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	err = r.db.WithContext(ctx).Model(&models.Follower{}).
		Select("follower_id AS user_id, COUNT(*) AS total").
		Where("follower_id IN ?", userIDs).
		Group("follower_id").
		Scan(&following).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	for _, row := range followers {
		c := out[row.UserID]
		c.Followers = row.Total
		out[row.UserID] = c
	}
	for _, row := range following {
		c := out[row.UserID]
		c.Following = row.Total
		out[row.UserID] = c
	}
	return out, nil
}

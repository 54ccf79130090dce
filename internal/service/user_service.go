package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"devlink/internal/cache"
	"devlink/internal/middleware"
	"devlink/internal/models"
	"devlink/internal/notifications"
	"devlink/internal/observability"
	"devlink/internal/repository"
	"devlink/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxBioLen    = 500
	maxSkillsLen = 500
)

// UserProfile is the public view of a user with follow counts.
type UserProfile struct {
	models.User
	FollowersCount int64 `json:"followersCount"`
	FollowingCount int64 `json:"followingCount"`
}

// UpdateProfileInput carries optional fields; nil leaves a field untouched.
type UpdateProfileInput struct {
	ActorID        uint    `json:"-"`
	TargetID       uint    `json:"-"`
	Username       *string `json:"username"`
	Bio            *string `json:"bio"`
	Skills         *string `json:"skills"`
	ProfilePicture *string `json:"profilePicture"`
}

type UserService struct {
	users     repository.UserRepository
	followers repository.FollowerRepository
	cache     *cache.Cache
	realtime  notifications.Broadcaster
}

func NewUserService(
	users repository.UserRepository,
	followers repository.FollowerRepository,
	c *cache.Cache,
	realtime notifications.Broadcaster,
) *UserService {
	return &UserService{users: users, followers: followers, cache: c, realtime: realtime}
}

func (s *UserService) ListUsers(ctx context.Context) ([]*UserProfile, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	counts, err := s.followers.CountsFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	profiles := make([]*UserProfile, len(users))
	for i, u := range users {
		c := counts[u.ID]
		profiles[i] = &UserProfile{User: *u, FollowersCount: c.Followers, FollowingCount: c.Following}
	}
	return profiles, nil
}

// GetProfile reads through the user cache.
func (s *UserService) GetProfile(ctx context.Context, id uint) (*UserProfile, error) {
	var profile UserProfile
	err := s.cache.Aside(ctx, cache.UserKey(id), &profile, cache.UserTTL, func() error {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		counts, err := s.followers.Counts(ctx, id)
		if err != nil {
			return err
		}
		profile = UserProfile{User: *user, FollowersCount: counts.Followers, FollowingCount: counts.Following}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	if in.ActorID != in.TargetID {
		return nil, models.NewForbiddenError("You can only update your own profile")
	}

	update := repository.ProfileUpdate{Bio: in.Bio, Skills: in.Skills, ProfilePicture: in.ProfilePicture}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		update.Username = &username
	}
	if in.Bio != nil && len(*in.Bio) > maxBioLen {
		return nil, models.NewValidationError(fmt.Sprintf("bio must be at most %d characters", maxBioLen))
	}
	if in.Skills != nil && len(*in.Skills) > maxSkillsLen {
		return nil, models.NewValidationError(fmt.Sprintf("skills must be at most %d characters", maxSkillsLen))
	}

	user, err := s.users.UpdateProfile(ctx, in.TargetID, update)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateUser(ctx, in.TargetID)
	return user, nil
}

// SetProfilePicture stores a new avatar URL for userID.
func (s *UserService) SetProfilePicture(ctx context.Context, userID uint, url string) (*models.User, error) {
	return s.UpdateProfile(ctx, UpdateProfileInput{ActorID: userID, TargetID: userID, ProfilePicture: &url})
}

func (s *UserService) DeleteUser(ctx context.Context, actorID, targetID uint) error {
	if actorID != targetID {
		return models.NewForbiddenError("You can only delete your own account")
	}
	// Neighbours' cached counts go stale once the edges cascade away.
	affected := []uint{targetID}
	followers, err := s.followers.ListFollowers(ctx, targetID)
	if err != nil {
		return err
	}
	following, err := s.followers.ListFollowing(ctx, targetID)
	if err != nil {
		return err
	}
	for _, u := range append(followers, following...) {
		affected = append(affected, u.ID)
	}

	if err := s.users.Delete(ctx, targetID); err != nil {
		return err
	}
	s.cache.InvalidateUser(ctx, affected...)
	return nil
}

// Follow is idempotent. Only a newly created edge produces a notification,
// which is also pushed to the target's open sockets.
func (s *UserService) Follow(ctx context.Context, actorID uint, actorUsername string, targetID uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "user", "follow",
		attribute.Int64("user.id", int64(actorID)),
		attribute.Int64("target.id", int64(targetID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if actorID == targetID {
		return models.NewValidationError("You cannot follow yourself")
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return err
	}

	notice := &models.Notification{
		UserID:  targetID,
		Type:    models.NotificationTypeFollow,
		Message: fmt.Sprintf("%s started following you", actorUsername),
	}
	created, err := s.followers.Follow(ctx, actorID, targetID, notice)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	s.cache.InvalidateUser(ctx, actorID, targetID)
	if s.realtime != nil {
		if err := s.realtime.NotifyUser(ctx, targetID, notifications.EventNotification, notice); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to push follow notification",
				slog.Uint64("user_id", uint64(targetID)),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Unfollow removes the edge if present.
func (s *UserService) Unfollow(ctx context.Context, actorID, targetID uint) error {
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return err
	}
	removed, err := s.followers.Unfollow(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if removed {
		s.cache.InvalidateUser(ctx, actorID, targetID)
	}
	return nil
}

func (s *UserService) Followers(ctx context.Context, userID uint) ([]models.UserSummary, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.followers.ListFollowers(ctx, userID)
	if err != nil {
		return nil, err
	}
	return summaries(users), nil
}

func (s *UserService) Following(ctx context.Context, userID uint) ([]models.UserSummary, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.followers.ListFollowing(ctx, userID)
	if err != nil {
		return nil, err
	}
	return summaries(users), nil
}

func summaries(users []*models.User) []models.UserSummary {
	out := make([]models.UserSummary, len(users))
	for i, u := range users {
		out[i] = u.Summary()
	}
	return out
}

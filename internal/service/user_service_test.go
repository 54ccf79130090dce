package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"devlink/internal/cache"
	"devlink/internal/models"
	"devlink/internal/notifications"
	"devlink/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestUserService_GetProfileUsesCache(t *testing.T) {
	f := newFixture(t)
	c, mr := newTestCache(t)
	svc := NewUserService(f.users, f.followers, c, f.realtime)
	ctx := context.Background()

	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")
	require.NoError(t, svc.Follow(ctx, bob.ID, bob.Username, ada.ID))

	profile, err := svc.GetProfile(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", profile.Username)
	assert.Equal(t, int64(1), profile.FollowersCount)
	assert.True(t, mr.Exists(cache.UserKey(ada.ID)))

	cached, err := mr.Get(cache.UserKey(ada.ID))
	require.NoError(t, err)
	assert.NotContains(t, cached, "password")

	// A cached profile is served without touching the store.
	require.NoError(t, f.db.Exec("UPDATE users SET bio = ? WHERE id = ?", "changed", ada.ID).Error)
	profile, err = svc.GetProfile(ctx, ada.ID)
	require.NoError(t, err)
	assert.Empty(t, profile.Bio)

	bio := "mathematician"
	_, err = svc.UpdateProfile(ctx, UpdateProfileInput{ActorID: ada.ID, TargetID: ada.ID, Bio: &bio})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.UserKey(ada.ID)))

	profile, err = svc.GetProfile(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "mathematician", profile.Bio)
}

func TestUserService_GetProfileWithoutRedis(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, f.followers, nil, nil)

	_, err := svc.GetProfile(context.Background(), 42)
	assertCode(t, err, models.CodeNotFound, "User not found")
}

func TestUserService_UpdateProfileRules(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, f.followers, nil, nil)
	ctx := context.Background()

	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")

	bio := "hi"
	_, err := svc.UpdateProfile(ctx, UpdateProfileInput{ActorID: bob.ID, TargetID: ada.ID, Bio: &bio})
	assertCode(t, err, models.CodeForbidden, "You can only update your own profile")

	long := strings.Repeat("x", 501)
	_, err = svc.UpdateProfile(ctx, UpdateProfileInput{ActorID: ada.ID, TargetID: ada.ID, Bio: &long})
	assertCode(t, err, models.CodeValidation, "")

	bad := "a"
	_, err = svc.UpdateProfile(ctx, UpdateProfileInput{ActorID: ada.ID, TargetID: ada.ID, Username: &bad})
	assertCode(t, err, models.CodeValidation, "")

	taken := "bob"
	_, err = svc.UpdateProfile(ctx, UpdateProfileInput{ActorID: ada.ID, TargetID: ada.ID, Username: &taken})
	assertCode(t, err, models.CodeValidation, "Username already exists")

	name := " ada.l "
	skills := "go,sql"
	user, err := svc.UpdateProfile(ctx, UpdateProfileInput{ActorID: ada.ID, TargetID: ada.ID, Username: &name, Skills: &skills})
	require.NoError(t, err)
	assert.Equal(t, "ada.l", user.Username)
	assert.Equal(t, "go,sql", user.Skills)

	user, err = svc.SetProfilePicture(ctx, ada.ID, "/uploads/profile/1/a.webp")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/profile/1/a.webp", user.ProfilePicture)
}

func TestUserService_DeleteUser(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, f.followers, nil, nil)
	ctx := context.Background()

	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")

	assertCode(t, svc.DeleteUser(ctx, bob.ID, ada.ID), models.CodeForbidden, "You can only delete your own account")
	require.NoError(t, svc.DeleteUser(ctx, ada.ID, ada.ID))

	_, err := f.users.GetByID(ctx, ada.ID)
	assertCode(t, err, models.CodeNotFound, "")
}

func TestUserService_DeleteUserRefreshesNeighbours(t *testing.T) {
	f := newFixture(t)
	c, mr := newTestCache(t)
	svc := NewUserService(f.users, f.followers, c, nil)
	ctx := context.Background()

	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")
	carol := testutil.CreateUser(t, f.db, "carol")
	dave := testutil.CreateUser(t, f.db, "dave")
	require.NoError(t, svc.Follow(ctx, bob.ID, bob.Username, ada.ID))
	require.NoError(t, svc.Follow(ctx, ada.ID, ada.Username, carol.ID))

	for _, id := range []uint{bob.ID, carol.ID, dave.ID} {
		_, err := svc.GetProfile(ctx, id)
		require.NoError(t, err)
		require.True(t, mr.Exists(cache.UserKey(id)))
	}

	require.NoError(t, svc.DeleteUser(ctx, ada.ID, ada.ID))

	assert.False(t, mr.Exists(cache.UserKey(bob.ID)), "follower entry dropped")
	assert.False(t, mr.Exists(cache.UserKey(carol.ID)), "followee entry dropped")
	assert.True(t, mr.Exists(cache.UserKey(dave.ID)), "unrelated entry kept")

	profile, err := svc.GetProfile(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, profile.FollowingCount)
	profile, err = svc.GetProfile(ctx, carol.ID)
	require.NoError(t, err)
	assert.Zero(t, profile.FollowersCount)
}

func TestUserService_FollowNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, f.followers, nil, f.realtime)
	ctx := context.Background()

	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")

	require.NoError(t, svc.Follow(ctx, bob.ID, bob.Username, ada.ID))
	require.NoError(t, svc.Follow(ctx, bob.ID, bob.Username, ada.ID))

	calls := f.realtime.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "user", calls[0].Room)
	assert.Equal(t, ada.ID, calls[0].ID)
	assert.Equal(t, notifications.EventNotification, calls[0].Event)

	notes, err := f.notes.ListForUser(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "bob started following you", notes[0].Message)
	assert.Equal(t, models.NotificationTypeFollow, notes[0].Type)

	followers, err := svc.Followers(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "bob", followers[0].Username)

	following, err := svc.Following(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, ada.ID, following[0].ID)

	require.NoError(t, svc.Unfollow(ctx, bob.ID, ada.ID))
	require.NoError(t, svc.Unfollow(ctx, bob.ID, ada.ID))
	followers, err = svc.Followers(ctx, ada.ID)
	require.NoError(t, err)
	assert.Empty(t, followers)
}

func TestUserService_FollowRules(t *testing.T) {
	recorder := recordSpans(t)
	f := newFixture(t)
	f.realtime.err = errors.New("hub gone")
	svc := NewUserService(f.users, f.followers, nil, f.realtime)
	ctx := context.Background()

	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")

	assertCode(t, svc.Follow(ctx, ada.ID, ada.Username, ada.ID), models.CodeValidation, "You cannot follow yourself")
	assertCode(t, svc.Follow(ctx, ada.ID, ada.Username, 999), models.CodeNotFound, "User not found")
	assertCode(t, svc.Unfollow(ctx, ada.ID, 999), models.CodeNotFound, "User not found")

	// A failed push does not fail the follow.
	require.NoError(t, svc.Follow(ctx, ada.ID, ada.Username, bob.ID))

	spans := spanNamed(t, recorder, "user.follow")
	require.Len(t, spans, 3)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, codes.Unset, spans[2].Status().Code)
}

func TestUserService_ListUsersCarriesCounts(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, f.followers, nil, nil)
	ctx := context.Background()

	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")
	cy := testutil.CreateUser(t, f.db, "cy")
	require.NoError(t, svc.Follow(ctx, bob.ID, bob.Username, ada.ID))
	require.NoError(t, svc.Follow(ctx, cy.ID, cy.Username, ada.ID))

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, int64(2), users[0].FollowersCount)
	assert.Equal(t, int64(1), users[1].FollowingCount)
}

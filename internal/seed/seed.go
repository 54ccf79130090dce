// Package seed fills a database with demo users, posts and conversations.
// It is meant for development and tests only.
package seed

import (
	"context"
	"fmt"
	"strings"

	"devlink/internal/middleware"
	"devlink/internal/models"
	"devlink/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Options controls the amount of generated data.
type Options struct {
	Users        int
	PostsPerUser int
	Chats        int
	// RandSeed makes the generated content reproducible when non-zero.
	RandSeed int64
	// HashCost overrides the bcrypt cost; zero means bcrypt.DefaultCost.
	HashCost int
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Posts    int
	Follows  int
	Likes    int
	Comments int
	Chats    int
	Messages int
}

// Seeder writes generated entities through the repositories so the same
// invariants apply as for API traffic.
type Seeder struct {
	db        *gorm.DB
	faker     *gofakeit.Faker
	opts      Options
	users     repository.UserRepository
	posts     repository.PostRepository
	comments  repository.CommentRepository
	likes     repository.LikeRepository
	followers repository.FollowerRepository
	chats     repository.ChatRepository
}

// NewSeeder binds a seeder to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	faker := gofakeit.New(opts.RandSeed)
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	return &Seeder{
		db:        db,
		faker:     faker,
		opts:      opts,
		users:     repository.NewUserRepository(db),
		posts:     repository.NewPostRepository(db),
		comments:  repository.NewCommentRepository(db),
		likes:     repository.NewLikeRepository(db),
		followers: repository.NewFollowerRepository(db),
		chats:     repository.NewChatRepository(db),
	}
}

// ClearAll deletes every row, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tables := []string{
		"messages", "chat_users", "chats", "notifications",
		"likes", "comments", "followers", "posts", "users",
	}
	for _, table := range tables {
		if err := s.db.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Run seeds users, their posts, a follow mesh, engagement and chats.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	users, err := s.SeedUsers(ctx, s.opts.Users)
	if err != nil {
		return sum, err
	}
	sum.Users = len(users)

	posts, err := s.SeedPosts(ctx, users, s.opts.PostsPerUser)
	if err != nil {
		return sum, err
	}
	sum.Posts = len(posts)

	if sum.Follows, err = s.SeedSocialMesh(ctx, users); err != nil {
		return sum, err
	}
	if sum.Likes, sum.Comments, err = s.SeedEngagement(ctx, users, posts); err != nil {
		return sum, err
	}
	if sum.Chats, sum.Messages, err = s.SeedChats(ctx, users, s.opts.Chats); err != nil {
		return sum, err
	}

	middleware.Logger.Info("seeding complete",
		"users", sum.Users, "posts", sum.Posts, "follows", sum.Follows,
		"likes", sum.Likes, "comments", sum.Comments, "chats", sum.Chats, "messages", sum.Messages)
	return sum, nil
}

// SeedUsers creates n accounts sharing DefaultPassword.
func (s *Seeder) SeedUsers(ctx context.Context, n int) ([]*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), s.opts.HashCost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}

	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		username := s.username(i)
		user := &models.User{
			Username: username,
			Email:    strings.ToLower(username) + "@" + s.faker.DomainName(),
			Password: string(hash),
			Bio:      s.faker.JobTitle() + ". " + s.faker.HackerPhrase(),
			Skills:   strings.Join(s.skills(), ", "),
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("create user %s: %w", username, err)
		}
		users = append(users, user)
	}
	return users, nil
}

// username is unique per index and fits the 30 character column.
func (s *Seeder) username(i int) string {
	base := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		return -1
	}, s.faker.Username())
	if len(base) > 20 {
		base = base[:20]
	}
	return fmt.Sprintf("%s_%d", base, i)
}

func (s *Seeder) skills() []string {
	want := s.faker.Number(1, 4)
	seen := map[string]bool{}
	var out []string
	for len(out) < want {
		lang := s.faker.ProgrammingLanguage()
		if seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, lang)
	}
	return out
}

// SeedPosts gives every user perUser posts.
func (s *Seeder) SeedPosts(ctx context.Context, users []*models.User, perUser int) ([]*models.Post, error) {
	posts := make([]*models.Post, 0, len(users)*perUser)
	for _, user := range users {
		for i := 0; i < perUser; i++ {
			post := &models.Post{
				UserID:  user.ID,
				Content: s.faker.Paragraph(1, 3, 12, " "),
			}
			if s.faker.Number(0, 4) == 0 {
				post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", s.faker.UUID())
			}
			if err := s.posts.Create(ctx, post); err != nil {
				return nil, fmt.Errorf("create post: %w", err)
			}
			posts = append(posts, post)
		}
	}
	return posts, nil
}

// SeedSocialMesh makes each user follow a random subset of the others and
// records the matching follow notifications.
func (s *Seeder) SeedSocialMesh(ctx context.Context, users []*models.User) (int, error) {
	if len(users) < 2 {
		return 0, nil
	}
	follows := 0
	for _, follower := range users {
		for _, target := range users {
			if target.ID == follower.ID || s.faker.Number(0, 2) != 0 {
				continue
			}
			notice := &models.Notification{
				UserID:  target.ID,
				Type:    models.NotificationTypeFollow,
				Message: fmt.Sprintf("%s started following you", follower.Username),
			}
			created, err := s.followers.Follow(ctx, follower.ID, target.ID, notice)
			if err != nil {
				return follows, err
			}
			if created {
				follows++
			}
		}
	}
	return follows, nil
}

// SeedEngagement sprinkles likes and comments over posts.
func (s *Seeder) SeedEngagement(ctx context.Context, users []*models.User, posts []*models.Post) (likes, comments int, err error) {
	for _, post := range posts {
		for _, user := range users {
			if s.faker.Number(0, 3) == 0 {
				if err := s.likes.Create(ctx, &models.Like{UserID: user.ID, PostID: post.ID}); err != nil {
					return likes, comments, err
				}
				likes++
			}
			if s.faker.Number(0, 7) == 0 {
				comment := &models.Comment{PostID: post.ID, UserID: user.ID, Content: s.faker.Sentence(s.faker.Number(4, 16))}
				if err := s.comments.Create(ctx, comment); err != nil {
					return likes, comments, err
				}
				comments++
			}
		}
	}
	return likes, comments, nil
}

// SeedChats opens up to n conversations between random pairs, each with a
// short exchange.
func (s *Seeder) SeedChats(ctx context.Context, users []*models.User, n int) (chats, messages int, err error) {
	if len(users) < 2 {
		return 0, 0, nil
	}
	for i := 0; i < n; i++ {
		a := users[s.faker.Number(0, len(users)-1)]
		b := users[s.faker.Number(0, len(users)-1)]
		if a.ID == b.ID {
			continue
		}
		chat, created, err := s.chats.FindOrCreate(ctx, a.ID, b.ID)
		if err != nil {
			return chats, messages, err
		}
		if !created {
			continue
		}
		chats++

		speakers := [2]*models.User{a, b}
		for j := 0; j < s.faker.Number(2, 8); j++ {
			msg := &models.Message{
				ChatID:   chat.ID,
				SenderID: speakers[j%2].ID,
				Content:  s.faker.Sentence(s.faker.Number(3, 12)),
			}
			if err := s.chats.CreateMessage(ctx, msg); err != nil {
				return chats, messages, err
			}
			messages++
		}
	}
	return chats, messages, nil
}

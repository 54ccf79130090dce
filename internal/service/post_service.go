package service

import (
	"context"
	"strings"

	"devlink/internal/models"
	"devlink/internal/repository"
	"devlink/internal/validation"
)

const maxPostContentLen = 5000

type CreatePostInput struct {
	UserID   uint   `json:"-"`
	Content  string `json:"content" validate:"required,notblank,max=5000"`
	ImageURL string `json:"-"`
}

type UpdatePostInput struct {
	UserID  uint   `json:"-"`
	PostID  uint   `json:"-"`
	Content string `json:"content" validate:"required,notblank,max=5000"`
}

type PostService struct {
	posts repository.PostRepository
}

func NewPostService(posts repository.PostRepository) *PostService {
	return &PostService{posts: posts}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	return s.create(ctx, in)
}

// CreateImagePost stores a post whose image was already uploaded; content is optional.
func (s *PostService) CreateImagePost(ctx context.Context, userID uint, content, imageURL string) (*models.Post, error) {
	content = strings.TrimSpace(content)
	if len(content) > maxPostContentLen {
		return nil, models.NewValidationError("content must be at most 5000 characters")
	}
	return s.create(ctx, CreatePostInput{UserID: userID, Content: content, ImageURL: imageURL})
}

func (s *PostService) create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	post := &models.Post{UserID: in.UserID, Content: in.Content, ImageURL: in.ImageURL}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.posts.GetByID(ctx, post.ID)
}

func (s *PostService) ListPosts(ctx context.Context) ([]*models.Post, error) {
	return s.posts.List(ctx)
}

func (s *PostService) ListUserPosts(ctx context.Context, userID uint) ([]*models.Post, error) {
	return s.posts.ListByUser(ctx, userID)
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.posts.GetByID(ctx, id)
}

// UpdatePost changes the content of a post owned by in.UserID.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.ownedPost(ctx, in.UserID, in.PostID); err != nil {
		return nil, err
	}
	return s.posts.UpdateContent(ctx, in.PostID, in.Content)
}

func (s *PostService) DeletePost(ctx context.Context, userID, postID uint) error {
	if _, err := s.ownedPost(ctx, userID, postID); err != nil {
		return err
	}
	return s.posts.Delete(ctx, postID)
}

func (s *PostService) ownedPost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, models.NewForbiddenError("Unauthorized")
	}
	return post, nil
}

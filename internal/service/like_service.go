package service

import (
	"context"

	"devlink/internal/models"
	"devlink/internal/repository"
)

// LikeService rejects duplicate likes and unlikes of missing likes,
// unlike follows which are idempotent.
type LikeService struct {
	posts repository.PostRepository
	likes repository.LikeRepository
}

func NewLikeService(posts repository.PostRepository, likes repository.LikeRepository) *LikeService {
	return &LikeService{posts: posts, likes: likes}
}

func (s *LikeService) Like(ctx context.Context, userID, postID uint) error {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return err
	}
	liked, err := s.likes.Exists(ctx, userID, postID)
	if err != nil {
		return err
	}
	if liked {
		return models.NewValidationError("You have already liked this post")
	}
	return s.likes.Create(ctx, &models.Like{UserID: userID, PostID: postID})
}

func (s *LikeService) Unlike(ctx context.Context, userID, postID uint) error {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return err
	}
	removed, err := s.likes.Delete(ctx, userID, postID)
	if err != nil {
		return err
	}
	if !removed {
		return models.NewValidationError("You haven't liked this post")
	}
	return nil
}

// LikeView is one entry of a post's likes with the liker's public fields.
type LikeView struct {
	ID     uint               `json:"id"`
	PostID uint               `json:"postId"`
	UserID uint               `json:"userId"`
	User   models.UserSummary `json:"user"`
}

func (s *LikeService) ListLikes(ctx context.Context, postID uint) ([]LikeView, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	likes, err := s.likes.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	out := make([]LikeView, 0, len(likes))
	for _, l := range likes {
		view := LikeView{ID: l.ID, PostID: l.PostID, UserID: l.UserID}
		if l.User != nil {
			view.User = l.User.Summary()
		}
		out = append(out, view)
	}
	return out, nil
}

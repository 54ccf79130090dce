package service

import (
	"context"
	"strings"

	"devlink/internal/models"
	"devlink/internal/repository"
)

// SearchUser is the projection of a user returned by search.
type SearchUser struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	Bio            string `json:"bio"`
	ProfilePicture string `json:"profilePicture"`
}

type SearchResult struct {
	Users []SearchUser   `json:"users"`
	Posts []*models.Post `json:"posts"`
}

type SearchService struct {
	users repository.UserRepository
	posts repository.PostRepository
}

func NewSearchService(users repository.UserRepository, posts repository.PostRepository) *SearchService {
	return &SearchService{users: users, posts: posts}
}

// Search matches users by username or bio and posts by content, case-insensitively.
func (s *SearchService) Search(ctx context.Context, query string) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Query parameter is required")
	}

	users, err := s.users.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{Users: make([]SearchUser, 0, len(users)), Posts: posts}
	for _, u := range users {
		result.Users = append(result.Users, SearchUser{
			ID:             u.ID,
			Username:       u.Username,
			Bio:            u.Bio,
			ProfilePicture: u.ProfilePicture,
		})
	}
	if result.Posts == nil {
		result.Posts = []*models.Post{}
	}
	return result, nil
}

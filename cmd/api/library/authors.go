package library

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Author struct {
	ID        uuid.UUID
	FullName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateAuthorRequest struct {
	FullName string
}

type UpdateAuthorRequest struct {
	ID       uuid.UUID
	FullName string
}

func (s *Service) CreateAuthor(ctx context.Context, req CreateAuthorRequest) (Author, error) {
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		validation := NewErrValidation()
		validation.Add("full_name", msgFieldRequired)
		return Author{}, validation
	}

	createdAt := s.now().UTC().Round(time.Millisecond)
	newAuthor := Author{
		ID:        uuid.New(),
		FullName:  fullName,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	return s.repo.CreateAuthor(ctx, newAuthor)
}

func (s *Service) GetAuthor(ctx context.Context, id uuid.UUID) (Author, error) {
	return s.repo.GetAuthorByID(ctx, id)
}

func (s *Service) ListAuthors(ctx context.Context, name string) ([]Author, error) {
	return s.repo.ListAuthors(ctx, name)
}

func (s *Service) UpdateAuthor(ctx context.Context, req UpdateAuthorRequest) (Author, error) {
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		validation := NewErrValidation()
		validation.Add("full_name", msgFieldRequired)
		return Author{}, validation
	}

	currentAuthor, err := s.repo.GetAuthorByID(ctx, req.ID)
	if err != nil {
		return Author{}, err
	}

	currentAuthor.FullName = fullName
	currentAuthor.UpdatedAt = s.now().UTC().Round(time.Millisecond)
	return s.repo.UpdateAuthor(ctx, currentAuthor)
}

func (s *Service) DeleteAuthor(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteAuthor(ctx, id)
}

package library

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserStatusActive      UserStatus = "active"
	UserStatusDeactivated UserStatus = "deactivated"
)

/* Librarian account for the admin interface. Accounts are never removed,
only deactivated; every listing and lookup filters on the active status. */
type User struct {
	ID          uuid.UUID
	Username    string
	Email       string
	FirstName   string
	LastName    string
	PhoneNumber *string
	IsSuperuser bool
	IsStaff     bool
	IsActive    bool
	Status      UserStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type UserField string

const (
	UserFieldUsername    UserField = "username"
	UserFieldEmail       UserField = "email"
	UserFieldPhoneNumber UserField = "phone_number"
)

type CreateUserRequest struct {
	Username    string
	Email       string
	FirstName   string
	LastName    string
	PhoneNumber *string
	IsSuperuser bool
	IsActive    bool
}

type UpdateUserRequest struct {
	ID          uuid.UUID
	Username    string
	Email       string
	FirstName   string
	LastName    string
	PhoneNumber *string
	IsSuperuser bool
	IsActive    bool
}

func (s *Service) validateUserEntry(ctx context.Context, username, email string, phone *string, exclude uuid.UUID) (*ErrValidation, error) {
	validation := NewErrValidation()

	if username == "" {
		validation.Add("username", msgFieldRequired)
	}
	if email == "" {
		validation.Add("email", msgFieldRequired)
	}

	if phone != nil && !phoneRegex.MatchString(*phone) {
		validation.Add("phone_number", msgPhoneFormat)
	}

	if username != "" {
		inUse, err := s.repo.UserFieldInUse(ctx, UserFieldUsername, username, exclude)
		if err != nil {
			return nil, err
		}
		if inUse {
			validation.Add("username", "this username is already in use.")
		}
	}

	if email != "" {
		inUse, err := s.repo.UserFieldInUse(ctx, UserFieldEmail, email, exclude)
		if err != nil {
			return nil, err
		}
		if inUse {
			validation.Add("email", "this email is already in use.")
		}
	}

	if phone != nil {
		inUse, err := s.repo.UserFieldInUse(ctx, UserFieldPhoneNumber, *phone, exclude)
		if err != nil {
			return nil, err
		}
		if inUse {
			validation.Add("phone_number", "this phone number is already in use.")
		}
	}

	return validation, nil
}

func normalizeUserEntry(username, email string, phone *string) (string, string, *string) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if phone != nil {
		cleaned := strings.ReplaceAll(*phone, " ", "")
		if cleaned == "" {
			phone = nil
		} else {
			phone = &cleaned
		}
	}

	return username, email, phone
}

func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (User, error) {
	username, email, phone := normalizeUserEntry(req.Username, req.Email, req.PhoneNumber)

	validation, err := s.validateUserEntry(ctx, username, email, phone, uuid.Nil)
	if err != nil {
		return User{}, err
	}
	if validation.Any() {
		return User{}, validation
	}

	createdAt := s.now().UTC().Round(time.Millisecond)
	newUser := User{
		ID:          uuid.New(),
		Username:    username,
		Email:       email,
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		PhoneNumber: phone,
		IsSuperuser: req.IsSuperuser,
		// Staff access follows the active flag, kept in lockstep on every write.
		IsStaff:   req.IsActive,
		IsActive:  req.IsActive,
		Status:    UserStatusActive,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	return s.repo.CreateUser(ctx, newUser)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *Service) UpdateUser(ctx context.Context, req UpdateUserRequest) (User, error) {
	currentUser, err := s.repo.GetUserByID(ctx, req.ID)
	if err != nil {
		return User{}, err
	}

	username, email, phone := normalizeUserEntry(req.Username, req.Email, req.PhoneNumber)

	validation, err := s.validateUserEntry(ctx, username, email, phone, req.ID)
	if err != nil {
		return User{}, err
	}
	if validation.Any() {
		return User{}, validation
	}

	currentUser.Username = username
	currentUser.Email = email
	currentUser.FirstName = strings.TrimSpace(req.FirstName)
	currentUser.LastName = strings.TrimSpace(req.LastName)
	currentUser.PhoneNumber = phone
	currentUser.IsSuperuser = req.IsSuperuser
	currentUser.IsActive = req.IsActive
	currentUser.IsStaff = req.IsActive
	currentUser.UpdatedAt = s.now().UTC().Round(time.Millisecond)
	return s.repo.UpdateUser(ctx, currentUser)
}

/* Deleting a user deactivates the account instead of removing the row. */
func (s *Service) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	currentUser, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}

	currentUser.Status = UserStatusDeactivated
	currentUser.IsActive = false
	currentUser.IsStaff = false
	currentUser.UpdatedAt = s.now().UTC().Round(time.Millisecond)
	_, err = s.repo.UpdateUser(ctx, currentUser)
	return err
}

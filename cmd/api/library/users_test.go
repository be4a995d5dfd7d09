package library_test

import (
	"context"
	"errors"
	"testing"

	"github.com/library-service/cmd/api/library"

	"github.com/google/uuid"
	"github.com/matryer/is"
	gomock "go.uber.org/mock/gomock"
)

func TestCreateUser(t *testing.T) {

	t.Run("creates a user with the staff flag following the active flag", func(t *testing.T) {
		is := is.New(t)
		mockRepo, _, mS := newMockedService(t)

		mockRepo.EXPECT().UserFieldInUse(gomock.Any(), library.UserFieldUsername, "tester", uuid.Nil).Return(false, nil)
		mockRepo.EXPECT().UserFieldInUse(gomock.Any(), library.UserFieldEmail, "tester@example.com", uuid.Nil).Return(false, nil)
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, u library.User) (library.User, error) {
			is.True(u.ID != uuid.Nil)
			is.Equal(u.Username, "tester")
			is.True(u.IsActive)
			is.True(u.IsStaff)
			is.Equal(u.Status, library.UserStatusActive)
			return u, nil
		})

		createdUser, err := mS.CreateUser(ctx, library.CreateUserRequest{
			Username: "tester",
			Email:    "Tester@Example.com",
			IsActive: true,
		})
		is.NoErr(err)
		is.True(createdUser.IsStaff)
	})

	t.Run("an inactive user never gets staff access", func(t *testing.T) {
		is := is.New(t)
		mockRepo, _, mS := newMockedService(t)

		mockRepo.EXPECT().UserFieldInUse(gomock.Any(), library.UserFieldUsername, "tester", uuid.Nil).Return(false, nil)
		mockRepo.EXPECT().UserFieldInUse(gomock.Any(), library.UserFieldEmail, "tester@example.com", uuid.Nil).Return(false, nil)
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, u library.User) (library.User, error) {
			is.True(!u.IsActive)
			is.True(!u.IsStaff)
			return u, nil
		})

		_, err := mS.CreateUser(ctx, library.CreateUserRequest{
			Username: "tester",
			Email:    "tester@example.com",
			IsActive: false,
		})
		is.NoErr(err)
	})

	t.Run("refuses a username already in use", func(t *testing.T) {
		is := is.New(t)
		mockRepo, _, mS := newMockedService(t)

		mockRepo.EXPECT().UserFieldInUse(gomock.Any(), library.UserFieldUsername, "tester", uuid.Nil).Return(true, nil)
		mockRepo.EXPECT().UserFieldInUse(gomock.Any(), library.UserFieldEmail, "tester@example.com", uuid.Nil).Return(false, nil)

		_, err := mS.CreateUser(ctx, library.CreateUserRequest{
			Username: "tester",
			Email:    "tester@example.com",
		})
		var validation *library.ErrValidation
		is.True(errors.As(err, &validation))
		is.Equal(validation.Fields["username"], []string{"this username is already in use."})
	})
}

func TestUpdateUser(t *testing.T) {

	t.Run("flipping the active flag carries the staff flag with it", func(t *testing.T) {
		is := is.New(t)
		mockRepo, _, mS := newMockedService(t)

		currentUser := library.User{
			ID:       uuid.New(),
			Username: "tester",
			Email:    "tester@example.com",
			IsActive: true,
			IsStaff:  true,
			Status:   library.UserStatusActive,
		}

		mockRepo.EXPECT().GetUserByID(gomock.Any(), currentUser.ID).Return(currentUser, nil)
		mockRepo.EXPECT().UserFieldInUse(gomock.Any(), library.UserFieldUsername, "tester", currentUser.ID).Return(false, nil)
		mockRepo.EXPECT().UserFieldInUse(gomock.Any(), library.UserFieldEmail, "tester@example.com", currentUser.ID).Return(false, nil)
		mockRepo.EXPECT().UpdateUser(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, u library.User) (library.User, error) {
			is.True(!u.IsActive)
			is.True(!u.IsStaff)
			return u, nil
		})

		_, err := mS.UpdateUser(ctx, library.UpdateUserRequest{
			ID:       currentUser.ID,
			Username: currentUser.Username,
			Email:    currentUser.Email,
			IsActive: false,
		})
		is.NoErr(err)
	})
}

func TestDeactivateUser(t *testing.T) {

	t.Run("keeps the record, shuts the access flags", func(t *testing.T) {
		is := is.New(t)
		mockRepo, _, mS := newMockedService(t)

		currentUser := library.User{
			ID:       uuid.New(),
			Username: "tester",
			Email:    "tester@example.com",
			IsActive: true,
			IsStaff:  true,
			Status:   library.UserStatusActive,
		}

		mockRepo.EXPECT().GetUserByID(gomock.Any(), currentUser.ID).Return(currentUser, nil)
		mockRepo.EXPECT().UpdateUser(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, u library.User) (library.User, error) {
			is.Equal(u.ID, currentUser.ID)
			is.Equal(u.Status, library.UserStatusDeactivated)
			is.True(!u.IsActive)
			is.True(!u.IsStaff)
			return u, nil
		})

		err := mS.DeactivateUser(ctx, currentUser.ID)
		is.NoErr(err)
	})

	t.Run("an unknown user returns a not found error", func(t *testing.T) {
		is := is.New(t)
		mockRepo, _, mS := newMockedService(t)

		id := uuid.New()
		mockRepo.EXPECT().GetUserByID(gomock.Any(), id).Return(library.User{}, library.ErrResponseUserNotFound)

		err := mS.DeactivateUser(ctx, id)
		is.True(errors.Is(err, library.ErrResponseUserNotFound))
	})
}

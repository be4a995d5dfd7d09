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

func TestCreateCustomer(t *testing.T) {

	t.Run("creates a customer without errors", func(t *testing.T) {
		is := is.New(t)
		mockRepo, _, mS := newMockedService(t)

		reqCustomer := library.CreateCustomerRequest{
			DocumentNumber: "12345678900",
			FirstName:      "Service",
			LastName:       "Tester",
			Email:          toPointer("Service.Tester@Example.com "),
			PhoneNumber:    toPointer("+5511999999999"),
		}

		mockRepo.EXPECT().CustomerFieldInUse(gomock.Any(), library.CustomerFieldDocumentNumber, "12345678900", uuid.Nil).Return(false, nil)
		mockRepo.EXPECT().CustomerFieldInUse(gomock.Any(), library.CustomerFieldEmail, "service.tester@example.com", uuid.Nil).Return(false, nil)
		mockRepo.EXPECT().CustomerFieldInUse(gomock.Any(), library.CustomerFieldPhoneNumber, "+5511999999999", uuid.Nil).Return(false, nil)
		mockRepo.EXPECT().CreateCustomer(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, c library.Customer) (library.Customer, error) {
			is.True(c.ID != uuid.Nil)
			is.Equal(c.DocumentNumber, "12345678900")
			is.Equal(*c.Email, "service.tester@example.com")
			is.Equal(*c.PhoneNumber, "+5511999999999")
			return c, nil
		})

		createdCustomer, err := mS.CreateCustomer(ctx, reqCustomer)
		is.NoErr(err)
		is.Equal(createdCustomer.FullName(), "Service Tester")
	})

	t.Run("refuses an entry with no contact method", func(t *testing.T) {
		is := is.New(t)
		mockRepo, _, mS := newMockedService(t)

		mockRepo.EXPECT().CustomerFieldInUse(gomock.Any(), library.CustomerFieldDocumentNumber, "12345678900", uuid.Nil).Return(false, nil)

		_, err := mS.CreateCustomer(ctx, library.CreateCustomerRequest{
			DocumentNumber: "12345678900",
			FirstName:      "Service",
			LastName:       "Tester",
		})
		var validation *library.ErrValidation
		is.True(errors.As(err, &validation))
		is.Equal(validation.Fields["email"], []string{"a phone number or an email must be provided as a contact method."})
		is.Equal(validation.Fields["phone_number"], []string{"a phone number or an email must be provided as a contact method."})
	})

	t.Run("a blank email does not count as a contact method", func(t *testing.T) {
		is := is.New(t)
		mockRepo, _, mS := newMockedService(t)

		mockRepo.EXPECT().CustomerFieldInUse(gomock.Any(), library.CustomerFieldDocumentNumber, "12345678900", uuid.Nil).Return(false, nil)

		_, err := mS.CreateCustomer(ctx, library.CreateCustomerRequest{
			DocumentNumber: "12345678900",
			FirstName:      "Service",
			LastName:       "Tester",
			Email:          toPointer("   "),
		})
		var validation *library.ErrValidation
		is.True(errors.As(err, &validation))
		is.Equal(validation.Fields["email"], []string{"a phone number or an email must be provided as a contact method."})
	})

	t.Run("refuses a badly formatted phone number", func(t *testing.T) {
		is := is.New(t)
		mockRepo, _, mS := newMockedService(t)

		mockRepo.EXPECT().CustomerFieldInUse(gomock.Any(), library.CustomerFieldDocumentNumber, "12345678900", uuid.Nil).Return(false, nil)
		mockRepo.EXPECT().CustomerFieldInUse(gomock.Any(), library.CustomerFieldPhoneNumber, "11999999999", uuid.Nil).Return(false, nil)

		_, err := mS.CreateCustomer(ctx, library.CreateCustomerRequest{
			DocumentNumber: "12345678900",
			FirstName:      "Service",
			LastName:       "Tester",
			PhoneNumber:    toPointer("11999999999"), //missing the leading +
		})
		var validation *library.ErrValidation
		is.True(errors.As(err, &validation))
		is.Equal(validation.Fields["phone_number"], []string{"phone number must be in the format: '+999999999'. Up to 15 digits are allowed."})
	})

	t.Run("refuses a document number already in use", func(t *testing.T) {
		is := is.New(t)
		mockRepo, _, mS := newMockedService(t)

		mockRepo.EXPECT().CustomerFieldInUse(gomock.Any(), library.CustomerFieldDocumentNumber, "12345678900", uuid.Nil).Return(true, nil)
		mockRepo.EXPECT().CustomerFieldInUse(gomock.Any(), library.CustomerFieldEmail, "tester@example.com", uuid.Nil).Return(false, nil)

		_, err := mS.CreateCustomer(ctx, library.CreateCustomerRequest{
			DocumentNumber: "12345678900",
			FirstName:      "Service",
			LastName:       "Tester",
			Email:          toPointer("tester@example.com"),
		})
		var validation *library.ErrValidation
		is.True(errors.As(err, &validation))
		is.Equal(validation.Fields["document_number"], []string{"this document number is already in use."})
	})

	t.Run("strips the spaces of the document and the phone", func(t *testing.T) {
		is := is.New(t)
		mockRepo, _, mS := newMockedService(t)

		mockRepo.EXPECT().CustomerFieldInUse(gomock.Any(), library.CustomerFieldDocumentNumber, "12345678900", uuid.Nil).Return(false, nil)
		mockRepo.EXPECT().CustomerFieldInUse(gomock.Any(), library.CustomerFieldPhoneNumber, "+5511999999999", uuid.Nil).Return(false, nil)
		mockRepo.EXPECT().CreateCustomer(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, c library.Customer) (library.Customer, error) {
			is.Equal(c.DocumentNumber, "12345678900")
			is.Equal(*c.PhoneNumber, "+5511999999999")
			return c, nil
		})

		_, err := mS.CreateCustomer(ctx, library.CreateCustomerRequest{
			DocumentNumber: "123 456 789 00",
			FirstName:      "Service",
			LastName:       "Tester",
			PhoneNumber:    toPointer("+55 11 99999 9999"),
		})
		is.NoErr(err)
	})
}

func TestUpdateCustomer(t *testing.T) {

	t.Run("the customer own values do not trip the uniqueness check", func(t *testing.T) {
		is := is.New(t)
		mockRepo, _, mS := newMockedService(t)

		currentCustomer := library.Customer{
			ID:             uuid.New(),
			DocumentNumber: "12345678900",
			FirstName:      "Service",
			LastName:       "Tester",
			Email:          toPointer("tester@example.com"),
		}

		mockRepo.EXPECT().GetCustomerByID(gomock.Any(), currentCustomer.ID).Return(currentCustomer, nil)
		mockRepo.EXPECT().CustomerFieldInUse(gomock.Any(), library.CustomerFieldDocumentNumber, "12345678900", currentCustomer.ID).Return(false, nil)
		mockRepo.EXPECT().CustomerFieldInUse(gomock.Any(), library.CustomerFieldEmail, "tester@example.com", currentCustomer.ID).Return(false, nil)
		mockRepo.EXPECT().UpdateCustomer(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, c library.Customer) (library.Customer, error) {
			is.Equal(c.FirstName, "Renamed")
			return c, nil
		})

		_, err := mS.UpdateCustomer(ctx, library.UpdateCustomerRequest{
			ID:             currentCustomer.ID,
			DocumentNumber: currentCustomer.DocumentNumber,
			FirstName:      "Renamed",
			LastName:       currentCustomer.LastName,
			Email:          currentCustomer.Email,
		})
		is.NoErr(err)
	})

	t.Run("an unknown customer returns a not found error", func(t *testing.T) {
		is := is.New(t)
		mockRepo, _, mS := newMockedService(t)

		id := uuid.New()
		mockRepo.EXPECT().GetCustomerByID(gomock.Any(), id).Return(library.Customer{}, library.ErrResponseCustomerNotFound)

		_, err := mS.UpdateCustomer(ctx, library.UpdateCustomerRequest{ID: id})
		is.True(errors.Is(err, library.ErrResponseCustomerNotFound))
	})
}

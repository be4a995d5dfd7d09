package library

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID             uuid.UUID
	DocumentNumber string
	FirstName      string
	LastName       string
	Email          *string
	PhoneNumber    *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

/* Return the first_name plus the last_name, with a space in between. */
func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

/* Customer fields carrying a uniqueness rule. */
type CustomerField string

const (
	CustomerFieldDocumentNumber CustomerField = "document_number"
	CustomerFieldEmail          CustomerField = "email"
	CustomerFieldPhoneNumber    CustomerField = "phone_number"
)

const msgPhoneFormat = "phone number must be in the format: '+999999999'. Up to 15 digits are allowed."
const msgContactRequired = "a phone number or an email must be provided as a contact method."

var phoneRegex = regexp.MustCompile(`^\+(9[976]\d|8[987530]\d|6[987]\d|5[90]\d|42\d|3[875]\d|2[98654321]\d|9[8543210]|8[6421]|6[6543210]|5[87654321]|4[987654310]|3[9643210]|2[70]|7|1)\d{1,14}$`)

type CreateCustomerRequest struct {
	DocumentNumber string
	FirstName      string
	LastName       string
	Email          *string
	PhoneNumber    *string
}

type UpdateCustomerRequest struct {
	ID             uuid.UUID
	DocumentNumber string
	FirstName      string
	LastName       string
	Email          *string
	PhoneNumber    *string
}

/* Normalized copies of the entry fields: blanks removed from the document
and the phone, email lowercased and trimmed. */
func normalizeCustomerEntry(document string, email, phone *string) (string, *string, *string) {
	document = strings.ReplaceAll(document, " ", "")

	if email != nil {
		cleaned := strings.ToLower(strings.TrimSpace(*email))
		if cleaned == "" {
			email = nil
		} else {
			email = &cleaned
		}
	}

	if phone != nil {
		cleaned := strings.ReplaceAll(*phone, " ", "")
		if cleaned == "" {
			phone = nil
		} else {
			phone = &cleaned
		}
	}

	return document, email, phone
}

func (s *Service) validateCustomerEntry(ctx context.Context, document, firstName, lastName string, email, phone *string, exclude uuid.UUID) (*ErrValidation, error) {
	validation := NewErrValidation()

	if document == "" {
		validation.Add("document_number", msgFieldRequired)
	}
	if strings.TrimSpace(firstName) == "" {
		validation.Add("first_name", msgFieldRequired)
	}
	if strings.TrimSpace(lastName) == "" {
		validation.Add("last_name", msgFieldRequired)
	}

	if email == nil && phone == nil {
		validation.Add("email", msgContactRequired)
		validation.Add("phone_number", msgContactRequired)
	}

	if phone != nil && !phoneRegex.MatchString(*phone) {
		validation.Add("phone_number", msgPhoneFormat)
	}

	if document != "" {
		inUse, err := s.repo.CustomerFieldInUse(ctx, CustomerFieldDocumentNumber, document, exclude)
		if err != nil {
			return nil, err
		}
		if inUse {
			validation.Add("document_number", "this document number is already in use.")
		}
	}

	if email != nil {
		inUse, err := s.repo.CustomerFieldInUse(ctx, CustomerFieldEmail, *email, exclude)
		if err != nil {
			return nil, err
		}
		if inUse {
			validation.Add("email", "this email is already in use.")
		}
	}

	if phone != nil {
		inUse, err := s.repo.CustomerFieldInUse(ctx, CustomerFieldPhoneNumber, *phone, exclude)
		if err != nil {
			return nil, err
		}
		if inUse {
			validation.Add("phone_number", "this phone number is already in use.")
		}
	}

	return validation, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (Customer, error) {
	document, email, phone := normalizeCustomerEntry(req.DocumentNumber, req.Email, req.PhoneNumber)

	validation, err := s.validateCustomerEntry(ctx, document, req.FirstName, req.LastName, email, phone, uuid.Nil)
	if err != nil {
		return Customer{}, err
	}
	if validation.Any() {
		return Customer{}, validation
	}

	createdAt := s.now().UTC().Round(time.Millisecond)
	newCustomer := Customer{
		ID:             uuid.New(),
		DocumentNumber: document,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Email:          email,
		PhoneNumber:    phone,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	return s.repo.CreateCustomer(ctx, newCustomer)
}

func (s *Service) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	return s.repo.GetCustomerByID(ctx, id)
}

func (s *Service) ListCustomers(ctx context.Context, search string) ([]Customer, error) {
	return s.repo.ListCustomers(ctx, search)
}

func (s *Service) UpdateCustomer(ctx context.Context, req UpdateCustomerRequest) (Customer, error) {
	currentCustomer, err := s.repo.GetCustomerByID(ctx, req.ID)
	if err != nil {
		return Customer{}, err
	}

	document, email, phone := normalizeCustomerEntry(req.DocumentNumber, req.Email, req.PhoneNumber)

	validation, err := s.validateCustomerEntry(ctx, document, req.FirstName, req.LastName, email, phone, req.ID)
	if err != nil {
		return Customer{}, err
	}
	if validation.Any() {
		return Customer{}, validation
	}

	currentCustomer.DocumentNumber = document
	currentCustomer.FirstName = strings.TrimSpace(req.FirstName)
	currentCustomer.LastName = strings.TrimSpace(req.LastName)
	currentCustomer.Email = email
	currentCustomer.PhoneNumber = phone
	currentCustomer.UpdatedAt = s.now().UTC().Round(time.Millisecond)
	return s.repo.UpdateCustomer(ctx, currentCustomer)
}

/* Removes the customer. The customer's loans go with it (owning reference),
the books on those loans stay. */
func (s *Service) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteCustomer(ctx, id)
}

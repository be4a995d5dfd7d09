package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/library-service/cmd/api/library"

	"github.com/google/uuid"
)

/* Addresses a call to "/customers" according to the requested action.  */
func (h *LibraryHandler) customers(w http.ResponseWriter, r *http.Request) {
	r, cancel := withTimeout(r)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		h.listCustomers(w, r)
	case http.MethodPost:
		h.createCustomer(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

/* Addresses a call to "/customers/(expected id here)" according to the requested action.  */
func (h *LibraryHandler) customerById(w http.ResponseWriter, r *http.Request) {
	r, cancel := withTimeout(r)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		h.getCustomerById(w, r)
	case http.MethodPut:
		h.updateCustomer(w, r)
	case http.MethodDelete:
		h.deleteCustomer(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type CustomerEntry struct {
	DocumentNumber string  `json:"document_number"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Email          *string `json:"email"`
	PhoneNumber    *string `json:"phone_number"`
}

type CustomerResponse struct {
	ID             uuid.UUID `json:"id"`
	DocumentNumber string    `json:"document_number"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          *string   `json:"email"`
	PhoneNumber    *string   `json:"phone_number"`
}

/*Copy the fields of a customer object to an http layer struct with json tags*/
func customerToResponse(c library.Customer) CustomerResponse {
	return CustomerResponse{
		ID:             c.ID,
		DocumentNumber: c.DocumentNumber,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Email:          c.Email,
		PhoneNumber:    c.PhoneNumber,
	}
}

/* Validates the entry, then stores the entry as a new customer. */
func (h *LibraryHandler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var customerEntry CustomerEntry
	err := json.NewDecoder(r.Body).Decode(&customerEntry)
	if err != nil {
		log.Println(err)
		errR := library.ErrResponse{
			Code:    library.ErrResponseEntryInvalidJSON.Code,
			Message: library.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	storedCustomer, err := h.service.CreateCustomer(r.Context(), library.CreateCustomerRequest{
		DocumentNumber: customerEntry.DocumentNumber,
		FirstName:      customerEntry.FirstName,
		LastName:       customerEntry.LastName,
		Email:          customerEntry.Email,
		PhoneNumber:    customerEntry.PhoneNumber,
	})
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusCreated, customerToResponse(storedCustomer))
}

func (h *LibraryHandler) getCustomerById(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/customers/")
	if err != nil {
		return
	}

	returnedCustomer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusOK, customerToResponse(returnedCustomer))
}

func (h *LibraryHandler) listCustomers(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	if len(search) > 250 {
		responseJSON(w, http.StatusBadRequest, library.ErrResponseQuerySearchTooLong)
		return
	}

	customersList, err := h.service.ListCustomers(r.Context(), search)
	if err != nil {
		handleError(err, w)
		return
	}

	results := []CustomerResponse{}
	for _, returnedCustomer := range customersList {
		results = append(results, customerToResponse(returnedCustomer))
	}
	responseJSON(w, http.StatusOK, results)
}

func (h *LibraryHandler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/customers/")
	if err != nil {
		return
	}

	var customerEntry CustomerEntry
	err = json.NewDecoder(r.Body).Decode(&customerEntry)
	if err != nil {
		log.Println(err)
		errR := library.ErrResponse{
			Code:    library.ErrResponseEntryInvalidJSON.Code,
			Message: library.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	updatedCustomer, err := h.service.UpdateCustomer(r.Context(), library.UpdateCustomerRequest{
		ID:             id,
		DocumentNumber: customerEntry.DocumentNumber,
		FirstName:      customerEntry.FirstName,
		LastName:       customerEntry.LastName,
		Email:          customerEntry.Email,
		PhoneNumber:    customerEntry.PhoneNumber,
	})
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusOK, customerToResponse(updatedCustomer))
}

/* Removes a customer and, with it, all of their loans. */
func (h *LibraryHandler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/customers/")
	if err != nil {
		return
	}

	err = h.service.DeleteCustomer(r.Context(), id)
	if err != nil {
		handleError(err, w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/library-service/cmd/api/library"

	"github.com/google/uuid"
)

/* Addresses a call to "/users" according to the requested action.  */
func (h *LibraryHandler) users(w http.ResponseWriter, r *http.Request) {
	r, cancel := withTimeout(r)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		h.listUsers(w, r)
	case http.MethodPost:
		h.createUser(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

/* Addresses a call to "/users/(expected id here)" according to the requested action.  */
func (h *LibraryHandler) userById(w http.ResponseWriter, r *http.Request) {
	r, cancel := withTimeout(r)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		h.getUserById(w, r)
	case http.MethodPut:
		h.updateUser(w, r)
	case http.MethodDelete:
		h.deactivateUser(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type UserEntry struct {
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
	IsSuperuser bool    `json:"is_superuser"`
	IsActive    bool    `json:"is_active"`
}

type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	PhoneNumber *string   `json:"phone_number"`
	IsSuperuser bool      `json:"is_superuser"`
	IsStaff     bool      `json:"is_staff"`
	IsActive    bool      `json:"is_active"`
	Status      string    `json:"status"`
}

/*Copy the fields of a user object to an http layer struct with json tags*/
func userToResponse(u library.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: u.PhoneNumber,
		IsSuperuser: u.IsSuperuser,
		IsStaff:     u.IsStaff,
		IsActive:    u.IsActive,
		Status:      string(u.Status),
	}
}

func (h *LibraryHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var userEntry UserEntry
	err := json.NewDecoder(r.Body).Decode(&userEntry)
	if err != nil {
		log.Println(err)
		errR := library.ErrResponse{
			Code:    library.ErrResponseEntryInvalidJSON.Code,
			Message: library.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	storedUser, err := h.service.CreateUser(r.Context(), library.CreateUserRequest{
		Username:    userEntry.Username,
		Email:       userEntry.Email,
		FirstName:   userEntry.FirstName,
		LastName:    userEntry.LastName,
		PhoneNumber: userEntry.PhoneNumber,
		IsSuperuser: userEntry.IsSuperuser,
		IsActive:    userEntry.IsActive,
	})
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusCreated, userToResponse(storedUser))
}

func (h *LibraryHandler) getUserById(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/users/")
	if err != nil {
		return
	}

	returnedUser, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusOK, userToResponse(returnedUser))
}

func (h *LibraryHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	usersList, err := h.service.ListUsers(r.Context())
	if err != nil {
		handleError(err, w)
		return
	}

	results := []UserResponse{}
	for _, returnedUser := range usersList {
		results = append(results, userToResponse(returnedUser))
	}
	responseJSON(w, http.StatusOK, results)
}

func (h *LibraryHandler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/users/")
	if err != nil {
		return
	}

	var userEntry UserEntry
	err = json.NewDecoder(r.Body).Decode(&userEntry)
	if err != nil {
		log.Println(err)
		errR := library.ErrResponse{
			Code:    library.ErrResponseEntryInvalidJSON.Code,
			Message: library.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	updatedUser, err := h.service.UpdateUser(r.Context(), library.UpdateUserRequest{
		ID:          id,
		Username:    userEntry.Username,
		Email:       userEntry.Email,
		FirstName:   userEntry.FirstName,
		LastName:    userEntry.LastName,
		PhoneNumber: userEntry.PhoneNumber,
		IsSuperuser: userEntry.IsSuperuser,
		IsActive:    userEntry.IsActive,
	})
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusOK, userToResponse(updatedUser))
}

/* Deactivates a user. The record is kept, only the access flags are shut. */
func (h *LibraryHandler) deactivateUser(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/users/")
	if err != nil {
		return
	}

	err = h.service.DeactivateUser(r.Context(), id)
	if err != nil {
		handleError(err, w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

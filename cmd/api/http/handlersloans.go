package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/library-service/cmd/api/library"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

/* Addresses a call to "/loans" according to the requested action.  */
func (h *LibraryHandler) loans(w http.ResponseWriter, r *http.Request) {
	r, cancel := withTimeout(r)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		h.listLoans(w, r)
	case http.MethodPost:
		h.createLoan(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

/* Addresses a call to "/loans/{id}" or "/loans/{id}/approve" according to
the requested action.  */
func (h *LibraryHandler) loanById(w http.ResponseWriter, r *http.Request) {
	r, cancel := withTimeout(r)
	defer cancel()

	rest, _ := strings.CutPrefix(r.URL.Path, "/loans/")
	if strings.HasSuffix(rest, "/approve") {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.approveDelivery(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getLoanById(w, r)
	case http.MethodPut:
		h.updateLoan(w, r)
	case http.MethodDelete:
		h.deleteLoan(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type LoanEntry struct {
	CustomerID uuid.UUID   `json:"customer_id"`
	BookIDs    []uuid.UUID `json:"book_ids"`
	EndDate    string      `json:"end_date"`
}

type UpdateLoanEntry struct {
	Status  string `json:"status"`
	EndDate string `json:"end_date"`
}

type LoanResponse struct {
	ID         uuid.UUID      `json:"id"`
	CustomerID uuid.UUID      `json:"customer_id"`
	Books      []BookResponse `json:"books"`
	Status     string         `json:"status"`
	EndDate    string         `json:"end_date"`
}

/*Copy the fields of a loan object to an http layer struct with json tags*/
func loanToResponse(l library.Loan) LoanResponse {
	return LoanResponse{
		ID:         l.ID,
		CustomerID: l.CustomerID,
		Books:      booksToResponse(l.Books),
		Status:     string(l.Status),
		EndDate:    l.EndDate.Format(dateLayout),
	}
}

func parseEndDate(endDate string) (time.Time, *library.ErrValidation) {
	if endDate == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(dateLayout, endDate)
	if err != nil {
		validation := library.NewErrValidation()
		validation.Add("end_date", "must be a date in the format 2006-01-02.")
		return time.Time{}, validation
	}
	return parsed, nil
}

/* Validates the entry, then opens a new loan for the customer. */
func (h *LibraryHandler) createLoan(w http.ResponseWriter, r *http.Request) {
	var loanEntry LoanEntry
	err := json.NewDecoder(r.Body).Decode(&loanEntry)
	if err != nil {
		log.Println(err)
		errR := library.ErrResponse{
			Code:    library.ErrResponseEntryInvalidJSON.Code,
			Message: library.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	endDate, validation := parseEndDate(loanEntry.EndDate)
	if validation != nil {
		responseJSON(w, http.StatusBadRequest, validation)
		return
	}

	storedLoan, err := h.service.CreateLoan(r.Context(), library.CreateLoanRequest{
		CustomerID: loanEntry.CustomerID,
		BookIDs:    loanEntry.BookIDs,
		EndDate:    endDate,
	})
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusCreated, loanToResponse(storedLoan))
}

func (h *LibraryHandler) getLoanById(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/loans/")
	if err != nil {
		return
	}

	returnedLoan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusOK, loanToResponse(returnedLoan))
}

/* Returns the stored loans. Overdue loans are reconciled first, so the list
never shows an in_time loan whose due date already went by. */
func (h *LibraryHandler) listLoans(w http.ResponseWriter, r *http.Request) {
	flipped, err := h.service.ReconcileOverdue(r.Context())
	if err != nil {
		handleError(err, w)
		return
	}
	if flipped > 0 {
		log.Println("loans flipped to past:", flipped)
	}

	query := r.URL.Query()
	filter := library.LoanFilter{}

	if customerStr := query.Get("customer_id"); customerStr != "" {
		filter.CustomerID, err = uuid.Parse(customerStr)
		if err != nil {
			responseJSON(w, http.StatusBadRequest, library.ErrResponseIdInvalidFormat)
			return
		}
	}

	if statusStr := query.Get("status"); statusStr != "" {
		filter.Status = library.LoanStatus(statusStr)
		if !filter.Status.Valid() {
			validation := library.NewErrValidation()
			validation.Add("status", "status must be one of: in_time, past, returned.")
			responseJSON(w, http.StatusBadRequest, validation)
			return
		}
	}

	loansList, err := h.service.ListLoans(r.Context(), filter)
	if err != nil {
		handleError(err, w)
		return
	}

	results := []LoanResponse{}
	for _, returnedLoan := range loansList {
		results = append(results, loanToResponse(returnedLoan))
	}
	responseJSON(w, http.StatusOK, results)
}

/* Validates the entry, then updates the loan status and due date. */
func (h *LibraryHandler) updateLoan(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/loans/")
	if err != nil {
		return
	}

	var updateEntry UpdateLoanEntry
	err = json.NewDecoder(r.Body).Decode(&updateEntry)
	if err != nil {
		log.Println(err)
		errR := library.ErrResponse{
			Code:    library.ErrResponseEntryInvalidJSON.Code,
			Message: library.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	endDate, validation := parseEndDate(updateEntry.EndDate)
	if validation != nil {
		responseJSON(w, http.StatusBadRequest, validation)
		return
	}

	updatedLoan, err := h.service.UpdateLoan(r.Context(), library.UpdateLoanRequest{
		ID:      id,
		Status:  library.LoanStatus(updateEntry.Status),
		EndDate: endDate,
	})
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusOK, loanToResponse(updatedLoan))
}

/* Removes a loan. Refused with a warning while its books are still out. */
func (h *LibraryHandler) deleteLoan(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/loans/")
	if err != nil {
		return
	}

	err = h.service.DeleteLoan(r.Context(), id)
	if err != nil {
		handleError(err, w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

/* Marks the loan as returned and restocks its books. */
func (h *LibraryHandler) approveDelivery(w http.ResponseWriter, r *http.Request) {
	rest, _ := strings.CutPrefix(r.URL.Path, "/loans/")
	justId := strings.TrimSuffix(rest, "/approve")
	id, err := uuid.Parse(justId)
	if err != nil {
		log.Println(err)
		responseJSON(w, http.StatusBadRequest, library.ErrResponseIdInvalidFormat)
		return
	}

	approvedLoan, err := h.service.ApproveDelivery(r.Context(), id)
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusOK, loanToResponse(approvedLoan))
}

package library

import (
	"fmt"
	"sort"
	"strings"
)

type ErrResponse struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

func (e ErrResponse) Error() string {
	return e.Message
}

var ErrResponseEntryInvalidJSON = ErrResponse{102, "invalid json request."}
var ErrResponseIdInvalidFormat = ErrResponse{103, "the endpoint is not a valid format ID. Must end in a valid uuid."}
var ErrResponseQuerySearchTooLong = ErrResponse{104, "query parameter 'search' must be at most 250 characters."}

var ErrResponseAuthorNotFound = ErrResponse{201, "author not found"}
var ErrResponseBookNotFound = ErrResponse{202, "book not found"}
var ErrResponseCustomerNotFound = ErrResponse{203, "customer not found"}
var ErrResponseLoanNotFound = ErrResponse{204, "book loan not found"}
var ErrResponseUserNotFound = ErrResponse{205, "user not found"}

/* Refusal: a loan may only be deleted once its books came back. */
var ErrResponseLoanNotReturned = ErrResponse{210, "the loan cannot be deleted until its books have been returned."}

const errValidationCode = 120

/* ErrValidation carries field-scoped validation messages back to the caller.
The operation that produced it has not persisted anything. */
type ErrValidation struct {
	Code    int                 `json:"error_code"`
	Message string              `json:"error_message"`
	Fields  map[string][]string `json:"fields"`
}

func NewErrValidation() *ErrValidation {
	return &ErrValidation{
		Code:    errValidationCode,
		Message: "your input has some errors, please correct them.",
		Fields:  map[string][]string{},
	}
}

func (e *ErrValidation) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ErrValidation) Any() bool {
	return len(e.Fields) > 0
}

func (e *ErrValidation) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fmt.Sprintf("%s invalid fields: %s", e.Message, strings.Join(fields, ", "))
}

const msgFieldRequired = "this field is required."

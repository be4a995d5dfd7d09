package http_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	libraryhttp "github.com/library-service/cmd/api/http"
	httpmock "github.com/library-service/cmd/api/http/mocks"
	"github.com/library-service/cmd/api/library"

	"github.com/google/uuid"
	"github.com/matryer/is"
	gomock "go.uber.org/mock/gomock"
)

var testLanguages = libraryhttp.LanguageConfig{
	Default:    "en",
	Available:  []string{"en", "es"},
	CookieName: "library_language",
}

var testClock = func() time.Time {
	return time.Date(2024, 3, 15, 17, 30, 0, 0, time.UTC)
}

func newTestServer(t *testing.T) (*httpmock.MockServiceAPI, *http.Server) {
	ctrl := gomock.NewController(t)
	mockAPI := httpmock.NewMockServiceAPI(ctrl)
	libraryHandler := libraryhttp.NewLibraryHandler(mockAPI, testLanguages, testClock)
	server := libraryhttp.NewServer(libraryhttp.ServerConfig{Port: 8080}, libraryHandler)
	return mockAPI, server
}

func TestPing(t *testing.T) {
	is := is.New(t)
	_, server := newTestServer(t)

	request, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	response := httptest.NewRecorder()

	server.Handler.ServeHTTP(response, request)

	is.Equal(response.Result().StatusCode, 204)
}

func TestCreateAuthor(t *testing.T) {

	mockAPI, server := newTestServer(t)

	t.Run("creates an author without errors", func(t *testing.T) {
		is := is.New(t)

		newID := uuid.New()
		authorToCreate := `{"full_name": "HTTP Tester"}`
		expectedJSONresponse := fmt.Sprintf(`{"id":"%s","full_name":"HTTP Tester"}`+"\n", newID)

		request, _ := http.NewRequest(http.MethodPost, "/authors", strings.NewReader(authorToCreate))
		response := httptest.NewRecorder()

		mockAPI.EXPECT().CreateAuthor(gomock.Any(), library.CreateAuthorRequest{FullName: "HTTP Tester"}).Return(library.Author{ID: newID, FullName: "HTTP Tester"}, nil)

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.Equal(response.Result().StatusCode, 201)
		is.Equal(string(body), expectedJSONresponse)
	})

	t.Run("expected validation error on a blank name", func(t *testing.T) {
		is := is.New(t)

		validation := library.NewErrValidation()
		validation.Add("full_name", "this field is required.")
		expectedJSONresponse := fmt.Sprintln(`{"error_code":120,"error_message":"your input has some errors, please correct them.","fields":{"full_name":["this field is required."]}}`)

		request, _ := http.NewRequest(http.MethodPost, "/authors", strings.NewReader(`{"full_name": ""}`))
		response := httptest.NewRecorder()

		mockAPI.EXPECT().CreateAuthor(gomock.Any(), gomock.Any()).Return(library.Author{}, validation)

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.Equal(response.Result().StatusCode, 400)
		is.Equal(string(body), expectedJSONresponse)
	})
}

func TestGetBookById(t *testing.T) {

	mockAPI, server := newTestServer(t)

	t.Run("an unknown book returns 404", func(t *testing.T) {
		is := is.New(t)

		id := uuid.New()
		mockAPI.EXPECT().GetBook(gomock.Any(), id).Return(library.Book{}, library.ErrResponseBookNotFound)

		request, _ := http.NewRequest(http.MethodGet, "/books/"+id.String(), nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		is.Equal(response.Result().StatusCode, 404)
	})

	t.Run("a malformed id returns 400", func(t *testing.T) {
		is := is.New(t)

		expectedJSONresponse := fmt.Sprintln(`{"error_code":103,"error_message":"the endpoint is not a valid format ID. Must end in a valid uuid."}`)

		request, _ := http.NewRequest(http.MethodGet, "/books/not-a-uuid", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.Equal(response.Result().StatusCode, 400)
		is.Equal(string(body), expectedJSONresponse)
	})
}

func TestCreateLoan(t *testing.T) {

	mockAPI, server := newTestServer(t)

	t.Run("creates a loan without errors", func(t *testing.T) {
		is := is.New(t)

		customerID := uuid.New()
		bookID := uuid.New()
		loanID := uuid.New()
		loanToCreate := fmt.Sprintf(`{
			"customer_id": "%s",
			"book_ids": ["%s"],
			"end_date": "2024-04-01"
		}`, customerID, bookID)

		reqLoan := library.CreateLoanRequest{
			CustomerID: customerID,
			BookIDs:    []uuid.UUID{bookID},
			EndDate:    time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		}
		expectedReturn := library.Loan{
			ID:         loanID,
			CustomerID: customerID,
			Books: []library.Book{{
				ID:       bookID,
				Title:    "HTTP tester book",
				Quantity: toPointer(3),
				InStock:  toPointer(2),
			}},
			Status:  library.LoanStatusInTime,
			EndDate: reqLoan.EndDate,
		}
		expectedJSONresponse := fmt.Sprintf(`{"id":"%s","customer_id":"%s","books":[{"id":"%s","title":"HTTP tester book","summary":null,"quantity":3,"in_stock":2,"authors":[]}],"status":"in_time","end_date":"2024-04-01"}`+"\n", loanID, customerID, bookID)

		request, _ := http.NewRequest(http.MethodPost, "/loans", strings.NewReader(loanToCreate))
		response := httptest.NewRecorder()

		mockAPI.EXPECT().CreateLoan(gomock.Any(), reqLoan).Return(expectedReturn, nil)

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.Equal(response.Result().StatusCode, 201)
		is.Equal(string(body), expectedJSONresponse)
	})

	t.Run("expected validation error on a malformed date", func(t *testing.T) {
		is := is.New(t)

		loanToCreate := fmt.Sprintf(`{
			"customer_id": "%s",
			"book_ids": ["%s"],
			"end_date": "01/04/2024"
		}`, uuid.New(), uuid.New())
		expectedJSONresponse := fmt.Sprintln(`{"error_code":120,"error_message":"your input has some errors, please correct them.","fields":{"end_date":["must be a date in the format 2006-01-02."]}}`)

		request, _ := http.NewRequest(http.MethodPost, "/loans", strings.NewReader(loanToCreate))
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.Equal(response.Result().StatusCode, 400)
		is.Equal(string(body), expectedJSONresponse)
	})
}

func TestListLoans(t *testing.T) {

	mockAPI, server := newTestServer(t)

	t.Run("reconciles the overdue loans before listing", func(t *testing.T) {
		is := is.New(t)

		gomock.InOrder(
			mockAPI.EXPECT().ReconcileOverdue(gomock.Any()).Return(int64(1), nil),
			mockAPI.EXPECT().ListLoans(gomock.Any(), library.LoanFilter{}).Return([]library.Loan{}, nil),
		)

		request, _ := http.NewRequest(http.MethodGet, "/loans", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.Equal(response.Result().StatusCode, 200)
		is.Equal(string(body), "[]\n")
	})

	t.Run("filters by customer and status", func(t *testing.T) {
		is := is.New(t)

		customerID := uuid.New()
		gomock.InOrder(
			mockAPI.EXPECT().ReconcileOverdue(gomock.Any()).Return(int64(0), nil),
			mockAPI.EXPECT().ListLoans(gomock.Any(), library.LoanFilter{CustomerID: customerID, Status: library.LoanStatusPast}).Return([]library.Loan{}, nil),
		)

		request, _ := http.NewRequest(http.MethodGet, "/loans?customer_id="+customerID.String()+"&status=past", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		is.Equal(response.Result().StatusCode, 200)
	})

	t.Run("refuses an unknown status filter", func(t *testing.T) {
		is := is.New(t)

		mockAPI.EXPECT().ReconcileOverdue(gomock.Any()).Return(int64(0), nil)

		request, _ := http.NewRequest(http.MethodGet, "/loans?status=lost", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		is.Equal(response.Result().StatusCode, 400)
	})
}

func TestDeleteLoan(t *testing.T) {

	mockAPI, server := newTestServer(t)

	t.Run("refuses to delete a loan with books out", func(t *testing.T) {
		is := is.New(t)

		id := uuid.New()
		expectedJSONresponse := fmt.Sprintln(`{"error_code":210,"error_message":"the loan cannot be deleted until its books have been returned."}`)

		mockAPI.EXPECT().DeleteLoan(gomock.Any(), id).Return(library.ErrResponseLoanNotReturned)

		request, _ := http.NewRequest(http.MethodDelete, "/loans/"+id.String(), nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.Equal(response.Result().StatusCode, 409)
		is.Equal(string(body), expectedJSONresponse)
	})

	t.Run("deletes a returned loan", func(t *testing.T) {
		is := is.New(t)

		id := uuid.New()
		mockAPI.EXPECT().DeleteLoan(gomock.Any(), id).Return(nil)

		request, _ := http.NewRequest(http.MethodDelete, "/loans/"+id.String(), nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		is.Equal(response.Result().StatusCode, 204)
	})
}

func TestApproveDelivery(t *testing.T) {

	mockAPI, server := newTestServer(t)

	t.Run("approves the delivery of a loan", func(t *testing.T) {
		is := is.New(t)

		loanID := uuid.New()
		customerID := uuid.New()
		approvedLoan := library.Loan{
			ID:         loanID,
			CustomerID: customerID,
			Books:      []library.Book{},
			Status:     library.LoanStatusReturned,
			EndDate:    time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		}
		expectedJSONresponse := fmt.Sprintf(`{"id":"%s","customer_id":"%s","books":[],"status":"returned","end_date":"2024-03-10"}`+"\n", loanID, customerID)

		mockAPI.EXPECT().ApproveDelivery(gomock.Any(), loanID).Return(approvedLoan, nil)

		request, _ := http.NewRequest(http.MethodPost, "/loans/"+loanID.String()+"/approve", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.Equal(response.Result().StatusCode, 200)
		is.Equal(string(body), expectedJSONresponse)
	})

	t.Run("approving is only available over POST", func(t *testing.T) {
		is := is.New(t)

		request, _ := http.NewRequest(http.MethodGet, "/loans/"+uuid.New().String()+"/approve", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		is.Equal(response.Result().StatusCode, 405)
	})
}

func TestPublicBookSearch(t *testing.T) {

	mockAPI, server := newTestServer(t)

	t.Run("searches the available books", func(t *testing.T) {
		is := is.New(t)

		bookID := uuid.New()
		results := []library.Book{{
			ID:       bookID,
			Title:    "HTTP tester book",
			Quantity: toPointer(3),
			InStock:  toPointer(1),
		}}
		expectedJSONresponse := fmt.Sprintf(`[{"id":"%s","title":"HTTP tester book","summary":null,"quantity":3,"in_stock":1,"authors":[]}]`+"\n", bookID)

		mockAPI.EXPECT().SearchAvailableBooks(gomock.Any(), "tester").Return(results, nil)

		request, _ := http.NewRequest(http.MethodGet, "/api/books?search=tester", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.Equal(response.Result().StatusCode, 200)
		is.Equal(string(body), expectedJSONresponse)
	})

	t.Run("refuses a search term over 250 characters", func(t *testing.T) {
		is := is.New(t)

		expectedJSONresponse := fmt.Sprintln(`{"error_code":104,"error_message":"query parameter 'search' must be at most 250 characters."}`)

		request, _ := http.NewRequest(http.MethodGet, "/api/books?search="+strings.Repeat("a", 251), nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.Equal(response.Result().StatusCode, 400)
		is.Equal(string(body), expectedJSONresponse)
	})
}

func TestLanguage(t *testing.T) {

	_, server := newTestServer(t)

	t.Run("returns the default language without a cookie", func(t *testing.T) {
		is := is.New(t)

		expectedJSONresponse := fmt.Sprintln(`{"language":"en","available":["en","es"]}`)

		request, _ := http.NewRequest(http.MethodGet, "/api/language", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.Equal(response.Result().StatusCode, 200)
		is.Equal(string(body), expectedJSONresponse)
	})

	t.Run("returns the language picked by the visitor", func(t *testing.T) {
		is := is.New(t)

		expectedJSONresponse := fmt.Sprintln(`{"language":"es","available":["en","es"]}`)

		request, _ := http.NewRequest(http.MethodGet, "/api/language", nil)
		request.AddCookie(&http.Cookie{Name: "library_language", Value: "es"})
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.Equal(response.Result().StatusCode, 200)
		is.Equal(string(body), expectedJSONresponse)
	})

	t.Run("falls back to the default for an unknown cookie value", func(t *testing.T) {
		is := is.New(t)

		expectedJSONresponse := fmt.Sprintln(`{"language":"en","available":["en","es"]}`)

		request, _ := http.NewRequest(http.MethodGet, "/api/language", nil)
		request.AddCookie(&http.Cookie{Name: "library_language", Value: "de"})
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.Equal(response.Result().StatusCode, 200)
		is.Equal(string(body), expectedJSONresponse)
	})

	t.Run("sets the language cookie", func(t *testing.T) {
		is := is.New(t)

		request, _ := http.NewRequest(http.MethodPost, "/api/language", strings.NewReader(`{"language": "es"}`))
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		is.Equal(response.Result().StatusCode, 200)

		cookies := response.Result().Cookies()
		is.Equal(len(cookies), 1)
		is.Equal(cookies[0].Name, "library_language")
		is.Equal(cookies[0].Value, "es")
	})

	t.Run("refuses a language that is not offered", func(t *testing.T) {
		is := is.New(t)

		expectedJSONresponse := fmt.Sprintln(`{"error_code":120,"error_message":"your input has some errors, please correct them.","fields":{"language":["this language is not available."]}}`)

		request, _ := http.NewRequest(http.MethodPost, "/api/language", strings.NewReader(`{"language": "de"}`))
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.Equal(response.Result().StatusCode, 400)
		is.Equal(string(body), expectedJSONresponse)
	})
}

func TestServerTime(t *testing.T) {
	is := is.New(t)
	_, server := newTestServer(t)

	expectedJSONresponse := fmt.Sprintln(`{"datetime":"2024-03-15T17:30:00Z","date":"2024-03-15","time":"17:30:00","timestamp":1710523800}`)

	request, _ := http.NewRequest(http.MethodGet, "/api/time", nil)
	response := httptest.NewRecorder()

	server.Handler.ServeHTTP(response, request)

	body, _ := io.ReadAll(response.Result().Body)

	is.Equal(response.Result().StatusCode, 200)
	is.Equal(string(body), expectedJSONresponse)
}

func toPointer[T any](v T) *T {
	return &v
}

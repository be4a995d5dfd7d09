package notifications

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/matryer/is"
)

func TestLoanCreated(t *testing.T) {

	t.Run("publishes the loan message to the created topic", func(t *testing.T) {
		is := is.New(t)

		var gotPath string
		var gotBody string
		ntfyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			body, _ := io.ReadAll(r.Body)
			gotBody = string(body)
		}))
		defer ntfyServer.Close()

		ntfy := NewNtfy(true, ntfyServer.URL+"/library", nil)

		loanID := uuid.New()
		endDate := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
		err := ntfy.LoanCreated(context.Background(), loanID, 2, endDate)
		is.NoErr(err)

		is.Equal(gotPath, "/library_Loan_created")
		is.Equal(gotBody, "New loan created: ID: "+loanID.String()+" Books: 2 Due: 2024-04-01")
	})

	t.Run("reports a disabled client without touching the network", func(t *testing.T) {
		is := is.New(t)

		ntfyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("the disabled client should not publish")
		}))
		defer ntfyServer.Close()

		ntfy := NewNtfy(false, ntfyServer.URL+"/library", nil)

		err := ntfy.LoanCreated(context.Background(), uuid.New(), 1, time.Now())
		is.True(errors.Is(err, ErrNotificationsDisabled))
	})

	t.Run("a non 200 answer becomes a notification failure", func(t *testing.T) {
		is := is.New(t)

		ntfyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer ntfyServer.Close()

		ntfy := NewNtfy(true, ntfyServer.URL+"/library", nil)

		err := ntfy.LoanCreated(context.Background(), uuid.New(), 1, time.Now())
		var failed ErrNotificationFailed
		is.True(errors.As(err, &failed))
	})

	t.Run("expected context timeout error", func(t *testing.T) {
		is := is.New(t)

		ntfyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
		}))
		defer ntfyServer.Close()

		ntfy := NewNtfy(true, ntfyServer.URL+"/library", nil)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Millisecond)
		defer cancel()

		err := ntfy.LoanCreated(ctx, uuid.New(), 1, time.Now())
		is.True(errors.Is(err, context.DeadlineExceeded))
	})
}

func TestLoanReturned(t *testing.T) {

	t.Run("publishes the return message to the returned topic", func(t *testing.T) {
		is := is.New(t)

		var gotPath string
		var gotBody string
		ntfyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			body, _ := io.ReadAll(r.Body)
			gotBody = string(body)
		}))
		defer ntfyServer.Close()

		ntfy := NewNtfy(true, ntfyServer.URL+"/library", nil)

		loanID := uuid.New()
		err := ntfy.LoanReturned(context.Background(), loanID, 3)
		is.NoErr(err)

		is.Equal(gotPath, "/library_Loan_returned")
		is.Equal(gotBody, "Loan returned: ID: "+loanID.String()+" Books: 3")
	})
}

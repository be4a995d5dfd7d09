package notifications

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

/* Ntfy pushes short messages about loan activity to an ntfy topic.
When disabled every call is a no-op reporting ErrNotificationsDisabled. */
type Ntfy struct {
	baseURL string
	enabled bool
	client  *http.Client
}

type ErrNotificationFailed struct {
	statusCode int
}

func (e ErrNotificationFailed) Error() string {
	return fmt.Sprintf("ntfy wrong response - want: 200 OK, got: %d", e.statusCode)
}

func NewErrNotificationFailed(statusCode int) ErrNotificationFailed {
	return ErrNotificationFailed{statusCode: statusCode}
}

var ErrNotificationsDisabled = fmt.Errorf("notifications not enabled")

func NewNtfy(enableNotifications bool, notificationsBaseURL string, client *http.Client) *Ntfy {
	if client == nil {
		client = &http.Client{}
	}
	return &Ntfy{
		baseURL: notificationsBaseURL,
		enabled: enableNotifications,
		client:  client,
	}
}

func (ntf *Ntfy) LoanCreated(ctx context.Context, loanID uuid.UUID, bookCount int, endDate time.Time) error {
	message := fmt.Sprintf("New loan created: ID: %s Books: %d Due: %s", loanID, bookCount, endDate.Format("2006-01-02"))
	return ntf.publish(ctx, "Loan_created", message)
}

func (ntf *Ntfy) LoanReturned(ctx context.Context, loanID uuid.UUID, bookCount int) error {
	message := fmt.Sprintf("Loan returned: ID: %s Books: %d", loanID, bookCount)
	return ntf.publish(ctx, "Loan_returned", message)
}

func (ntf *Ntfy) publish(ctx context.Context, topic, message string) error {
	if !ntf.enabled {
		return ErrNotificationsDisabled
	}

	topicURL := ntf.baseURL + "_" + topic
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, topicURL, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("building message (%s) to topic (%s): %w", message, topicURL, err)
	}

	resp, err := ntf.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering message (%s) to topic (%s): %w", message, topicURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return NewErrNotificationFailed(resp.StatusCode)
	}
	return nil
}

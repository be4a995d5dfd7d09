package library

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"time"

	"github.com/library-service/cmd/api/notifications"

	"github.com/google/uuid"
)

type ServiceAPI interface {
	CreateAuthor(ctx context.Context, req CreateAuthorRequest) (Author, error)
	GetAuthor(ctx context.Context, id uuid.UUID) (Author, error)
	ListAuthors(ctx context.Context, name string) ([]Author, error)
	UpdateAuthor(ctx context.Context, req UpdateAuthorRequest) (Author, error)
	DeleteAuthor(ctx context.Context, id uuid.UUID) error

	CreateBook(ctx context.Context, req CreateBookRequest) (Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (Book, error)
	ListBooks(ctx context.Context, filter BookFilter) ([]Book, error)
	UpdateBook(ctx context.Context, req UpdateBookRequest) (Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
	ListSelectableBooks(ctx context.Context) ([]Book, error)
	SearchAvailableBooks(ctx context.Context, search string) ([]Book, error)

	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (Customer, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error)
	ListCustomers(ctx context.Context, search string) ([]Customer, error)
	UpdateCustomer(ctx context.Context, req UpdateCustomerRequest) (Customer, error)
	DeleteCustomer(ctx context.Context, id uuid.UUID) error

	CreateLoan(ctx context.Context, req CreateLoanRequest) (Loan, error)
	GetLoan(ctx context.Context, id uuid.UUID) (Loan, error)
	ListLoans(ctx context.Context, filter LoanFilter) ([]Loan, error)
	UpdateLoan(ctx context.Context, req UpdateLoanRequest) (Loan, error)
	DeleteLoan(ctx context.Context, id uuid.UUID) error
	ApproveDelivery(ctx context.Context, id uuid.UUID) (Loan, error)
	ReconcileOverdue(ctx context.Context) (int64, error)

	CreateUser(ctx context.Context, req CreateUserRequest) (User, error)
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, req UpdateUserRequest) (User, error)
	DeactivateUser(ctx context.Context, id uuid.UUID) error
}

type Repository interface {
	CreateAuthor(ctx context.Context, authorEntry Author) (Author, error)
	GetAuthorByID(ctx context.Context, id uuid.UUID) (Author, error)
	ListAuthors(ctx context.Context, name string) ([]Author, error)
	UpdateAuthor(ctx context.Context, authorEntry Author) (Author, error)
	DeleteAuthor(ctx context.Context, id uuid.UUID) error

	CreateBook(ctx context.Context, bookEntry Book) (Book, error)
	GetBookByID(ctx context.Context, id uuid.UUID) (Book, error)
	ListBooks(ctx context.Context, filter BookFilter) ([]Book, error)
	UpdateBook(ctx context.Context, bookEntry Book) (Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
	AdjustStock(ctx context.Context, bookIDs []uuid.UUID, delta int) error

	CreateCustomer(ctx context.Context, customerEntry Customer) (Customer, error)
	GetCustomerByID(ctx context.Context, id uuid.UUID) (Customer, error)
	ListCustomers(ctx context.Context, search string) ([]Customer, error)
	UpdateCustomer(ctx context.Context, customerEntry Customer) (Customer, error)
	DeleteCustomer(ctx context.Context, id uuid.UUID) error
	CustomerFieldInUse(ctx context.Context, field CustomerField, value string, exclude uuid.UUID) (bool, error)

	CreateLoan(ctx context.Context, loanEntry Loan) (Loan, error)
	GetLoanByID(ctx context.Context, id uuid.UUID) (Loan, error)
	ListLoans(ctx context.Context, filter LoanFilter) ([]Loan, error)
	UpdateLoan(ctx context.Context, loanEntry Loan) (Loan, error)
	DeleteLoan(ctx context.Context, id uuid.UUID) error
	ActiveBookCount(ctx context.Context, customerID uuid.UUID) (int, error)
	MarkOverdue(ctx context.Context, today time.Time) (int64, error)

	CreateUser(ctx context.Context, userEntry User) (User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, userEntry User) (User, error)
	UserFieldInUse(ctx context.Context, field UserField, value string, exclude uuid.UUID) (bool, error)
}

/* TxStarter opens a transaction-scoped view of the repository. All the
stock adjustments of a loan mutation go through it, so a loan and its
counters are persisted together or not at all. */
type TxStarter interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Repository, driver.Tx, error)
}

type Service struct {
	repo Repository
	txer TxStarter
	ntfy *notifications.Ntfy
	now  func() time.Time

	notificationsTimeout time.Duration
}

func NewService(repo Repository, txer TxStarter, ntfy *notifications.Ntfy, notificationsTimeout time.Duration, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:                 repo,
		txer:                 txer,
		ntfy:                 ntfy,
		now:                  now,
		notificationsTimeout: notificationsTimeout,
	}
}

/* Current date with the time stripped, used for due-date comparisons. */
func (s *Service) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

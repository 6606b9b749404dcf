package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"staffdesk/internal/platform/querier"
)

var (
	ErrNotFound         = errors.New("request not found")
	ErrAlreadyProcessed = errors.New("request already processed")
	// ErrAccountGone means the caller's employee or user row was deleted
	// while their session was still valid.
	ErrAccountGone = errors.New("account no longer exists")
)

const (
	invalidTextRepresentation = "22P02"
	foreignKeyViolation       = "23503"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const commonColumns = `r.id, r.employee_id, u.name, u.email, r.status, r.response, r.approved_by, r.approved_at, r.created_at, r.updated_at`

func kindColumns(kind Kind) string {
	switch kind {
	case KindVacation:
		return "r.start_date, r.end_date, r.days, r.reason"
	case KindFund:
		return "r.fund_type, r.amount::float8, r.reason, r.request_type"
	default:
		return "r.request_type, r.subject, r.description, r.priority, r.assigned_to"
	}
}

// selectFrom reads request rows from source, which is either the kind's
// table or a CTE holding rows RETURNING from a write.
func selectFrom(kind Kind, source string) string {
	return fmt.Sprintf(`
    SELECT %s, %s
    FROM %s r
    JOIN employees e ON e.id = r.employee_id
    JOIN users u ON u.id = e.user_id
  `, commonColumns, kindColumns(kind), source)
}

func scanRequest(kind Kind, row pgx.Row) (Request, error) {
	r := Request{Kind: kind}
	dest := []any{
		&r.ID, &r.EmployeeID, &r.EmployeeName, &r.EmployeeEmail, &r.Status, &r.Response,
		&r.ApprovedBy, &r.ApprovedAt, &r.CreatedAt, &r.UpdatedAt,
	}
	switch kind {
	case KindVacation:
		dest = append(dest, &r.StartDate, &r.EndDate, &r.Days, &r.Reason)
	case KindFund:
		dest = append(dest, &r.FundType, &r.Amount, &r.Reason, &r.RequestType)
	default:
		dest = append(dest, &r.RequestType, &r.Subject, &r.Description, &r.Priority, &r.AssignedTo)
	}
	if err := row.Scan(dest...); err != nil {
		return Request{}, err
	}
	return r, nil
}

func (s *Store) Create(ctx context.Context, r Request) (Request, error) {
	var insert string
	var args []any
	switch r.Kind {
	case KindVacation:
		insert = `INSERT INTO vacation_requests (employee_id, start_date, end_date, days, reason)
      VALUES ($1, $2, $3, $4, $5) RETURNING *`
		args = []any{r.EmployeeID, r.StartDate, r.EndDate, r.Days, r.Reason}
	case KindFund:
		insert = `INSERT INTO fund_requests (employee_id, fund_type, amount, reason, request_type)
      VALUES ($1, $2, $3, $4, $5) RETURNING *`
		args = []any{r.EmployeeID, r.FundType, r.Amount, r.Reason, r.RequestType}
	case KindGeneral:
		insert = `INSERT INTO general_requests (employee_id, request_type, subject, description, priority)
      VALUES ($1, $2, $3, $4, $5) RETURNING *`
		args = []any{r.EmployeeID, r.RequestType, r.Subject, r.Description, r.Priority}
	default:
		return Request{}, fmt.Errorf("unknown request kind %q", r.Kind)
	}

	query := "WITH inserted AS (" + insert + ")" + selectFrom(r.Kind, "inserted")
	created, err := scanRequest(r.Kind, s.DB.QueryRow(ctx, query, args...))
	return created, mapWriteError(err)
}

func (s *Store) Get(ctx context.Context, kind Kind, id string) (Request, error) {
	r, err := scanRequest(kind, s.DB.QueryRow(ctx, selectFrom(kind, kind.table())+"WHERE r.id = $1", id))
	return r, mapReadError(err)
}

func (s *Store) List(ctx context.Context, kind Kind, filter ListFilter) ([]Request, error) {
	query := selectFrom(kind, kind.table()) + "WHERE 1=1"
	var args []any
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		query += fmt.Sprintf(" AND r.employee_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND r.status = $%d", len(args))
	}
	query += fmt.Sprintf(" ORDER BY r.created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Request, 0)
	for rows.Next() {
		r, err := scanRequest(kind, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Transition moves a PENDING request to status in a single conditional
// UPDATE. Of two concurrent callers at most one sees a row back.
func (s *Store) Transition(ctx context.Context, kind Kind, id, status, actorUserID, response string) (Request, error) {
	query := fmt.Sprintf(`WITH updated AS (
    UPDATE %s
    SET status = $1, response = $2, approved_by = $3, approved_at = now(), updated_at = now()
    WHERE id = $4 AND status = 'PENDING'
    RETURNING *
  )`, kind.table()) + selectFrom(kind, "updated")

	r, err := scanRequest(kind, s.DB.QueryRow(ctx, query, status, response, actorUserID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, s.explainMiss(ctx, kind, id)
	}
	return r, mapWriteError(err)
}

func (s *Store) Assign(ctx context.Context, id, assigneeUserID string) (Request, error) {
	query := `WITH updated AS (
    UPDATE general_requests
    SET assigned_to = $1, updated_at = now()
    WHERE id = $2 AND status = 'PENDING'
    RETURNING *
  )` + selectFrom(KindGeneral, "updated")

	r, err := scanRequest(KindGeneral, s.DB.QueryRow(ctx, query, assigneeUserID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, s.explainMiss(ctx, KindGeneral, id)
	}
	return r, mapReadError(err)
}

// Delete removes a request only while it is still PENDING.
func (s *Store) Delete(ctx context.Context, kind Kind, id string) error {
	tag, err := s.DB.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND status = 'PENDING'", kind.table()), id)
	if err != nil {
		return mapReadError(err)
	}
	if tag.RowsAffected() == 0 {
		return s.explainMiss(ctx, kind, id)
	}
	return nil
}

func (s *Store) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)", userID).Scan(&exists)
	if errors.Is(mapReadError(err), ErrNotFound) {
		return false, nil
	}
	return exists, err
}

// explainMiss tells a missing row apart from one that already left PENDING
// after a conditional write matched nothing.
func (s *Store) explainMiss(ctx context.Context, kind Kind, id string) error {
	var status string
	err := s.DB.QueryRow(ctx, fmt.Sprintf("SELECT status FROM %s WHERE id = $1", kind.table()), id).Scan(&status)
	if err != nil {
		return mapReadError(err)
	}
	if strings.EqualFold(status, StatusPending) {
		return fmt.Errorf("request %s still pending after conditional write", id)
	}
	return ErrAlreadyProcessed
}

// mapWriteError is mapReadError for writes that reference the caller: a
// dangling employee_id or approved_by means the account was deleted.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return ErrAccountGone
	}
	return mapReadError(err)
}

func mapReadError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation {
		return ErrNotFound
	}
	return err
}

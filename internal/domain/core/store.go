package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"staffdesk/internal/domain/auth"
	"staffdesk/internal/platform/querier"
)

var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrDuplicate        = errors.New("duplicate employee")
)

const uniqueViolation = "23505"

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const employeeSelect = `
    SELECT e.id, e.user_id, e.employee_code, u.email, u.name, u.role,
           e.first_name, e.last_name, e.position, e.department, e.hire_date, e.salary::float8,
           e.phone, e.address, e.emergency_contact, e.created_at, e.updated_at
    FROM employees e
    JOIN users u ON u.id = e.user_id
`

func scanEmployee(row pgx.Row) (Employee, error) {
	var emp Employee
	var role string
	err := row.Scan(
		&emp.ID, &emp.UserID, &emp.EmployeeCode, &emp.Email, &emp.Name, &role,
		&emp.FirstName, &emp.LastName, &emp.Position, &emp.Department, &emp.HireDate, &emp.Salary,
		&emp.Phone, &emp.Address, &emp.EmergencyContact, &emp.CreatedAt, &emp.UpdatedAt,
	)
	if err != nil {
		return Employee{}, err
	}
	emp.Role = auth.Role(role)
	return emp, nil
}

func (s *Store) GetEmployee(ctx context.Context, employeeID string) (Employee, error) {
	emp, err := scanEmployee(s.DB.QueryRow(ctx, employeeSelect+"WHERE e.id = $1", employeeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	return emp, err
}

func (s *Store) GetEmployeeByUserID(ctx context.Context, userID string) (Employee, error) {
	emp, err := scanEmployee(s.DB.QueryRow(ctx, employeeSelect+"WHERE e.user_id = $1", userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	return emp, err
}

func (s *Store) ListEmployees(ctx context.Context, filter ListFilter) ([]Employee, error) {
	query := employeeSelect + "WHERE 1=1"
	var args []any
	if filter.Department != "" {
		args = append(args, filter.Department)
		query += fmt.Sprintf(" AND e.department = $%d", len(args))
	}
	query += fmt.Sprintf(" ORDER BY e.last_name, e.first_name LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Employee, 0)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

// CreateEmployeeWithUser inserts the login account and the profile in one
// transaction. Either both rows exist afterwards or neither does.
func (s *Store) CreateEmployeeWithUser(ctx context.Context, user NewUser, emp Employee) (Employee, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Employee{}, err
	}

	var userID string
	if err := tx.QueryRow(ctx, `
    INSERT INTO users (email, name, password_hash, role)
    VALUES ($1, $2, $3, $4)
    RETURNING id
  `, user.Email, user.Name, user.PasswordHash, string(user.Role)).Scan(&userID); err != nil {
		_ = tx.Rollback(ctx)
		return Employee{}, mapWriteError(err)
	}

	emp.UserID = userID
	if err := tx.QueryRow(ctx, `
    INSERT INTO employees (user_id, employee_code, first_name, last_name, position, department, hire_date, salary, phone, address, emergency_contact)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    RETURNING id, created_at, updated_at
  `, userID, emp.EmployeeCode, emp.FirstName, emp.LastName, emp.Position, emp.Department, emp.HireDate, emp.Salary,
		emp.Phone, emp.Address, emp.EmergencyContact).Scan(&emp.ID, &emp.CreatedAt, &emp.UpdatedAt); err != nil {
		_ = tx.Rollback(ctx)
		return Employee{}, mapWriteError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Employee{}, err
	}
	emp.Email = user.Email
	emp.Name = user.Name
	emp.Role = user.Role
	return emp, nil
}

// UpdateEmployee writes only the non-nil fields of upd.
func (s *Store) UpdateEmployee(ctx context.Context, employeeID string, upd EmployeeUpdate) error {
	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.FirstName != nil {
		add("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		add("last_name", *upd.LastName)
	}
	if upd.Phone != nil {
		add("phone", *upd.Phone)
	}
	if upd.Address != nil {
		add("address", *upd.Address)
	}
	if upd.EmergencyContact != nil {
		add("emergency_contact", *upd.EmergencyContact)
	}
	if upd.Position != nil {
		add("position", *upd.Position)
	}
	if upd.Department != nil {
		add("department", *upd.Department)
	}
	if upd.Salary != nil {
		add("salary", *upd.Salary)
	}
	if upd.HireDate != nil {
		add("hire_date", *upd.HireDate)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, employeeID)
	query := fmt.Sprintf("UPDATE employees SET %s, updated_at = now() WHERE id = $%d", strings.Join(sets, ", "), len(args))
	tag, err := s.DB.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

// DeleteEmployee removes the profile and its login account in one
// transaction. Requests owned by the employee cascade.
func (s *Store) DeleteEmployee(ctx context.Context, employeeID string) (string, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return "", err
	}

	var userID string
	err = tx.QueryRow(ctx, "DELETE FROM employees WHERE id = $1 RETURNING user_id", employeeID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = tx.Rollback(ctx)
		return "", ErrEmployeeNotFound
	}
	if err != nil {
		_ = tx.Rollback(ctx)
		return "", err
	}

	if _, err := tx.Exec(ctx, "DELETE FROM users WHERE id = $1", userID); err != nil {
		_ = tx.Rollback(ctx)
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return userID, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

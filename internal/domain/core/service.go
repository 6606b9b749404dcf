package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"staffdesk/internal/apperr"
	"staffdesk/internal/domain/audit"
	"staffdesk/internal/domain/auth"
	"staffdesk/internal/platform/events"
)

const minPasswordLength = 8

type EmployeeStore interface {
	GetEmployee(ctx context.Context, employeeID string) (Employee, error)
	GetEmployeeByUserID(ctx context.Context, userID string) (Employee, error)
	ListEmployees(ctx context.Context, filter ListFilter) ([]Employee, error)
	CreateEmployeeWithUser(ctx context.Context, user NewUser, emp Employee) (Employee, error)
	UpdateEmployee(ctx context.Context, employeeID string, upd EmployeeUpdate) error
	DeleteEmployee(ctx context.Context, employeeID string) (string, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

type Service struct {
	store     EmployeeStore
	audit     AuditRecorder
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(store EmployeeStore, recorder AuditRecorder, publisher events.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{store: store, audit: recorder, publisher: publisher, logger: logger.Named("employees"), now: time.Now}
}

func (s *Service) CreateEmployee(ctx context.Context, p auth.Principal, in CreateEmployeeInput) (CreatedEmployee, error) {
	if err := auth.Require(p.Role, auth.PermEmployeesCreate); err != nil {
		return CreatedEmployee{}, err
	}

	in.Email = strings.TrimSpace(in.Email)
	in.EmployeeCode = strings.TrimSpace(in.EmployeeCode)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		in.Name = strings.TrimSpace(in.FirstName + " " + in.LastName)
	}

	v := apperr.NewValidator()
	v.Required("email", in.Email)
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		v.Add("email", "must be a valid email address")
	}
	v.Required("employeeCode", in.EmployeeCode)
	v.Required("firstName", in.FirstName)
	v.Required("lastName", in.LastName)
	v.Enum("role", in.Role, roleNames())
	if in.Password != "" && len(in.Password) < minPasswordLength {
		v.Add("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if in.Salary != nil && *in.Salary < 0 {
		v.Add("salary", "must not be negative")
	}
	if err := v.Err(); err != nil {
		return CreatedEmployee{}, err
	}

	role := auth.RoleEmployee
	if strings.TrimSpace(in.Role) != "" {
		parsed, err := auth.ParseRole(in.Role)
		if err != nil {
			return CreatedEmployee{}, err
		}
		role = parsed
	}
	if role == auth.RoleAdmin {
		if err := auth.Require(p.Role, auth.PermUsersAssignAdmin); err != nil {
			return CreatedEmployee{}, apperr.Forbidden("only administrators may create administrator accounts")
		}
	}

	password := in.Password
	generated := ""
	if password == "" {
		pw, err := generatePassword()
		if err != nil {
			return CreatedEmployee{}, fmt.Errorf("generate password: %w", err)
		}
		password, generated = pw, pw
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return CreatedEmployee{}, fmt.Errorf("hash password: %w", err)
	}

	emp, err := s.store.CreateEmployeeWithUser(ctx, NewUser{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Role:         role,
	}, Employee{
		EmployeeCode:     in.EmployeeCode,
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		Position:         strings.TrimSpace(in.Position),
		Department:       strings.TrimSpace(in.Department),
		HireDate:         in.HireDate,
		Salary:           in.Salary,
		Phone:            strings.TrimSpace(in.Phone),
		Address:          strings.TrimSpace(in.Address),
		EmergencyContact: strings.TrimSpace(in.EmergencyContact),
	})
	if errors.Is(err, ErrDuplicate) {
		return CreatedEmployee{}, apperr.Conflict("an employee with this email or employee code already exists")
	}
	if err != nil {
		return CreatedEmployee{}, fmt.Errorf("create employee: %w", err)
	}

	s.record(ctx, audit.Entry{ActorID: p.UserID, Action: "employee.create", EntityType: "employee", EntityID: emp.ID, After: emp})
	return CreatedEmployee{Employee: emp, TemporaryPassword: generated}, nil
}

func (s *Service) ListEmployees(ctx context.Context, p auth.Principal, filter ListFilter) ([]Employee, error) {
	if err := auth.Require(p.Role, auth.PermEmployeesList); err != nil {
		return nil, err
	}
	employees, err := s.store.ListEmployees(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	for i := range employees {
		RedactEmployee(&employees[i], p)
	}
	return employees, nil
}

func (s *Service) GetEmployee(ctx context.Context, p auth.Principal, employeeID string) (Employee, error) {
	if !isSelf(p, employeeID) {
		if err := auth.Require(p.Role, auth.PermEmployeesReadAny); err != nil {
			return Employee{}, err
		}
	}
	emp, err := s.lookup(ctx, employeeID)
	if err != nil {
		return Employee{}, err
	}
	RedactEmployee(&emp, p)
	return emp, nil
}

// Profile returns the caller's own employee record, or nil when the account
// has no linked employee.
func (s *Service) Profile(ctx context.Context, p auth.Principal) (*Employee, error) {
	emp, err := s.store.GetEmployeeByUserID(ctx, p.UserID)
	if errors.Is(err, ErrEmployeeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &emp, nil
}

func (s *Service) UpdateEmployee(ctx context.Context, p auth.Principal, employeeID string, upd EmployeeUpdate) (Employee, error) {
	self := isSelf(p, employeeID)
	if !self {
		if err := auth.Require(p.Role, auth.PermEmployeesUpdateAny); err != nil {
			return Employee{}, err
		}
	}

	before, err := s.lookup(ctx, employeeID)
	if err != nil {
		return Employee{}, err
	}

	effective := upd.Restrict(AllowedUpdateFields(p, self))
	if dropped := len(upd.Submitted()) - len(effective.Submitted()); dropped > 0 {
		s.logger.Debug("dropped fields outside caller's update scope",
			zap.String("employee_id", employeeID),
			zap.Strings("submitted", upd.Submitted()),
			zap.Strings("applied", effective.Submitted()),
		)
	}
	if v := validateUpdate(effective); v != nil {
		return Employee{}, v
	}
	if effective.Empty() {
		RedactEmployee(&before, p)
		return before, nil
	}

	if err := s.store.UpdateEmployee(ctx, employeeID, effective); err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			return Employee{}, apperr.NotFound("employee not found")
		}
		return Employee{}, fmt.Errorf("update employee: %w", err)
	}

	after, err := s.lookup(ctx, employeeID)
	if err != nil {
		return Employee{}, err
	}
	s.record(ctx, audit.Entry{ActorID: p.UserID, Action: "employee.update", EntityType: "employee", EntityID: employeeID, Before: before, After: effective})
	RedactEmployee(&after, p)
	return after, nil
}

func (s *Service) DeleteEmployee(ctx context.Context, p auth.Principal, employeeID string) error {
	if err := auth.Require(p.Role, auth.PermEmployeesDelete); err != nil {
		return err
	}
	before, err := s.lookup(ctx, employeeID)
	if err != nil {
		return err
	}
	if before.UserID == p.UserID {
		return apperr.Conflict("you cannot delete your own account")
	}

	if _, err := s.store.DeleteEmployee(ctx, employeeID); err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			return apperr.NotFound("employee not found")
		}
		return fmt.Errorf("delete employee: %w", err)
	}

	s.record(ctx, audit.Entry{ActorID: p.UserID, Action: "employee.delete", EntityType: "employee", EntityID: employeeID, Before: before})
	s.publisher.Publish(ctx, events.Event{
		Type:       events.EmployeeDeleted,
		Kind:       "employee",
		EntityID:   employeeID,
		EmployeeID: employeeID,
		ActorID:    p.UserID,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

func (s *Service) lookup(ctx context.Context, employeeID string) (Employee, error) {
	emp, err := s.store.GetEmployee(ctx, employeeID)
	if errors.Is(err, ErrEmployeeNotFound) {
		return Employee{}, apperr.NotFound("employee not found")
	}
	if err != nil {
		return Employee{}, fmt.Errorf("get employee: %w", err)
	}
	return emp, nil
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", zap.String("action", entry.Action), zap.Error(err))
	}
}

func validateUpdate(u EmployeeUpdate) error {
	v := apperr.NewValidator()
	if u.FirstName != nil {
		v.Required("firstName", *u.FirstName)
	}
	if u.LastName != nil {
		v.Required("lastName", *u.LastName)
	}
	if u.Salary != nil && *u.Salary < 0 {
		v.Add("salary", "must not be negative")
	}
	return v.Err()
}

func isSelf(p auth.Principal, employeeID string) bool {
	return p.EmployeeID != "" && p.EmployeeID == employeeID
}

func roleNames() []string {
	names := make([]string, len(auth.AllRoles))
	for i, r := range auth.AllRoles {
		names[i] = string(r)
	}
	return names
}

func generatePassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"staffdesk/internal/apperr"
	"staffdesk/internal/domain/audit"
	"staffdesk/internal/domain/auth"
	"staffdesk/internal/platform/email"
	"staffdesk/internal/platform/events"
	"staffdesk/internal/platform/metrics"
)

type RequestStore interface {
	Create(ctx context.Context, r Request) (Request, error)
	Get(ctx context.Context, kind Kind, id string) (Request, error)
	List(ctx context.Context, kind Kind, filter ListFilter) ([]Request, error)
	Transition(ctx context.Context, kind Kind, id, status, actorUserID, response string) (Request, error)
	Assign(ctx context.Context, id, assigneeUserID string) (Request, error)
	Delete(ctx context.Context, kind Kind, id string) error
	UserExists(ctx context.Context, userID string) (bool, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

type Service struct {
	store     RequestStore
	audit     AuditRecorder
	publisher events.Publisher
	mailer    email.Mailer
	metrics   *metrics.Collector
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(store RequestStore, recorder AuditRecorder, publisher events.Publisher, mailer email.Mailer, collector *metrics.Collector, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		store:     store,
		audit:     recorder,
		publisher: publisher,
		mailer:    mailer,
		metrics:   collector,
		logger:    logger.Named("requests"),
		now:       time.Now,
	}
}

func (s *Service) CreateVacation(ctx context.Context, p auth.Principal, in VacationInput) (Request, error) {
	if !p.HasEmployee() {
		return Request{}, errNoEmployee
	}

	v := apperr.NewValidator()
	if in.StartDate == nil {
		v.Add("startDate", "is required")
	}
	if in.EndDate == nil {
		v.Add("endDate", "is required")
	}
	days := 0
	if in.StartDate != nil && in.EndDate != nil {
		computed, err := CalculateDays(*in.StartDate, *in.EndDate)
		if err != nil {
			v.Add("endDate", "must not be before startDate")
		}
		days = computed
	}
	if in.Days != nil {
		if *in.Days <= 0 {
			v.Add("days", "must be positive")
		}
		days = *in.Days
	}
	if err := v.Err(); err != nil {
		return Request{}, err
	}

	return s.create(ctx, p, Request{
		Kind:       KindVacation,
		EmployeeID: p.EmployeeID,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		Days:       days,
		Reason:     strings.TrimSpace(in.Reason),
	})
}

func (s *Service) CreateFund(ctx context.Context, p auth.Principal, in FundInput) (Request, error) {
	if !p.HasEmployee() {
		return Request{}, errNoEmployee
	}

	in.FundType = strings.ToUpper(strings.TrimSpace(in.FundType))
	in.Reason = strings.TrimSpace(in.Reason)
	v := apperr.NewValidator()
	v.Required("fundType", in.FundType)
	v.Enum("fundType", in.FundType, FundTypes)
	if in.Amount <= 0 {
		v.Add("amount", "must be greater than zero")
	}
	v.Required("reason", in.Reason)
	if err := v.Err(); err != nil {
		return Request{}, err
	}

	amount := in.Amount
	return s.create(ctx, p, Request{
		Kind:        KindFund,
		EmployeeID:  p.EmployeeID,
		FundType:    in.FundType,
		Amount:      &amount,
		Reason:      in.Reason,
		RequestType: strings.TrimSpace(in.RequestType),
	})
}

func (s *Service) CreateGeneral(ctx context.Context, p auth.Principal, in GeneralInput) (Request, error) {
	if !p.HasEmployee() {
		return Request{}, errNoEmployee
	}

	in.RequestType = strings.TrimSpace(in.RequestType)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Priority = strings.ToUpper(strings.TrimSpace(in.Priority))
	if in.Priority == "" {
		in.Priority = DefaultPriority
	}
	v := apperr.NewValidator()
	v.Required("requestType", in.RequestType)
	v.Required("subject", in.Subject)
	v.Enum("priority", in.Priority, Priorities)
	if err := v.Err(); err != nil {
		return Request{}, err
	}

	return s.create(ctx, p, Request{
		Kind:        KindGeneral,
		EmployeeID:  p.EmployeeID,
		RequestType: in.RequestType,
		Subject:     in.Subject,
		Description: strings.TrimSpace(in.Description),
		Priority:    in.Priority,
	})
}

func (s *Service) create(ctx context.Context, p auth.Principal, r Request) (Request, error) {
	created, err := s.store.Create(ctx, r)
	if errors.Is(err, ErrAccountGone) {
		return Request{}, apperr.Unauthenticated(ErrAccountGone.Error())
	}
	if err != nil {
		return Request{}, fmt.Errorf("create %s request: %w", r.Kind, err)
	}
	s.record(ctx, audit.Entry{ActorID: p.UserID, Action: string(r.Kind) + ".create", EntityType: string(r.Kind) + "_request", EntityID: created.ID, After: created})
	s.publish(ctx, events.RequestCreated, created, p.UserID)
	return created, nil
}

// List returns every request of kind for read_any roles and only the
// caller's own requests for everyone else.
func (s *Service) List(ctx context.Context, p auth.Principal, kind Kind, filter ListFilter) ([]Request, error) {
	filter.Status = strings.ToUpper(strings.TrimSpace(filter.Status))
	v := apperr.NewValidator()
	v.Enum("status", filter.Status, Statuses)
	if err := v.Err(); err != nil {
		return nil, err
	}

	if !p.Can(auth.KindPermission(string(kind), "read_any")) {
		if !p.HasEmployee() {
			return nil, errNoEmployee
		}
		if filter.EmployeeID != "" && filter.EmployeeID != p.EmployeeID {
			return nil, apperr.Forbidden("you may only list your own requests")
		}
		filter.EmployeeID = p.EmployeeID
	}

	out, err := s.store.List(ctx, kind, filter)
	if err != nil {
		return nil, fmt.Errorf("list %s requests: %w", kind, err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, p auth.Principal, kind Kind, id string) (Request, error) {
	r, err := s.lookup(ctx, kind, id)
	if err != nil {
		return Request{}, err
	}
	if !isOwner(p, r) && !p.Can(auth.KindPermission(string(kind), "read_any")) {
		return Request{}, apperr.Forbidden("you may only view your own requests")
	}
	return r, nil
}

// Transition approves or rejects a PENDING request. The decision is written
// with a compare-and-set so a request is decided at most once.
func (s *Service) Transition(ctx context.Context, p auth.Principal, kind Kind, id string, in TransitionInput) (Request, error) {
	if err := auth.Require(p.Role, auth.KindPermission(string(kind), "transition")); err != nil {
		return Request{}, err
	}

	status := strings.ToUpper(strings.TrimSpace(in.Status))
	if status != StatusApproved && status != StatusRejected {
		return Request{}, apperr.Invalid("status must be APPROVED or REJECTED",
			apperr.FieldIssue{Field: "status", Reason: "must be one of " + StatusApproved + ", " + StatusRejected})
	}

	updated, err := s.store.Transition(ctx, kind, id, status, p.UserID, strings.TrimSpace(in.Response))
	if err != nil {
		return Request{}, s.mapStoreError(kind, err)
	}

	s.metrics.RecordTransition(string(kind), status)
	s.record(ctx, audit.Entry{
		ActorID:    p.UserID,
		Action:     string(kind) + "." + strings.ToLower(status),
		EntityType: string(kind) + "_request",
		EntityID:   id,
		Before:     map[string]string{"status": StatusPending},
		After:      updated,
	})
	eventType := events.RequestApproved
	if status == StatusRejected {
		eventType = events.RequestRejected
	}
	s.publish(ctx, eventType, updated, p.UserID)
	s.notifyDecision(ctx, updated)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, p auth.Principal, kind Kind, id string) error {
	r, err := s.lookup(ctx, kind, id)
	if err != nil {
		return err
	}
	if !isOwner(p, r) && !p.Can(auth.KindPermission(string(kind), "delete_any")) {
		return apperr.Forbidden("you may only delete your own requests")
	}
	if r.Status != StatusPending {
		return apperr.Conflict("only pending requests can be deleted")
	}

	if err := s.store.Delete(ctx, kind, id); err != nil {
		return s.mapStoreError(kind, err)
	}

	s.record(ctx, audit.Entry{ActorID: p.UserID, Action: string(kind) + ".delete", EntityType: string(kind) + "_request", EntityID: id, Before: r})
	s.publish(ctx, events.RequestDeleted, r, p.UserID)
	return nil
}

// Assign hands a PENDING general request to another user for handling.
func (s *Service) Assign(ctx context.Context, p auth.Principal, id, assigneeUserID string) (Request, error) {
	if err := auth.Require(p.Role, auth.PermGeneralAssign); err != nil {
		return Request{}, err
	}
	assigneeUserID = strings.TrimSpace(assigneeUserID)
	if assigneeUserID == "" {
		return Request{}, apperr.Invalid("assignee is required", apperr.FieldIssue{Field: "assigneeId", Reason: "is required"})
	}
	exists, err := s.store.UserExists(ctx, assigneeUserID)
	if err != nil {
		return Request{}, fmt.Errorf("check assignee: %w", err)
	}
	if !exists {
		return Request{}, apperr.Invalid("assignee does not exist", apperr.FieldIssue{Field: "assigneeId", Reason: "unknown user"})
	}

	updated, err := s.store.Assign(ctx, id, assigneeUserID)
	if err != nil {
		return Request{}, s.mapStoreError(KindGeneral, err)
	}
	s.record(ctx, audit.Entry{ActorID: p.UserID, Action: "general.assign", EntityType: "general_request", EntityID: id, After: map[string]string{"assignedTo": assigneeUserID}})
	s.publish(ctx, events.RequestAssigned, updated, p.UserID)
	return updated, nil
}

// ApprovedVacation loads a vacation request for slip rendering.
func (s *Service) ApprovedVacation(ctx context.Context, p auth.Principal, id string) (Request, error) {
	r, err := s.Get(ctx, p, KindVacation, id)
	if err != nil {
		return Request{}, err
	}
	if r.Status != StatusApproved {
		return Request{}, apperr.Conflict("a slip is only available for approved requests")
	}
	return r, nil
}

var errNoEmployee = apperr.Forbidden("an employee profile is required for this operation")

func (s *Service) lookup(ctx context.Context, kind Kind, id string) (Request, error) {
	r, err := s.store.Get(ctx, kind, id)
	if err != nil {
		return Request{}, s.mapStoreError(kind, err)
	}
	return r, nil
}

func (s *Service) mapStoreError(kind Kind, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound(string(kind) + " request not found")
	case errors.Is(err, ErrAlreadyProcessed):
		return apperr.Conflict("request has already been processed")
	case errors.Is(err, ErrAccountGone):
		return apperr.Unauthenticated(ErrAccountGone.Error())
	}
	return fmt.Errorf("%s request: %w", kind, err)
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", zap.String("action", entry.Action), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, eventType events.EventType, r Request, actorID string) {
	s.publisher.Publish(ctx, events.Event{
		Type:       eventType,
		Kind:       string(r.Kind),
		EntityID:   r.ID,
		EmployeeID: r.EmployeeID,
		ActorID:    actorID,
		Status:     r.Status,
		OccurredAt: s.now().UTC(),
	})
}

// notifyDecision mails the requester. Delivery failures are logged only; the
// decision is already committed.
func (s *Service) notifyDecision(ctx context.Context, r Request) {
	if s.mailer == nil || r.EmployeeEmail == "" {
		return
	}
	msg := email.Message{
		To:      r.EmployeeEmail,
		Subject: fmt.Sprintf("Your %s request was %s", r.Kind, strings.ToLower(r.Status)),
		Body:    decisionBody(r),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("decision mail failed", zap.String("request_id", r.ID), zap.String("kind", string(r.Kind)), zap.Error(err))
	}
}

func decisionBody(r Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", r.EmployeeName)
	fmt.Fprintf(&b, "your %s request %s has been %s.\n", r.Kind, r.ID, strings.ToLower(r.Status))
	if r.Kind == KindVacation && r.StartDate != nil && r.EndDate != nil {
		fmt.Fprintf(&b, "Period: %s to %s (%d days)\n", r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"), r.Days)
	}
	if r.Response != "" {
		fmt.Fprintf(&b, "\nResponse: %s\n", r.Response)
	}
	return b.String()
}

func isOwner(p auth.Principal, r Request) bool {
	return p.EmployeeID != "" && p.EmployeeID == r.EmployeeID
}

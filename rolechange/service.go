package rolechange

import (
	"context"
	"strings"
	"time"

	"github.com/jrsteele09/go-admissions-auth/audit"
	"github.com/jrsteele09/go-admissions-auth/internal/metrics"
	"github.com/jrsteele09/go-admissions-auth/profiles"
	"github.com/jrsteele09/go-admissions-auth/roles"
	"github.com/jrsteele09/go-admissions-auth/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Messages returned to callers in Result.Error
const (
	MsgNoSession        = "No active session"
	MsgInsufficient     = "Insufficient privileges"
	MsgSelfAdminRemoval = "Cannot remove admin role from yourself"
	MsgInvalidRole      = "Invalid role"
	MsgInvalidUser      = "Invalid user"
	MsgUpdateFailed     = "Failed to update user role"
)

type Outcome string

const (
	OutcomeValidated Outcome = "validated"
	OutcomeApplied   Outcome = "applied"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
)

// Result of a role mutation attempt. Error is safe to show to the end user.
type Result struct {
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
	Outcome Outcome `json:"-"`
}

func rejected(msg string) Result {
	return Result{Error: msg, Outcome: OutcomeRejected}
}

// Service validates and applies role changes on user profiles, auditing every attempt.
type Service struct {
	repo     profiles.Repo
	resolver *profiles.Resolver
	audit    *audit.Logger
	nowTime  func() time.Time
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func NewService(repo profiles.Repo, resolver *profiles.Resolver, auditLogger *audit.Logger, options ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("[NewService] profiles repo is required")
	}
	if resolver == nil {
		return nil, errors.New("[NewService] role resolver is required")
	}
	if auditLogger == nil {
		return nil, errors.New("[NewService] audit logger is required")
	}
	s := &Service{
		repo:     repo,
		resolver: resolver,
		audit:    auditLogger,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// ValidateRoleChange checks whether caller may set targetUserID's role to newRole.
// Every rejection writes exactly one audit event.
func (s *Service) ValidateRoleChange(ctx context.Context, caller *sessions.Session, targetUserID, newRole string) Result {
	res := s.validate(ctx, caller, strings.TrimSpace(targetUserID), newRole)
	if res.Outcome == OutcomeRejected {
		metrics.RoleChanges.WithLabelValues(string(OutcomeRejected)).Inc()
	}
	return res
}

func (s *Service) validate(ctx context.Context, caller *sessions.Session, targetUserID, newRole string) Result {
	if caller != nil {
		ctx = sessions.WithSession(ctx, caller)
	}
	attempt := []audit.EventOption{
		audit.WithTable(audit.TableUserProfiles),
		audit.WithRecordID(targetUserID),
		audit.WithNewValues(roleValues{Role: newRole}),
	}

	if caller == nil {
		s.audit.LogEvent(ctx, audit.ActionUnauthorizedRoleChange, attempt...)
		return rejected(MsgNoSession)
	}

	// errors fail closed here, unlike the student guard
	resolution, err := s.resolver.Resolve(ctx, caller.UserID)
	if err != nil || resolution.Role != roles.RoleAdmin {
		s.audit.LogEvent(ctx, audit.ActionUnauthorizedRoleChange, attempt...)
		return rejected(MsgInsufficient)
	}
	callerRole := resolution.Role

	if targetUserID == "" {
		s.audit.LogEvent(ctx, audit.ActionInvalidRoleChangeAttempt, attempt...)
		return rejected(MsgInvalidUser)
	}

	if targetUserID == strings.TrimSpace(caller.UserID) && newRole != string(roles.RoleAdmin) {
		s.audit.LogEvent(ctx, audit.ActionSelfAdminRoleRemovalAttempt, attempt...)
		return rejected(MsgSelfAdminRemoval)
	}

	target := roles.Role(newRole)
	if !target.Valid() {
		s.audit.LogEvent(ctx, audit.ActionInvalidRoleChangeAttempt, attempt...)
		return rejected(MsgInvalidRole)
	}

	if !roles.CanModifyRole(callerRole, target) {
		s.audit.LogEvent(ctx, audit.ActionUnauthorizedRoleChange, attempt...)
		return rejected(MsgInsufficient)
	}

	return Result{Success: true, Outcome: OutcomeValidated}
}

type roleValues struct {
	Role  string `json:"role"`
	Error string `json:"error,omitempty"`
}

// UpdateUserRole validates and applies a role change. The write is conditional
// on the role read before it, so a concurrent change is reported as a failure.
func (s *Service) UpdateUserRole(ctx context.Context, caller *sessions.Session, targetUserID, newRole string) Result {
	targetUserID = strings.TrimSpace(targetUserID)
	if res := s.ValidateRoleChange(ctx, caller, targetUserID, newRole); !res.Success {
		return res
	}
	ctx = sessions.WithSession(ctx, caller)
	to := roles.Role(newRole)

	from, err := s.apply(ctx, targetUserID, to)
	if err != nil {
		log.Err(err).Str("target_user_id", targetUserID).Str("new_role", newRole).Msg("Role update failed")
		opts := []audit.EventOption{
			audit.WithTable(audit.TableUserProfiles),
			audit.WithRecordID(targetUserID),
			audit.WithNewValues(roleValues{Role: newRole, Error: err.Error()}),
		}
		if from != "" {
			opts = append(opts, audit.WithOldValues(roleValues{Role: string(from)}))
		}
		s.audit.LogEvent(ctx, audit.ActionRoleChangeFailed, opts...)
		metrics.RoleChanges.WithLabelValues(string(OutcomeFailed)).Inc()
		return Result{Error: MsgUpdateFailed, Outcome: OutcomeFailed}
	}

	s.audit.LogEvent(ctx, audit.ActionRoleChanged,
		audit.WithTable(audit.TableUserProfiles),
		audit.WithRecordID(targetUserID),
		audit.WithOldValues(roleValues{Role: string(from)}),
		audit.WithNewValues(roleValues{Role: newRole}),
	)
	metrics.RoleChanges.WithLabelValues(string(OutcomeApplied)).Inc()
	log.Info().Str("target_user_id", targetUserID).Str("old_role", string(from)).Str("new_role", newRole).Msg("User role changed")
	return Result{Success: true, Outcome: OutcomeApplied}
}

// apply returns the role the target held before the change, empty when it could not be read.
func (s *Service) apply(ctx context.Context, userID string, to roles.Role) (roles.Role, error) {
	current, err := s.repo.Get(ctx, userID)
	if errors.Is(err, profiles.ErrProfileNotFound) {
		now := s.nowTime()
		err = s.repo.Insert(ctx, &profiles.UserProfile{UserID: userID, Role: to, CreatedAt: now, UpdatedAt: now})
		return roles.DefaultRole, errors.Wrap(err, "[Service.apply] repo.Insert")
	}
	if err != nil {
		return "", errors.Wrap(err, "[Service.apply] repo.Get")
	}

	if err := s.repo.UpdateRole(ctx, userID, current.Role, to); err != nil {
		return current.Role, errors.Wrap(err, "[Service.apply] repo.UpdateRole")
	}
	return current.Role, nil
}

package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-admissions-auth/access"
	apperrors "github.com/jrsteele09/go-admissions-auth/internal/errors"
	"github.com/jrsteele09/go-admissions-auth/roles"
	"github.com/jrsteele09/go-admissions-auth/rolechange"
	"github.com/jrsteele09/go-admissions-auth/sessions"
	"github.com/rs/zerolog/log"
)

const defaultPageSize = 50

type sessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// SessionResponse is the session bootstrap a page loads before rendering.
type SessionResponse struct {
	User        *sessionUser        `json:"user"`
	Role        roles.Role          `json:"role,omitempty"`
	Permissions roles.PermissionSet `json:"permissions"`
	Home        string              `json:"home,omitempty"`
}

// SessionHandler reports the caller's identity, resolved role and permissions.
// Anonymous callers get a null user.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessions.FromContext(r.Context())
		if session == nil {
			writeJSON(w, http.StatusOK, SessionResponse{})
			return
		}

		resolution, _ := s.resolver.Resolve(r.Context(), session.UserID)
		writeJSON(w, http.StatusOK, SessionResponse{
			User:        &sessionUser{ID: session.UserID, Email: session.Email},
			Role:        resolution.Role,
			Permissions: roles.PermissionsFor(resolution.Role),
			Home:        access.HomeFor(resolution.Role),
		})
	}
}

func pagination(r *http.Request) (offset, limit int, err error) {
	offset, limit = 0, defaultPageSize
	if v := r.URL.Query().Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, apperrors.Wrapf(apperrors.ErrInvalidRequest, "offset %q", v)
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			return 0, 0, apperrors.Wrapf(apperrors.ErrInvalidRequest, "limit %q", v)
		}
	}
	return offset, limit, nil
}

func (s *Server) ListUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, limit, err := pagination(r)
		if err != nil {
			writeJSONError(w, apperrors.StatusCode(err), err.Error(), "")
			return
		}
		users, err := s.profiles.List(r.Context(), offset, limit)
		if err != nil {
			log.Err(err).Msg("failed to list user profiles")
			writeJSONError(w, http.StatusInternalServerError, "Failed to list users", "")
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateUserRoleHandler applies a role change through the role-change service.
// The body is always the service Result.
func (s *Server) UpdateUserRoleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateRoleRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, rolechange.Result{Error: rolechange.MsgInvalidRole})
			return
		}

		caller := sessions.FromContext(r.Context())
		result := s.roleChanges.UpdateUserRole(r.Context(), caller, chi.URLParam(r, "userID"), req.Role)
		writeJSON(w, roleChangeStatus(result), result)
	}
}

func roleChangeStatus(result rolechange.Result) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.Error {
	case rolechange.MsgNoSession:
		return http.StatusUnauthorized
	case rolechange.MsgInsufficient:
		return http.StatusForbidden
	case rolechange.MsgSelfAdminRemoval, rolechange.MsgInvalidRole, rolechange.MsgInvalidUser:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) ListAuditLogsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, limit, err := pagination(r)
		if err != nil {
			writeJSONError(w, apperrors.StatusCode(err), err.Error(), "")
			return
		}
		events, err := s.auditReader.List(r.Context(), offset, limit)
		if err != nil {
			log.Err(err).Msg("failed to list audit logs")
			writeJSONError(w, http.StatusInternalServerError, "Failed to list audit logs", "")
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}

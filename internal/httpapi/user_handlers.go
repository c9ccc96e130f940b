package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"gatekeep.org/internal/access"
	"gatekeep.org/internal/audit"
	"gatekeep.org/internal/identity"
	"gatekeep.org/internal/user"
)

type registerRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Profile  profilePayload `json:"profile"`
}

type adminCreateUserRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Profile  profilePayload `json:"profile"`
	RoleIDs  []string       `json:"role_ids"`
}

type profilePayload struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zip_code"`
	Country     string `json:"country"`
	Avatar      string `json:"avatar"`
	Bio         string `json:"bio"`
	Website     string `json:"website"`
	BirthDate   string `json:"birth_date"`
}

type userResponse struct {
	ID    identity.UserID `json:"id"`
	Email string          `json:"email"`
	Roles []string        `json:"roles"`
}

type profileUpdateRequest struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	ZipCode     *string `json:"zip_code"`
	Country     *string `json:"country"`
	Avatar      *string `json:"avatar"`
	Bio         *string `json:"bio"`
	Website     *string `json:"website"`
	BirthDate   *string `json:"birth_date"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

type userPermissionRequest struct {
	Permission string `json:"permission"`
}

type queryUsersResponse struct {
	Items []*identity.Profile `json:"items"`
	Total int                 `json:"total"`
}

var (
	selfReadScopes  = []access.Scope{access.ScopeUsersSelf, access.ScopeUsersSelfWrite}
	selfWriteScopes = []access.Scope{access.ScopeUsersSelfWrite}
	adminReadScopes = []access.Scope{access.ScopeUsers, access.ScopeUsersWrite}
	adminWriteScope = []access.Scope{access.ScopeUsersWrite}
)

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	u, err := a.users.Register(r.Context(), user.Registration{
		Email:    req.Email,
		Password: req.Password,
		Profile:  req.Profile.toProfile(req.Email),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "user.registered", map[string]any{
		"user_id": u.ID.String(),
		"email":   u.Email,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", u.ID))
	writeJSON(w, http.StatusCreated, newUserResponse(u))
}

func (a *API) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req adminCreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	roleIDs := make([]identity.RoleID, 0, len(req.RoleIDs))
	for _, raw := range req.RoleIDs {
		roleID, err := identity.ParseRoleID(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		roleIDs = append(roleIDs, roleID)
	}

	u, err := a.users.AdminCreateUser(r.Context(), user.AdminCreate{
		Registration: user.Registration{
			Email:    req.Email,
			Password: req.Password,
			Profile:  req.Profile.toProfile(req.Email),
		},
		RoleIDs: roleIDs,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "user.admin_created", map[string]any{
		"user_id": u.ID.String(),
		"email":   u.Email,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", u.ID))
	writeJSON(w, http.StatusCreated, newUserResponse(u))
}

func (a *API) handleQueryUsers(w http.ResponseWriter, r *http.Request) {
	q := user.Query{Email: strings.TrimSpace(r.URL.Query().Get("email"))}
	var err error
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if q.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := a.users.QueryProfiles(r.Context(), q)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queryUsersResponse{Items: items, Total: total})
}

func (a *API) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.userIDParam(w, r)
	if !ok {
		return
	}
	if !a.selfOrScopes(w, r, userID, selfReadScopes, adminReadScopes) {
		return
	}

	profile, err := a.users.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.userIDParam(w, r)
	if !ok {
		return
	}
	if !a.selfOrScopes(w, r, userID, selfWriteScopes, adminWriteScope) {
		return
	}

	var req profileUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := a.users.UpdateProfile(r.Context(), userID, user.ProfileUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
		City:        req.City,
		State:       req.State,
		ZipCode:     req.ZipCode,
		Country:     req.Country,
		Avatar:      req.Avatar,
		Bio:         req.Bio,
		Website:     req.Website,
		BirthDate:   req.BirthDate,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.userIDParam(w, r)
	if !ok {
		return
	}
	if !a.selfOrScopes(w, r, userID, selfWriteScopes, adminWriteScope) {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.users.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, user.ErrIncorrectPassword) {
			writeError(w, r, http.StatusBadRequest, "incorrect password")
			return
		}
		handleServiceError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "user.password.changed", map[string]any{
		"user_id": userID.String(),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.userIDParam(w, r)
	if !ok {
		return
	}
	if err := a.users.DeleteUser(r.Context(), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.deleted", map[string]any{
		"user_id": userID.String(),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.userIDParam(w, r)
	if !ok {
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	roleID, err := identity.ParseRoleID(req.RoleID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid role id")
		return
	}

	assigned, err := a.rbac.AssignRoleToUser(r.Context(), userID, roleID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !assigned {
		writeError(w, r, http.StatusNotFound, "user or role not found")
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.user.role.assigned", map[string]any{
		"user_id": userID.String(),
		"role_id": roleID.String(),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.userIDParam(w, r)
	if !ok {
		return
	}
	roleID, ok := a.roleIDParam(w, r)
	if !ok {
		return
	}

	revoked, err := a.rbac.RevokeRoleFromUser(r.Context(), userID, roleID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !revoked {
		writeError(w, r, http.StatusNotFound, "role not assigned to user")
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.user.role.revoked", map[string]any{
		"user_id": userID.String(),
		"role_id": roleID.String(),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleProhibitPermission(w http.ResponseWriter, r *http.Request) {
	a.handleUserPermission(w, r, "rbac.user.permission.prohibited", a.rbac.ProhibitPermissionOnUser)
}

func (a *API) handleAllowPermission(w http.ResponseWriter, r *http.Request) {
	a.handleUserPermission(w, r, "rbac.user.permission.allowed", a.rbac.AllowPermissionOnUser)
}

func (a *API) handleUserPermission(
	w http.ResponseWriter, r *http.Request, event string,
	op func(ctx context.Context, userID identity.UserID, perm identity.Permission) (bool, error),
) {
	userID, ok := a.userIDParam(w, r)
	if !ok {
		return
	}
	var req userPermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	perm, err := identity.ParsePermission(req.Permission)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	applied, err := op(r.Context(), userID, perm)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !applied {
		writeError(w, r, http.StatusNotFound, "user not found")
		return
	}
	_ = audit.LogEvent(r.Context(), event, map[string]any{
		"user_id":    userID.String(),
		"permission": perm.FullName(),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) userIDParam(w http.ResponseWriter, r *http.Request) (identity.UserID, bool) {
	userID, err := identity.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid user id")
		return "", false
	}
	return userID, true
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return val, nil
}

func newUserResponse(u *identity.User) userResponse {
	roles := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		roles = append(roles, role.Name)
	}
	return userResponse{ID: u.ID, Email: u.Email, Roles: roles}
}

func (p profilePayload) toProfile(email string) identity.Profile {
	return identity.Profile{
		Email:       email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		PhoneNumber: p.PhoneNumber,
		Address:     p.Address,
		City:        p.City,
		State:       p.State,
		ZipCode:     p.ZipCode,
		Country:     p.Country,
		Avatar:      p.Avatar,
		Bio:         p.Bio,
		Website:     p.Website,
		BirthDate:   p.BirthDate,
	}
}

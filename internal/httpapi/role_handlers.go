package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"gatekeep.org/internal/audit"
	"gatekeep.org/internal/identity"
)

type createRoleRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

type rolePermissionRequest struct {
	Permission string `json:"permission"`
}

type listRolesResponse struct {
	Items []*identity.Role `json:"items"`
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	role, err := a.rbac.CreateRole(r.Context(), req.Name, req.Permissions)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "rbac.role.created", map[string]any{
		"role_id": role.ID.String(),
		"name":    role.Name,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/roles/%s", role.ID))
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.rbac.ListRoles(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listRolesResponse{Items: roles})
}

func (a *API) handleGetRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := a.roleIDParam(w, r)
	if !ok {
		return
	}
	role, err := a.rbac.GetRole(r.Context(), roleID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := a.roleIDParam(w, r)
	if !ok {
		return
	}
	deleted, err := a.rbac.DeleteRole(r.Context(), roleID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, r, http.StatusNotFound, "role not found")
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role.deleted", map[string]any{
		"role_id": roleID.String(),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAssignPermission(w http.ResponseWriter, r *http.Request) {
	roleID, ok := a.roleIDParam(w, r)
	if !ok {
		return
	}
	perm, ok := a.permissionBody(w, r)
	if !ok {
		return
	}

	assigned, err := a.rbac.AssignPermissionToRole(r.Context(), roleID, perm)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !assigned {
		writeError(w, r, http.StatusNotFound, "role not found")
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role.permission.assigned", map[string]any{
		"role_id":    roleID.String(),
		"permission": perm.FullName(),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRemovePermission(w http.ResponseWriter, r *http.Request) {
	roleID, ok := a.roleIDParam(w, r)
	if !ok {
		return
	}
	perm, ok := a.permissionBody(w, r)
	if !ok {
		return
	}

	removed, err := a.rbac.RemovePermissionFromRole(r.Context(), roleID, perm)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !removed {
		writeError(w, r, http.StatusNotFound, "permission not assigned to role")
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role.permission.removed", map[string]any{
		"role_id":    roleID.String(),
		"permission": perm.FullName(),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) roleIDParam(w http.ResponseWriter, r *http.Request) (identity.RoleID, bool) {
	roleID, err := identity.ParseRoleID(chi.URLParam(r, "roleID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid role id")
		return "", false
	}
	return roleID, true
}

func (a *API) permissionBody(w http.ResponseWriter, r *http.Request) (identity.Permission, bool) {
	var req rolePermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return identity.Permission{}, false
	}
	perm, err := identity.ParsePermission(req.Permission)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return identity.Permission{}, false
	}
	return perm, true
}

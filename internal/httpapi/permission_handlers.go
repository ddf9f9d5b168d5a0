package httpapi

import (
	"net/http"
	"strings"

	"tms.dev/internal/rbac"
)

func (a *API) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	role, err := rbac.ParseRole(q.Get("role"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	feature := strings.TrimSpace(q.Get("feature"))
	if feature == "" {
		writeError(w, r, http.StatusBadRequest, "feature is required")
		return
	}

	perms, err := a.deps.Permissions.EffectivePermissions(r.Context(), role, feature)
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

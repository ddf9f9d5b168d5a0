package httpapi

import (
	"math"
	"net/http"

	"tms.dev/internal/audit"
)

func (a *API) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := parsePositiveInt(q.Get("page"), audit.DefaultPage, 1, math.MaxInt32)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "page: "+err.Error())
		return
	}
	// values above the cap are clamped by audit.Logger.List
	limit, err := parsePositiveInt(q.Get("limit"), audit.DefaultLimit, 1, math.MaxInt32)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit: "+err.Error())
		return
	}

	res, err := a.deps.Audit.List(r.Context(), page, limit)
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

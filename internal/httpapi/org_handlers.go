package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

func (a *API) listOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := a.deps.Orgs.FindAll(r.Context())
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orgs)
}

func (a *API) myOrganizations(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	orgs, err := a.deps.Orgs.FindByUser(r.Context(), userID)
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orgs)
}

func (a *API) topLevelOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := a.deps.Orgs.FindTopLevel(r.Context())
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orgs)
}

func (a *API) organizationsWithUsers(w http.ResponseWriter, r *http.Request) {
	orgs, err := a.deps.Orgs.FindAllWithUsers(r.Context())
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orgs)
}

func (a *API) getOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := a.deps.Orgs.FindByID(r.Context(), id)
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) organizationChildren(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	children, err := a.deps.Orgs.FindChildren(r.Context(), id)
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

// pathID parses a positive integer route variable.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

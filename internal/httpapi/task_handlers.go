package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"tms.dev/internal/task"
)

type createTaskRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=4000"`
	Category    string `json:"category" validate:"max=64"`
	IsCompleted bool   `json:"isCompleted"`
}

type updateTaskRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
	Category    *string `json:"category" validate:"omitempty,max=64"`
	IsCompleted *bool   `json:"isCompleted"`
}

// taskScope resolves the caller and organization shared by every task route.
func taskScope(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	actor, ok := callerID(w, r)
	if !ok {
		return "", 0, false
	}
	orgID, ok := pathID(w, r, "orgId")
	if !ok {
		return "", 0, false
	}
	return actor, orgID, true
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	actor, orgID, ok := taskScope(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if !a.bind(w, r, &req) {
		return
	}
	t, err := a.deps.Tasks.Create(r.Context(), actor, orgID, task.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		IsCompleted: req.IsCompleted,
	})
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	actor, orgID, ok := taskScope(w, r)
	if !ok {
		return
	}
	tasks, err := a.deps.Tasks.ListByOrg(r.Context(), actor, orgID)
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (a *API) getTask(w http.ResponseWriter, r *http.Request) {
	actor, orgID, ok := taskScope(w, r)
	if !ok {
		return
	}
	t, err := a.deps.Tasks.Get(r.Context(), actor, orgID, mux.Vars(r)["id"])
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *API) updateTask(w http.ResponseWriter, r *http.Request) {
	actor, orgID, ok := taskScope(w, r)
	if !ok {
		return
	}
	var req updateTaskRequest
	if !a.bind(w, r, &req) {
		return
	}
	t, err := a.deps.Tasks.Update(r.Context(), actor, orgID, mux.Vars(r)["id"], task.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		IsCompleted: req.IsCompleted,
	})
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *API) toggleTask(w http.ResponseWriter, r *http.Request) {
	actor, orgID, ok := taskScope(w, r)
	if !ok {
		return
	}
	t, err := a.deps.Tasks.ToggleComplete(r.Context(), actor, orgID, mux.Vars(r)["id"])
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *API) deleteTask(w http.ResponseWriter, r *http.Request) {
	actor, orgID, ok := taskScope(w, r)
	if !ok {
		return
	}
	if err := a.deps.Tasks.Delete(r.Context(), actor, orgID, mux.Vars(r)["id"]); err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

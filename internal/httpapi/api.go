package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"tms.dev/internal/audit"
	"tms.dev/internal/auth"
	"tms.dev/internal/obs"
	"tms.dev/internal/org"
	"tms.dev/internal/rbac"
	"tms.dev/internal/task"
)

const serviceName = "tms-api"

// ReadyProbe checks readiness, usually by pinging the database.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// Authenticator is the slice of auth.Service used by the transport.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.AuthResult, error)
	VerifyToken(token string) (*auth.Claims, error)
}

// Organizations is the read side of org.Service.
type Organizations interface {
	FindAll(ctx context.Context) ([]org.Organization, error)
	FindByID(ctx context.Context, id int64) (org.Organization, error)
	FindTopLevel(ctx context.Context) ([]org.Organization, error)
	FindChildren(ctx context.Context, id int64) ([]org.Organization, error)
	FindByUser(ctx context.Context, userID string) ([]org.Organization, error)
	FindAllWithUsers(ctx context.Context) ([]org.WithUsers, error)
}

type PermissionResolver interface {
	EffectivePermissions(ctx context.Context, role rbac.Role, feature string) (rbac.PermissionSet, error)
}

type Tasks interface {
	Create(ctx context.Context, actor string, orgID int64, in task.CreateInput) (task.Task, error)
	Get(ctx context.Context, actor string, orgID int64, id string) (task.Task, error)
	ListByOrg(ctx context.Context, actor string, orgID int64) ([]task.Task, error)
	Update(ctx context.Context, actor string, orgID int64, id string, in task.UpdateInput) (task.Task, error)
	ToggleComplete(ctx context.Context, actor string, orgID int64, id string) (task.Task, error)
	Delete(ctx context.Context, actor string, orgID int64, id string) error
}

type AuditLog interface {
	List(ctx context.Context, page, limit int) (audit.Page, error)
}

// Deps groups the domain services behind the HTTP surface.
type Deps struct {
	Auth        Authenticator
	Orgs        Organizations
	Permissions PermissionResolver
	Tasks       Tasks
	Audit       AuditLog
}

// Options tunes transport behaviour. Zero values fall back to defaults.
type Options struct {
	Version      string
	RateBurst    int
	RatePerSec   float64
	MaxBodyBytes int64
	Logger       logrus.FieldLogger
}

// API is the HTTP layer.
type API struct {
	router     *mux.Router
	readyProbe readinessChecker
	deps       Deps
	validate   *validator.Validate
	log        logrus.FieldLogger

	version      string
	rateBurst    int
	ratePerSec   float64
	maxBodyBytes int64
}

// New validates the dependencies and registers every route.
func New(rp readinessChecker, deps Deps, opts Options) (*API, error) {
	if deps.Auth == nil || deps.Orgs == nil || deps.Permissions == nil || deps.Tasks == nil || deps.Audit == nil {
		return nil, errors.New("httpapi: all domain services are required")
	}
	if rp == nil {
		rp = ReadyProbe{}
	}
	a := &API{
		router:       mux.NewRouter(),
		readyProbe:   rp,
		deps:         deps,
		validate:     newValidator(),
		log:          opts.Logger,
		version:      opts.Version,
		rateBurst:    opts.RateBurst,
		ratePerSec:   opts.RatePerSec,
		maxBodyBytes: opts.MaxBodyBytes,
	}
	if a.log == nil {
		a.log = obs.Logger()
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 10
	}
	if a.maxBodyBytes <= 0 {
		a.maxBodyBytes = 1 << 20
	}
	a.routes()
	return a, nil
}

func (a *API) routes() {
	r := a.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	// health/ready/info
	r.HandleFunc("/healthz", a.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.Ready).Methods(http.MethodGet)
	r.HandleFunc("/v1/info", a.Info).Methods(http.MethodGet)
	r.Handle("/metrics", obs.Handler()).Methods(http.MethodGet)

	r.Handle("/auth/login", RateLimit(http.HandlerFunc(a.handleLogin), a.rateBurst, a.ratePerSec)).
		Methods(http.MethodPost)

	// Routes stay on the root router so a method mismatch reaches MethodNotAllowedHandler.
	r.HandleFunc("/organizations", a.listOrganizations).Methods(http.MethodGet)
	r.HandleFunc("/organizations/my-organizations", a.myOrganizations).Methods(http.MethodGet)
	r.HandleFunc("/organizations/top-level", a.topLevelOrganizations).Methods(http.MethodGet)
	r.HandleFunc("/organizations/with-users", a.organizationsWithUsers).Methods(http.MethodGet)
	r.HandleFunc("/organizations/{id:[0-9]+}", a.getOrganization).Methods(http.MethodGet)
	r.HandleFunc("/organizations/{id:[0-9]+}/children", a.organizationChildren).Methods(http.MethodGet)

	r.HandleFunc("/permissions/effective", a.effectivePermissions).Methods(http.MethodGet)

	const tasks = "/org/{orgId:[0-9]+}/tasks"
	r.HandleFunc(tasks, a.createTask).Methods(http.MethodPost)
	r.HandleFunc(tasks, a.listTasks).Methods(http.MethodGet)
	r.HandleFunc(tasks+"/{id}", a.getTask).Methods(http.MethodGet)
	r.HandleFunc(tasks+"/{id}", a.updateTask).Methods(http.MethodPatch)
	r.HandleFunc(tasks+"/{id}", a.deleteTask).Methods(http.MethodDelete)
	r.HandleFunc(tasks+"/{id}/toggle-complete", a.toggleTask).Methods(http.MethodPatch)

	r.HandleFunc("/audit-logs", a.listAuditLogs).Methods(http.MethodGet)
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

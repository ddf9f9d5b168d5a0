package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"tms.dev/internal/auth"
	"tms.dev/internal/config"
	"tms.dev/internal/obs"
	"tms.dev/internal/org"
	"tms.dev/internal/rbac"
	"tms.dev/internal/store/pg"
)

type commandFunc func(ctx context.Context, store *pg.Store, args []string) (any, error)

var commands = map[string]commandFunc{
	"create-user":  createUser,
	"create-org":   createOrg,
	"reparent-org": reparentOrg,
	"assign-role":  assignRole,
	"grant":        grant,
	"revoke":       revoke,
	"grants":       listGrants,
	"roles-with":   rolesWith,
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	run, ok := commands[os.Args[1]]
	if !ok {
		usage()
	}

	cfg, err := config.Read(os.Getenv("TMS_CONFIG"))
	if err != nil {
		fail("load config: %v", err)
	}
	obs.SetLevel(cfg.LogLevel)
	dsn := cfg.Database.ConnString()
	if dsn == "" {
		fail("missing DSN: set TMS_PG_DSN or DB_HOST/DB_NAME")
	}
	store, err := pg.Open(dsn, pg.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		fail("open db: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := run(ctx, store, os.Args[2:])
	if err != nil {
		fail("%s: %v", os.Args[1], err)
	}
	if out != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	}
}

func createUser(ctx context.Context, store *pg.Store, args []string) (any, error) {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	name := fs.String("name", "", "Display name")
	email := fs.String("email", "", "Login email")
	password := fs.String("password", os.Getenv("TMS_NEW_USER_PASSWORD"), "Initial password")
	_ = fs.Parse(args)

	// Register never signs tokens; the placeholder only satisfies the constructor.
	secret := os.Getenv("TMS_JWT_SECRET")
	if secret == "" {
		secret = "tmsctl"
	}
	svc, err := auth.NewService(store, secret)
	if err != nil {
		return nil, err
	}
	return svc.Register(ctx, *name, *email, *password)
}

func createOrg(ctx context.Context, store *pg.Store, args []string) (any, error) {
	fs := flag.NewFlagSet("create-org", flag.ExitOnError)
	name := fs.String("name", "", "Organization name")
	parent := fs.Int64("parent", 0, "Parent organization id (0 for top-level)")
	_ = fs.Parse(args)

	svc, err := org.NewService(store)
	if err != nil {
		return nil, err
	}
	return svc.Create(ctx, *name, optionalID(*parent))
}

func reparentOrg(ctx context.Context, store *pg.Store, args []string) (any, error) {
	fs := flag.NewFlagSet("reparent-org", flag.ExitOnError)
	id := fs.Int64("id", 0, "Organization id")
	parent := fs.Int64("parent", 0, "New parent id (0 to detach)")
	_ = fs.Parse(args)

	svc, err := org.NewService(store)
	if err != nil {
		return nil, err
	}
	return svc.Reparent(ctx, *id, optionalID(*parent))
}

func assignRole(ctx context.Context, store *pg.Store, args []string) (any, error) {
	fs := flag.NewFlagSet("assign-role", flag.ExitOnError)
	orgID := fs.Int64("org", 0, "Organization id")
	userID := fs.String("user", "", "User id")
	roleName := fs.String("role", "", "OWNER, ADMIN or VIEWER")
	_ = fs.Parse(args)

	role, err := rbac.ParseRole(*roleName)
	if err != nil {
		return nil, err
	}
	svc, err := org.NewService(store)
	if err != nil {
		return nil, err
	}
	return svc.AssignRole(ctx, *orgID, *userID, role)
}

func grant(ctx context.Context, store *pg.Store, args []string) (any, error) {
	svc, role, feature, action, err := grantArgs("grant", store, args)
	if err != nil {
		return nil, err
	}
	return svc.Grant(ctx, role, feature, action)
}

func revoke(ctx context.Context, store *pg.Store, args []string) (any, error) {
	svc, role, feature, action, err := grantArgs("revoke", store, args)
	if err != nil {
		return nil, err
	}
	if err := svc.Revoke(ctx, role, feature, action); err != nil {
		return nil, err
	}
	return map[string]string{"revoked": fmt.Sprintf("%s/%s/%s", role, feature, action)}, nil
}

func grantArgs(name string, store *pg.Store, args []string) (*rbac.Service, rbac.Role, string, rbac.Action, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	roleName := fs.String("role", "", "OWNER, ADMIN or VIEWER")
	feature := fs.String("feature", "", "Feature name, e.g. tasks")
	actionName := fs.String("action", "", "create, delete, edit or view")
	_ = fs.Parse(args)

	role, err := rbac.ParseRole(*roleName)
	if err != nil {
		return nil, "", "", "", err
	}
	action, err := rbac.ParseAction(*actionName)
	if err != nil {
		return nil, "", "", "", err
	}
	svc, err := rbac.NewService(store)
	if err != nil {
		return nil, "", "", "", err
	}
	return svc, role, *feature, action, nil
}

func listGrants(ctx context.Context, store *pg.Store, args []string) (any, error) {
	fs := flag.NewFlagSet("grants", flag.ExitOnError)
	roleName := fs.String("role", "", "Filter by role")
	feature := fs.String("feature", "", "Filter by feature")
	_ = fs.Parse(args)

	svc, err := rbac.NewService(store)
	if err != nil {
		return nil, err
	}
	switch {
	case *roleName != "" && *feature != "":
		role, err := rbac.ParseRole(*roleName)
		if err != nil {
			return nil, err
		}
		return svc.ListByRoleAndFeature(ctx, role, *feature)
	case *roleName != "":
		role, err := rbac.ParseRole(*roleName)
		if err != nil {
			return nil, err
		}
		return svc.ListByRole(ctx, role)
	case *feature != "":
		return svc.ListByFeature(ctx, *feature)
	default:
		return svc.List(ctx)
	}
}

func rolesWith(ctx context.Context, store *pg.Store, args []string) (any, error) {
	fs := flag.NewFlagSet("roles-with", flag.ExitOnError)
	feature := fs.String("feature", "", "Feature name")
	actionName := fs.String("action", "", "create, delete, edit or view")
	_ = fs.Parse(args)

	action, err := rbac.ParseAction(*actionName)
	if err != nil {
		return nil, err
	}
	svc, err := rbac.NewService(store)
	if err != nil {
		return nil, err
	}
	return svc.RolesWithPermission(ctx, *feature, action)
}

func optionalID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <command> [flags]\n\ncommands:\n", os.Args[0])
	for _, name := range []string{"create-user", "create-org", "reparent-org", "assign-role", "grant", "revoke", "grants", "roles-with"} {
		fmt.Fprintf(os.Stderr, "  %s\n", name)
	}
	os.Exit(1)
}

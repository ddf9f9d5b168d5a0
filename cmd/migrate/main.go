package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"tms.dev/internal/config"
	"tms.dev/internal/migrate"
	"tms.dev/internal/obs"
	"tms.dev/internal/org"
	"tms.dev/internal/store/pg"
)

func main() {
	log := obs.Logger()
	var (
		configPath     = flag.String("config", os.Getenv("TMS_CONFIG"), "Path to YAML config file")
		dsn            = flag.String("dsn", "", "PostgreSQL DSN (overrides config and TMS_PG_DSN)")
		root           = flag.String("root", ".", "Directory the migration paths are relative to")
		migrationsPath = flag.String("migrations", "ops/migrations/sql", "Path to SQL migrations")
		seedsPath      = flag.String("seeds", "ops/migrations/seeds", "Path to SQL seeds")
		noLock         = flag.Bool("no-lock", false, "Skip the advisory lock")
	)
	flag.Parse()

	if len(flag.Args()) == 0 {
		fmt.Fprintln(os.Stderr, "usage: migrate [up|down|seed|status|pending|verify]")
		os.Exit(2)
	}

	cfg, err := config.Read(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	obs.SetLevel(cfg.LogLevel)
	if *dsn == "" {
		*dsn = cfg.Database.ConnString()
	}
	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn, TMS_PG_DSN or DB_HOST/DB_NAME")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := pg.Open(*dsn, pg.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		log.WithError(err).Fatal("open db")
	}
	defer store.Close()

	opts := []migrate.Option{migrate.WithLogger(log)}
	if *noLock {
		opts = append(opts, migrate.WithoutLock())
	}
	mgr := migrate.NewManager(store.DB(), os.DirFS(*root), *migrationsPath, *seedsPath, opts...)

	cmd := flag.Arg(0)
	switch cmd {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		printAll(applied)
	case "down":
		var name string
		name, err = mgr.Down(ctx)
		if errors.Is(err, migrate.ErrNothingApplied) {
			fmt.Println("nothing to roll back")
			err = nil
		} else if err == nil {
			fmt.Println(name)
		}
	case "seed":
		var applied []string
		applied, err = mgr.Seed(ctx)
		printAll(applied)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		printAll(history)
	case "pending":
		var pending []string
		pending, err = mgr.Pending(ctx)
		printAll(pending)
	case "verify":
		err = verifyOrganizations(ctx, store)
	default:
		log.Fatalf("unknown command %q", cmd)
	}
	if err != nil {
		log.WithError(err).WithField("command", cmd).Fatal("migrate failed")
	}
}

// verifyOrganizations checks that no parent chain in the stored data loops.
func verifyOrganizations(ctx context.Context, store *pg.Store) error {
	svc, err := org.NewService(store)
	if err != nil {
		return err
	}
	if err := svc.CheckAcyclic(ctx); err != nil {
		return err
	}
	fmt.Println("organizations: acyclic")
	return nil
}

func printAll(items []string) {
	for _, item := range items {
		fmt.Println(item)
	}
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"gatekeep.org/internal/config"
	"gatekeep.org/internal/identity"
	"gatekeep.org/internal/migrate"
	"gatekeep.org/internal/store/pg"
	"gatekeep.org/internal/user"
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()

	var (
		dsn            = flag.String("dsn", os.Getenv("GATEKEEP_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", "ops/migrations/sql", "Path to SQL migrations")
		seedsPath      = flag.String("seeds", "ops/migrations/seeds", "Path to SQL seeds")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or GATEKEEP_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|seed-admin|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, *migrationsPath, *seedsPath)

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "seed-admin":
		err = seedAdmin(ctx, db)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

// seedAdmin creates the bootstrap admin account from the environment. It
// requires the role seed to have run first.
func seedAdmin(ctx context.Context, db *sql.DB) error {
	cfg, err := config.Load(os.Getenv("GATEKEEP_CONFIG"))
	if err != nil {
		return err
	}
	if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
		return errors.New("set GATEKEEP_ADMIN_EMAIL and GATEKEEP_ADMIN_PASSWORD")
	}

	var adminRoleID identity.RoleID
	if err := db.QueryRowContext(ctx,
		`select id from roles where name='admin'`).Scan(&adminRoleID); err != nil {
		return fmt.Errorf("admin role missing, run seed first: %w", err)
	}

	store := pg.New(db)
	svc, err := user.NewService(store)
	if err != nil {
		return err
	}
	u, err := svc.AdminCreateUser(ctx, user.AdminCreate{
		Registration: user.Registration{
			Email:    cfg.Admin.Email,
			Password: cfg.Admin.Password,
			Profile:  identity.Profile{Email: cfg.Admin.Email},
		},
		RoleIDs: []identity.RoleID{adminRoleID},
	})
	if err != nil {
		if errors.Is(err, identity.ErrConflict) {
			log.Printf("admin %s already exists", cfg.Admin.Email)
			return nil
		}
		return err
	}
	log.Printf("created admin %s (%s)", u.Email, u.ID)
	return nil
}

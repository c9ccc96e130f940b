package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"gatekeep.org/internal/config"
	"gatekeep.org/internal/httpapi"
	"gatekeep.org/internal/obs"
	"gatekeep.org/internal/rbac"
	"gatekeep.org/internal/store/memory"
	"gatekeep.org/internal/store/pg"
	"gatekeep.org/internal/token"
	"gatekeep.org/internal/user"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("GATEKEEP_CONFIG"), "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Token.Secret == "" {
		log.Fatal("missing secret key: set GATEKEEP_SECRET_KEY or token.secret")
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Without a DSN the service runs on the in-memory store. Useful for
	// local development, useless for anything else.
	var db *sql.DB
	var pgStore *pg.Store
	var (
		tokenRepo token.Repository
		roleRepo  rbac.RoleRepository
		userRepo  user.Repository
		rbacUsers rbac.UserRepository
	)
	if cfg.PGDSN != "" {
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		pgStore = pg.New(db)
		tokenRepo, roleRepo, userRepo, rbacUsers = pgStore, pgStore, pgStore, pgStore
	} else {
		log.Println("no GATEKEEP_PG_DSN set, using in-memory store")
		store := memory.New()
		tokenRepo, roleRepo, userRepo, rbacUsers = store, store, store, store
	}

	tokenCfg := token.Config{
		Secret:     cfg.Token.Secret,
		Algorithm:  cfg.Token.Algorithm,
		RefreshTTL: cfg.Token.RefreshTTL(),
		AccessTTL:  cfg.Token.AccessTTL(),
	}
	tokenSvc, err := token.NewService(tokenRepo, tokenCfg)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}
	rbacSvc, err := rbac.NewService(roleRepo, rbacUsers)
	if err != nil {
		log.Fatalf("rbac service: %v", err)
	}
	userSvc, err := user.NewService(userRepo)
	if err != nil {
		log.Fatalf("user service: %v", err)
	}

	api := httpapi.New(httpapi.Deps{
		Tokens:     tokenSvc,
		RBAC:       rbacSvc,
		Users:      userSvc,
		TokenCfg:   tokenCfg,
		ReadyProbe: httpapi.ReadyProbe{DB: db},
		Version:    version,
	})

	handler := httpapi.RateLimit(api.Handler(), cfg.HTTP.RateBurst, cfg.HTTP.RatePerSecond)
	handler = httpapi.MaxBodyBytes(handler, cfg.HTTP.MaxBodyBytes)
	handler = httpapi.CORS(handler, cfg.HTTP.CORSOrigins)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.Logging(handler)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Starting gatekeep-api %s on %s", version, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if pgStore != nil {
		g.Go(func() error {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					n, err := pgStore.DeleteExpiredRefreshTokens(ctx)
					if err != nil {
						log.Printf("prune refresh tokens: %v", err)
						continue
					}
					if n > 0 {
						log.Printf("pruned %d expired refresh tokens", n)
					}
				}
			}
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

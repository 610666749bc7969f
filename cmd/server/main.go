package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/avmironov/project-auth/internal/config"
	"github.com/avmironov/project-auth/internal/database"
	"github.com/avmironov/project-auth/internal/handler"
	"github.com/avmironov/project-auth/internal/limiter"
	"github.com/avmironov/project-auth/internal/queue"
	"github.com/avmironov/project-auth/internal/repository"
	"github.com/avmironov/project-auth/internal/router"
	"github.com/avmironov/project-auth/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	projects := repository.NewProjectRepo(db)
	blacklist := repository.NewBlacklistRepo(db)

	// Prefer the shared Redis window counter when a server is
	// reachable; a per-process map still protects a single instance.
	var lim limiter.Limiter
	var memLim *limiter.Memory
	if rdb := config.NewRedisClient(); rdb != nil {
		lim = limiter.NewRedis(rdb, rlCfg.MaxAttempts, rlCfg.Window, rlCfg.Prefix)
		log.Printf("limiter: using redis backend")
	} else {
		memLim = limiter.NewMemory(rlCfg.MaxAttempts, rlCfg.Window)
		lim = memLim
		log.Printf("limiter: redis unavailable, using in-memory backend")
	}

	auth := service.NewAuthService(users, roles, projects, blacklist, lim, queue.NewPublisher(), service.Options{
		JWTSecret:        cfg.JWTSecret,
		TokenTTL:         cfg.TokenTTL,
		BcryptCost:       cfg.BcryptCost,
		MaxLoginAttempts: cfg.MaxLoginAttempts,
		LockDuration:     cfg.LockDuration,
	})

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(auth, cfg), auth)
	router.RegisterRoles(e, handler.NewRoleHandler(roles), auth)

	// Background maintenance: drop dead blacklist rows and stale
	// limiter windows.
	go func() {
		ticker := time.NewTicker(cfg.PruneInterval)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := blacklist.Prune(ctx, time.Now().UTC())
			cancel()
			if err != nil {
				log.Printf("prune: blacklist cleanup failed: %v", err)
			} else if n > 0 {
				log.Printf("prune: removed %d expired blacklist entries", n)
			}
			if memLim != nil {
				memLim.Cleanup(time.Now())
			}
		}
	}()

	// Audit trail consumer; runs its own reconnect loop.
	go func() {
		if err := queue.StartAuthConsumer(); err != nil {
			log.Printf("auth-consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

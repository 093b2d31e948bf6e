package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"watchpost/config"
	"watchpost/cron"
	"watchpost/engine"
	"watchpost/handler"
	"watchpost/hub"
	"watchpost/notify"
	"watchpost/seed"
	"watchpost/store"
)

func main() {
	cfg := config.Load()

	// Database
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Seed bootstrap
	if cfg.SeedFile != "" {
		if err := seed.Apply(context.Background(), db, cfg.SeedFile); err != nil {
			log.Printf("WARNING: seed: %v", err)
		}
	}

	// WebSocket hub
	allowedOrigins := []string{"http://localhost:5173", "http://localhost:3000"}
	if cfg.AllowedOrigins != "" {
		for _, o := range strings.Split(cfg.AllowedOrigins, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	ws := hub.New(allowedOrigins)
	go ws.Run()

	// Check engine
	executor := engine.NewExecutor(db)
	runner := &engine.Runner{
		Store: db,
		Retrier: engine.NewRetrier(executor, engine.RetryDefaults{
			MaxRetries:          cfg.MaxRetries,
			RetryDelayMs:        cfg.RetryDelayMs,
			ConfirmationDelayMs: cfg.ConfirmationDelayMs,
		}),
		Counter:     &engine.FailureCounter{Store: db},
		Dispatcher:  notify.NewWebhookDispatcher(time.Duration(cfg.NotifyTimeoutSeconds) * time.Second),
		WS:          ws,
		Parallelism: cfg.Parallelism,
	}

	// Scheduler
	var sched *cron.Scheduler
	if cfg.Schedule != "" {
		sched = cron.New(runner)
		sched.CycleTimeout = time.Duration(cfg.CycleTimeoutSeconds) * time.Second
		if err := sched.Schedule(cfg.Schedule); err != nil {
			log.Fatalf("schedule %q: %v", cfg.Schedule, err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// Handler
	h := handler.New(db, runner)

	// Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	// Bearer token auth
	if cfg.APIToken != "" {
		r.Use(bearerAuth(cfg.APIToken))
		log.Println("API token auth enabled")
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"version": Version})
		})

		r.Post("/checks/run", h.RunChecks)
		r.Get("/results", h.ListResults)
		r.Get("/alerts", h.ListAlerts)

		r.Route("/resources/{id}", func(r chi.Router) {
			r.Use(handler.ValidateID)
			r.Get("/status", h.GetResourceStatus)
		})

		// Public: monitored jobs report liveness here.
		r.Route("/heartbeat/{id}", func(r chi.Router) {
			r.Use(handler.ValidateID)
			r.Post("/", h.Heartbeat)
		})
	})

	r.Get("/ws", ws.HandleConnect)

	srv := &http.Server{
		Addr:    cfg.BindAddr + ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("watchpost %s listening on %s:%s", Version, cfg.BindAddr, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/ws" || r.URL.Path == "/api/health" || r.URL.Path == "/api/version" || strings.HasPrefix(r.URL.Path, "/api/heartbeat/") {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(auth[7:]), []byte(token)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

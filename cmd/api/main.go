package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldops.lk/internal/audit"
	"fieldops.lk/internal/directory"
	"fieldops.lk/internal/httpapi"
	"fieldops.lk/internal/jobs"
	"fieldops.lk/internal/mailer"
	"fieldops.lk/internal/obs"
	"fieldops.lk/internal/poller"
	"fieldops.lk/internal/session"
	"fieldops.lk/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()

	// Stores: Postgres when FIELDOPS_PG_DSN is set, otherwise in-memory for
	// local development.
	var (
		userStore  directory.Store
		jobStore   jobs.Store
		auditStore audit.Store
		probe      httpapi.ReadyProbe
		closeStore func() error
	)
	if dsn := os.Getenv("FIELDOPS_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		userStore = store.Users()
		jobStore = store.Jobs()
		auditStore = store.Audit()
		probe = httpapi.ReadyProbe{DB: store.DB()}
		closeStore = store.Close
	} else {
		log.Print("FIELDOPS_PG_DSN not set, using in-memory stores")
		userStore = directory.NewMemoryStore()
		jobStore = jobs.NewMemoryStore()
		auditStore = audit.NewMemoryStore()
	}

	trail := audit.NewLog(auditStore)
	users := directory.NewService(userStore, trail)
	engine := jobs.NewEngine(jobStore, trail)
	sessions := session.NewManager(users, trail)
	changes := poller.New(jobStore, userStore)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := users.EnsureBootstrap(ctx); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}

	mail, err := mailer.NewFromEnv()
	if err != nil {
		if !errors.Is(err, mailer.ErrNotConfigured) {
			log.Fatalf("mail relay: %v", err)
		}
		log.Print("FIELDOPS_MAIL_RELAY_URL not set, OTP delivery disabled")
	}

	go sessions.Run(ctx, time.Minute)
	go changes.Run(ctx, poller.DefaultInterval)

	api := httpapi.New(httpapi.Config{
		Users:      users,
		Jobs:       engine,
		Trail:      trail,
		Sessions:   sessions,
		Changes:    changes,
		Mail:       mail,
		ReadyProbe: probe,
		Version:    version,
	})

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting fieldops-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	if closeStore != nil {
		_ = closeStore()
	}
	log.Println("Stopped")
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wardbook.org/internal/audit"
	"wardbook.org/internal/auth"
	"wardbook.org/internal/httpapi"
	"wardbook.org/internal/obs"
	"wardbook.org/internal/store/pg"
	"wardbook.org/internal/token"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

// watchedEntities are the entity types whose mutations land in the audit log.
var watchedEntities = []string{"residents", "households", "schemes", "events", "users"}

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret := os.Getenv("WARDBOOK_AUTH_SECRET")
	if secret == "" {
		log.Fatal("WARDBOOK_AUTH_SECRET is required")
	}
	dsn := os.Getenv("WARDBOOK_PG_DSN")
	if dsn == "" {
		log.Fatal("WARDBOOK_PG_DSN is required")
	}
	addr := os.Getenv("WARDBOOK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	tokens, err := token.NewService(secret, token.WithIssuer("wardbook"))
	if err != nil {
		log.Fatalf("token service: %v", err)
	}
	gate, err := auth.NewGate(tokens, store.Users())
	if err != nil {
		log.Fatalf("auth gate: %v", err)
	}
	recorder, err := audit.NewRecorder(store.Audit(), watchedEntities)
	if err != nil {
		log.Fatalf("audit recorder: %v", err)
	}
	accounts, err := auth.NewService(tokens, store.Users(), gate, recorder)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(gate, accounts, recorder, httpapi.ReadyProbe{DB: store.DB()}, version)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting wardbook-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}

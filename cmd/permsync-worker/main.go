package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codelens/permsync-worker/internal/audit"
	"github.com/codelens/permsync-worker/internal/codehost"
	"github.com/codelens/permsync-worker/internal/config"
	"github.com/codelens/permsync-worker/internal/database"
	"github.com/codelens/permsync-worker/internal/license"
	"github.com/codelens/permsync-worker/internal/queue"
	"github.com/codelens/permsync-worker/internal/repository"
	"github.com/codelens/permsync-worker/internal/syncer"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(db)

	log.Println("Database connected successfully")

	// Run migrations
	log.Println("Running database migrations...")
	if err := database.RunMigrations(db); err != nil {
		return err
	}
	log.Println("Migrations completed successfully")

	// Parse the license. An empty key yields the OSS plan, which carries
	// no entitlements; the engines will then refuse to start.
	lic, err := loadLicense(cfg)
	if err != nil {
		return err
	}
	log.Printf("License plan: %s", lic.Plan())

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	userRepo := repository.NewUserRepository(db)
	repoRepo := repository.NewRepoRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	accountJobRepo := repository.NewAccountSyncJobRepository(db)
	repoJobRepo := repository.NewRepoSyncJobRepository(db)
	userJobRepo := repository.NewUserSyncJobRepository(db)

	// Code host clients, keyed by the provider column on accounts and repos
	hosts := codehost.Registry{
		"github": &codehost.GitHub{BaseURL: cfg.GitHubBaseURL},
		"gitlab": &codehost.GitLab{BaseURL: cfg.GitLabBaseURL},
	}

	auditStore := audit.NewStore(db)

	opts := syncer.Options{
		SchedulerInterval: time.Duration(cfg.SchedulerInterval) * time.Second,
		SyncInterval:      time.Duration(cfg.SyncInterval) * time.Second,
	}

	engines := make([]*syncer.Engine, 0, 3)
	for _, e := range []struct {
		queueName string
		strategy  syncer.Strategy
		jobs      syncer.JobStore
	}{
		{"account_permission_sync", syncer.NewAccountStrategy(accountRepo, repoRepo, permRepo, hosts), accountJobRepo},
		{"repo_permission_sync", syncer.NewRepoStrategy(repoRepo, accountRepo, permRepo, hosts), repoJobRepo},
		{"user_permission_sync", syncer.NewUserStrategy(userRepo, accountRepo, repoRepo, permRepo, hosts), userJobRepo},
	} {
		q, err := queue.Build(db, cfg.QueueDSN, e.queueName)
		if err != nil {
			return fmt.Errorf("building %s queue: %w", e.queueName, err)
		}
		engines = append(engines, syncer.NewEngine(e.strategy, e.jobs, q, auditStore, lic, opts))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, engine := range engines {
		if err := engine.Start(ctx); err != nil {
			return err
		}
	}
	log.Println("Permission sync engines started")

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	for _, engine := range engines {
		if err := engine.Stop(shutdownCtx); err != nil {
			log.Printf("Engine shutdown error: %v", err)
		}
	}

	log.Println("Application stopped")
	return nil
}

func loadLicense(cfg *config.Config) (*license.License, error) {
	var publicKey ed25519.PublicKey
	if cfg.LicensePublicKey != "" {
		raw, err := os.ReadFile(cfg.LicensePublicKey)
		if err != nil {
			return nil, fmt.Errorf("reading license public key: %w", err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("license public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
		}
		publicKey = ed25519.PublicKey(raw)
	}
	return license.Parse(cfg.LicenseKey, publicKey)
}

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/adamscao/cvca/internal/api"
	"github.com/adamscao/cvca/internal/ca"
	"github.com/adamscao/cvca/internal/config"
	"github.com/adamscao/cvca/internal/db"
	"github.com/adamscao/cvca/internal/db/repository"
	"github.com/adamscao/cvca/internal/policy"
	"github.com/adamscao/cvca/pkg/certutil"
)

var (
	// Version information (set via ldflags)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "/etc/cvca/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("CV Certificate Authority Server\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Commit:     %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	log.Printf("Starting CV CA Server %s (commit: %s)", Version, Commit)

	// Load configuration
	log.Printf("Loading configuration from %s", *configPath)
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	log.Printf("Connecting to database: %s", cfg.Database.Path)
	database, err := db.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	log.Printf("Running database migrations...")
	if err := db.RunMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Load or create the issuing authority
	log.Printf("Loading authority key from %s", cfg.Authority.PrivateKeyPath)
	authority, err := ca.LoadOrCreate(cfg.Authority, cfg.GetAuthorityValidityDuration())
	if err != nil {
		log.Fatalf("Failed to load/create authority: %v", err)
	}
	log.Printf("Authority %q ready (level %s, root %s)",
		authority.Name(), authority.Level(), certutil.Fingerprint(authority.RootDER()))

	// Initialize repositories
	userRepo := repository.NewUserRepository(database.DB)
	certRepo := repository.NewCertRepository(database.DB)
	tokenRepo := repository.NewTokenRepository(database.DB)
	terminalRepo := repository.NewTerminalRepository(database.DB)
	auditRepo := repository.NewAuditRepository(database.DB)

	// Initialize policy validator
	validator := policy.NewValidator(cfg, certRepo)

	// Create HTTP server
	server := api.NewServer(
		cfg,
		authority,
		userRepo,
		certRepo,
		tokenRepo,
		terminalRepo,
		auditRepo,
		validator,
	)

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		log.Printf("Starting HTTP server on %s", cfg.Server.ListenAddr)
		if err := server.Run(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("CV CA Server is running")
	log.Printf("Press Ctrl+C to shutdown")

	// Wait for interrupt signal
	<-quit
	log.Printf("Shutting down server...")

	// Cleanup
	database.Close()

	log.Printf("Server stopped")
}

package api

import (
	"github.com/adamscao/cvca/internal/api/handlers"
	"github.com/adamscao/cvca/internal/api/middleware"
	"github.com/adamscao/cvca/internal/ca"
	"github.com/adamscao/cvca/internal/config"
	"github.com/adamscao/cvca/internal/db/repository"
	"github.com/adamscao/cvca/internal/policy"
	"github.com/gin-gonic/gin"
)

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	config *config.Config
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	authority *ca.Authority,
	userRepo *repository.UserRepository,
	certRepo *repository.CertRepository,
	tokenRepo *repository.TokenRepository,
	terminalRepo *repository.TerminalRepository,
	auditRepo *repository.AuditRepository,
	validator *policy.Validator,
) *Server {
	// Set Gin mode
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	// Create handlers
	caHandler := handlers.NewCAHandler(authority)
	certHandler := handlers.NewCertHandler(cfg, authority, userRepo, certRepo, tokenRepo, auditRepo, validator)
	adminHandler := handlers.NewAdminHandler(userRepo, certRepo, auditRepo)
	terminalHandler := handlers.NewTerminalHandler(terminalRepo, auditRepo)
	bootstrapHandler := handlers.NewBootstrapHandler()

	// API v1 routes
	v1 := router.Group("/v1")
	{
		// Public endpoints
		caGroup := v1.Group("/ca")
		{
			caGroup.GET("/cert", caHandler.GetRootCertificate)
			caGroup.GET("/cert.der", caHandler.GetRootCertificateDER)
		}

		// Bootstrap endpoints
		bootstrap := v1.Group("/bootstrap")
		{
			bootstrap.GET("/terminal.sh", bootstrapHandler.GetTerminalScript)
		}

		// Terminal registration
		register := v1.Group("/register")
		{
			register.POST("/terminal", terminalHandler.RegisterTerminal)
			register.GET("/terminals", terminalHandler.ListTerminals)
		}

		// Certificate endpoints
		certs := v1.Group("/certs")
		{
			certs.POST("/issue", certHandler.IssueCertificate)
			certs.POST("/renew", certHandler.RenewCertificate)
			certs.POST("/verify", certHandler.VerifyCertificate)
		}

		// Admin endpoints (require admin token)
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(cfg.Admin.Token))
		{
			admin.POST("/users", adminHandler.CreateUser)
			admin.GET("/users", adminHandler.ListUsers)
			admin.GET("/certs", adminHandler.ListCertificates)
			admin.GET("/audit", adminHandler.ListAuditLogs)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return &Server{
		router: router,
		config: cfg,
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	return s.router.Run(s.config.Server.ListenAddr)
}

// Router returns the underlying Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

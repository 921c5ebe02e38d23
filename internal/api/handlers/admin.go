package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/adamscao/cvca/internal/auth"
	"github.com/adamscao/cvca/internal/db/repository"
	"github.com/adamscao/cvca/internal/models"
	"github.com/gin-gonic/gin"
)

// AdminHandler handles administrative operations
type AdminHandler struct {
	userRepo  *repository.UserRepository
	certRepo  *repository.CertRepository
	auditRepo *repository.AuditRepository
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(userRepo *repository.UserRepository, certRepo *repository.CertRepository, auditRepo *repository.AuditRepository) *AdminHandler {
	return &AdminHandler{
		userRepo:  userRepo,
		certRepo:  certRepo,
		auditRepo: auditRepo,
	}
}

// CreateUserRequest represents a user creation request
type CreateUserRequest struct {
	Username       string `json:"username" binding:"required"`
	Password       string `json:"password" binding:"required"`
	TOTPSecret     string `json:"totp_secret"`
	Enabled        bool   `json:"enabled"`
	MaxCertsPerDay int    `json:"max_certs_per_day"`
}

// CreateUserResponse represents a user creation response
type CreateUserResponse struct {
	Status     string `json:"status"`
	UserID     int64  `json:"user_id"`
	TOTPSecret string `json:"totp_secret"`
	TOTPQRUrl  string `json:"totp_qr_url"`
}

// CreateUser creates a new user
// POST /v1/admin/users
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	clientIP := GetClientIP(c)
	userAgent := c.GetHeader("User-Agent")

	// Check if user already exists
	existingUser, _ := h.userRepo.GetByUsername(req.Username)
	if existingUser != nil {
		RespondError(c, http.StatusConflict, "user_exists", "User already exists")
		return
	}

	// Hash password
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to hash password")
		return
	}

	// Generate a TOTP secret when the request does not bring one
	totpSecret := req.TOTPSecret
	if totpSecret == "" {
		totpSecret, err = auth.GenerateTOTPSecret()
		if err != nil {
			log.Printf("Error generating TOTP secret: %v", err)
			RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to generate TOTP secret")
			return
		}
	}

	// Set defaults
	maxCertsPerDay := req.MaxCertsPerDay
	if maxCertsPerDay <= 0 {
		maxCertsPerDay = 10
	}

	// Create user
	user := &models.User{
		Username:       req.Username,
		PasswordHash:   passwordHash,
		TOTPSecret:     totpSecret,
		Enabled:        req.Enabled,
		MaxCertsPerDay: maxCertsPerDay,
	}

	if err := h.userRepo.Create(user); err != nil {
		log.Printf("Error creating user: %v", err)
		RespondError(c, http.StatusInternalServerError, "database_error", "Failed to create user")
		return
	}

	// Generate TOTP QR URL
	qrURL := auth.GenerateQRCodeURL(totpSecret, req.Username, "CVC-CA")

	// Log success
	h.auditRepo.Create(&models.AuditLog{
		Action:    models.ActionAdminCreateUser,
		Username:  req.Username,
		ClientIP:  clientIP,
		UserAgent: userAgent,
		Success:   true,
	})

	// Return response
	c.JSON(http.StatusOK, CreateUserResponse{
		Status:     "ok",
		UserID:     user.ID,
		TOTPSecret: totpSecret,
		TOTPQRUrl:  qrURL,
	})
}

// ListUsers lists all user accounts
// GET /v1/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.userRepo.List()
	if err != nil {
		log.Printf("Error listing users: %v", err)
		RespondError(c, http.StatusInternalServerError, "database_error", "Failed to list users")
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

// ListCertificates lists issued certificates, newest first
// GET /v1/admin/certs
func (h *AdminHandler) ListCertificates(c *gin.Context) {
	limit := 100
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			RespondError(c, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	certs, err := h.certRepo.List(limit)
	if err != nil {
		log.Printf("Error listing certificates: %v", err)
		RespondError(c, http.StatusInternalServerError, "database_error", "Failed to list certificates")
		return
	}

	c.JSON(http.StatusOK, gin.H{"certificates": certs})
}

// ListAuditLogs lists audit log entries with optional username/action filters
// GET /v1/admin/audit
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	limit := 100
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			RespondError(c, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	logs, err := h.auditRepo.List(c.Query("username"), c.Query("action"), limit)
	if err != nil {
		log.Printf("Error listing audit logs: %v", err)
		RespondError(c, http.StatusInternalServerError, "database_error", "Failed to list audit logs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"audit_logs": logs})
}

package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/adamscao/cvca/internal/db/repository"
	"github.com/adamscao/cvca/internal/models"
	"github.com/adamscao/cvca/pkg/cvc"
	"github.com/gin-gonic/gin"
)

// TerminalHandler handles terminal registration
type TerminalHandler struct {
	terminalRepo *repository.TerminalRepository
	auditRepo    *repository.AuditRepository
}

// NewTerminalHandler creates a new terminal handler
func NewTerminalHandler(terminalRepo *repository.TerminalRepository, auditRepo *repository.AuditRepository) *TerminalHandler {
	return &TerminalHandler{
		terminalRepo: terminalRepo,
		auditRepo:    auditRepo,
	}
}

// RegisterTerminalRequest represents a terminal registration request
type RegisterTerminalRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	EIDAccess   string   `json:"eid_access"`
	ESignAccess string   `json:"esign_access"`
	Labels      []string `json:"labels"`
	RootTrusted bool     `json:"root_trusted"`
}

// RegisterTerminalResponse represents a terminal registration response
type RegisterTerminalResponse struct {
	Status     string `json:"status"`
	TerminalID string `json:"terminal_id"`
}

// RegisterTerminal handles terminal registration
// POST /v1/register/terminal
func (h *TerminalHandler) RegisterTerminal(c *gin.Context) {
	var req RegisterTerminalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	clientIP := GetClientIP(c)
	userAgent := c.GetHeader("User-Agent")

	// Terminal names double as CV-certificate holder names
	if !cvc.NameValid(req.Name) {
		RespondError(c, http.StatusBadRequest, "invalid_name", "Terminal name must be 8-12 printable characters")
		return
	}

	// Access rights only ride along as metadata here; size-check them anyway
	var eid [5]byte
	if err := parseAccess(req.EIDAccess, eid[:]); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_access_rights", "eid_access must be 5 hex-encoded bytes")
		return
	}
	var esign [2]byte
	if err := parseAccess(req.ESignAccess, esign[:]); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_access_rights", "esign_access must be 2 hex-encoded bytes")
		return
	}

	labelsJSON, _ := json.Marshal(req.Labels)

	// Create terminal record
	terminal := &models.Terminal{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		EIDAccess:   req.EIDAccess,
		ESignAccess: req.ESignAccess,
		Labels:      string(labelsJSON),
		RootTrusted: req.RootTrusted,
	}

	// Update or create
	if err := h.terminalRepo.UpdateOrCreate(terminal); err != nil {
		log.Printf("Error registering terminal: %v", err)
		RespondError(c, http.StatusInternalServerError, "database_error", "Failed to register terminal")
		return
	}

	// Log success
	h.auditRepo.Create(&models.AuditLog{
		Action:    models.ActionTerminalRegister,
		Username:  req.Name,
		ClientIP:  clientIP,
		UserAgent: userAgent,
		Success:   true,
	})

	// Return response
	c.JSON(http.StatusOK, RegisterTerminalResponse{
		Status:     "ok",
		TerminalID: fmt.Sprintf("%d", terminal.ID),
	})
}

// ListTerminals lists registered terminals
// GET /v1/register/terminals
func (h *TerminalHandler) ListTerminals(c *gin.Context) {
	terminals, err := h.terminalRepo.List(100)
	if err != nil {
		log.Printf("Error listing terminals: %v", err)
		RespondError(c, http.StatusInternalServerError, "database_error", "Failed to list terminals")
		return
	}

	c.JSON(http.StatusOK, gin.H{"terminals": terminals})
}

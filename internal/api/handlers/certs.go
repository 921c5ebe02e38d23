package handlers

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/adamscao/cvca/internal/auth"
	"github.com/adamscao/cvca/internal/ca"
	"github.com/adamscao/cvca/internal/config"
	"github.com/adamscao/cvca/internal/db/repository"
	"github.com/adamscao/cvca/internal/models"
	"github.com/adamscao/cvca/internal/policy"
	"github.com/adamscao/cvca/pkg/certutil"
	"github.com/adamscao/cvca/pkg/cvc"
	"github.com/gin-gonic/gin"
)

// CertHandler handles certificate issuance, renewal and verification
type CertHandler struct {
	config    *config.Config
	authority *ca.Authority
	userRepo  *repository.UserRepository
	certRepo  *repository.CertRepository
	tokenRepo *repository.TokenRepository
	auditRepo *repository.AuditRepository
	validator *policy.Validator
}

// NewCertHandler creates a new certificate handler
func NewCertHandler(
	cfg *config.Config,
	authority *ca.Authority,
	userRepo *repository.UserRepository,
	certRepo *repository.CertRepository,
	tokenRepo *repository.TokenRepository,
	auditRepo *repository.AuditRepository,
	validator *policy.Validator,
) *CertHandler {
	return &CertHandler{
		config:    cfg,
		authority: authority,
		userRepo:  userRepo,
		certRepo:  certRepo,
		tokenRepo: tokenRepo,
		auditRepo: auditRepo,
		validator: validator,
	}
}

// IssueRequest represents a certificate issue request. The public key is the
// subject's raw key, hex-encoded; access rights are optional hex strings of
// 5 (eId) and 2 (eSign) bytes.
type IssueRequest struct {
	Username          string `json:"username" binding:"required"`
	Password          string `json:"password" binding:"required"`
	TOTP              string `json:"totp" binding:"required"`
	Holder            string `json:"holder" binding:"required"`
	PublicKey         string `json:"public_key" binding:"required"`
	EIDAccess         string `json:"eid_access"`
	ESignAccess       string `json:"esign_access"`
	RequestedValidity string `json:"requested_validity"`
}

// IssueResponse represents a certificate issue response
type IssueResponse struct {
	Certificate  string `json:"certificate"` // hex-encoded DER
	Holder       string `json:"holder"`
	ValidFrom    string `json:"valid_from"` // YYMMDD
	ValidTo      string `json:"valid_to"`   // YYMMDD
	SerialNumber uint64 `json:"serial_number"`
	RenewToken   string `json:"renew_token"`
}

// IssueCertificate handles certificate issuance
// POST /v1/certs/issue
func (h *CertHandler) IssueCertificate(c *gin.Context) {
	var req IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	clientIP := GetClientIP(c)
	userAgent := c.GetHeader("User-Agent")

	// Get user
	user, err := h.userRepo.GetByUsername(req.Username)
	if err != nil {
		h.logAuthFailure(req.Username, clientIP, userAgent, "User not found")
		RespondError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
		return
	}

	// Verify password
	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		h.logAuthFailure(req.Username, clientIP, userAgent, "Invalid password")
		RespondError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
		return
	}

	// Verify TOTP
	validTOTP, err := auth.ValidateTOTP(user.TOTPSecret, req.TOTP)
	if err != nil || !validTOTP {
		h.logAuthFailure(req.Username, clientIP, userAgent, "Invalid TOTP")
		RespondError(c, http.StatusUnauthorized, "invalid_totp", "Invalid TOTP code")
		return
	}

	// Parse requested validity
	var requestedValidity time.Duration
	if req.RequestedValidity != "" {
		requestedValidity, err = time.ParseDuration(req.RequestedValidity)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_validity", "Invalid validity format")
			return
		}
	}

	// Validate against policy
	validity, err := h.validator.ValidateIssueRequest(user, req.Holder, requestedValidity)
	if err != nil {
		RespondError(c, http.StatusForbidden, "policy_violation", err.Error())
		return
	}

	// Parse the subject's public key
	pub, err := certutil.ParseHexKey(req.PublicKey)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_public_key", err.Error())
		return
	}
	fingerprint := certutil.Fingerprint(pub)

	// Parse access rights
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

	// Get next serial number
	serialNumber, err := h.certRepo.GetNextSerialNumber()
	if err != nil {
		log.Printf("Error getting serial number: %v", err)
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to generate serial number")
		return
	}

	// Build and sign the certificate
	now := time.Now()
	draft := cvc.Certificate{
		Authority: h.authority.Name(),
		Holder:    req.Holder,
		HATEID:    eid,
		HATESign:  esign,
	}
	if draft.From, err = cvc.MakeDate(now.Year(), int(now.Month()), now.Day()); err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "Server clock is outside the certificate date range")
		return
	}
	until := now.Add(validity)
	if draft.Until, err = cvc.MakeDate(until.Year(), int(until.Month()), until.Day()); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_validity", "Requested validity ends outside the certificate date range")
		return
	}
	if err := draft.SetPublicKey(pub); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_public_key", "Unsupported public key length")
		return
	}

	der, err := h.authority.Issue(&draft)
	if err != nil {
		log.Printf("Error issuing certificate: %v", err)
		RespondError(c, http.StatusInternalServerError, "signing_error", "Failed to issue certificate")
		return
	}

	// Save certificate record
	lvl, _ := cvc.LevelByPublicKeyLen(draft.PubKeyLen)
	certRecord := &models.CertificateRecord{
		UserID:       user.ID,
		SerialNumber: serialNumber,
		Holder:       draft.Holder,
		Authority:    draft.Authority,
		Level:        levelBits(lvl),
		PublicKeyFP:  fingerprint,
		CertDER:      hex.EncodeToString(der),
		ValidFrom:    draft.From.String(),
		ValidTo:      draft.Until.String(),
		ClientIP:     clientIP,
		UserAgent:    userAgent,
	}
	if err := h.certRepo.Create(certRecord); err != nil {
		log.Printf("Error saving certificate record: %v", err)
		// Continue anyway - certificate is already signed
	}

	// Generate renew token
	renewToken, err := auth.GenerateRenewToken()
	if err != nil {
		log.Printf("Error generating renew token: %v", err)
		// Continue without token
		renewToken = ""
	}

	// Save renew token
	if renewToken != "" {
		tokenHash := auth.HashToken(renewToken)
		tokenExpiry := time.Now().Add(h.config.GetRenewTokenValidityDuration())
		renewTokenRecord := &models.RenewToken{
			UserID:      user.ID,
			TokenHash:   tokenHash,
			PublicKeyFP: fingerprint,
			ExpiresAt:   tokenExpiry,
		}
		if err := h.tokenRepo.Create(renewTokenRecord); err != nil {
			log.Printf("Error saving renew token: %v", err)
			// Continue without token
			renewToken = ""
		}
	}

	// Log success
	h.logSuccess(models.ActionCertIssue, req.Username, clientIP, userAgent, map[string]interface{}{
		"public_key_fp": fingerprint,
		"holder":        draft.Holder,
		"valid_to":      draft.Until.String(),
		"serial":        serialNumber,
	})

	// Return response
	c.JSON(http.StatusOK, IssueResponse{
		Certificate:  hex.EncodeToString(der),
		Holder:       draft.Holder,
		ValidFrom:    draft.From.String(),
		ValidTo:      draft.Until.String(),
		SerialNumber: serialNumber,
		RenewToken:   renewToken,
	})
}

// RenewRequest represents a certificate renewal request
type RenewRequest struct {
	PublicKey  string `json:"public_key" binding:"required"`
	RenewToken string `json:"renew_token" binding:"required"`
}

// RenewResponse represents a certificate renewal response
type RenewResponse struct {
	Certificate  string `json:"certificate"`
	Holder       string `json:"holder"`
	ValidFrom    string `json:"valid_from"`
	ValidTo      string `json:"valid_to"`
	SerialNumber uint64 `json:"serial_number"`
}

// RenewCertificate re-issues the key's most recent certificate with a fresh
// validity window, carrying the holder name and access rights over unchanged
// POST /v1/certs/renew
func (h *CertHandler) RenewCertificate(c *gin.Context) {
	var req RenewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	clientIP := GetClientIP(c)
	userAgent := c.GetHeader("User-Agent")

	pub, err := certutil.ParseHexKey(req.PublicKey)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_public_key", err.Error())
		return
	}
	fingerprint := certutil.Fingerprint(pub)

	// Validate token (this also checks public key binding)
	tokenHash := auth.HashToken(req.RenewToken)
	token, err := h.tokenRepo.ValidateToken(tokenHash, fingerprint)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "invalid_token", "Invalid or expired renew token")
		return
	}

	// Get user from token (token.UserID is already validated)
	user, err := h.userRepo.GetByID(token.UserID)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "invalid_user", "User not found")
		return
	}

	// Validate against policy
	validity, err := h.validator.ValidateRenewRequest(user, token)
	if err != nil {
		RespondError(c, http.StatusForbidden, "policy_violation", err.Error())
		return
	}

	// Recover the previous certificate for this key
	prevRecord, err := h.certRepo.GetLatestByFingerprint(fingerprint)
	if err != nil {
		RespondError(c, http.StatusNotFound, "no_certificate", "No certificate on record for this key")
		return
	}
	prevDER, err := hex.DecodeString(prevRecord.CertDER)
	if err != nil {
		log.Printf("Error decoding stored certificate %d: %v", prevRecord.ID, err)
		RespondError(c, http.StatusInternalServerError, "internal_error", "Stored certificate is corrupt")
		return
	}
	var prev cvc.Certificate
	if err := h.authority.Codec().Decode(&prev, prevDER, nil); err != nil {
		log.Printf("Error parsing stored certificate %d: %v", prevRecord.ID, err)
		RespondError(c, http.StatusInternalServerError, "internal_error", "Stored certificate is corrupt")
		return
	}
	if !bytes.Equal(prev.PublicKey(), pub) {
		RespondError(c, http.StatusForbidden, "key_mismatch", "Public key does not match the certificate on record")
		return
	}

	// Get next serial number
	serialNumber, err := h.certRepo.GetNextSerialNumber()
	if err != nil {
		log.Printf("Error getting serial number: %v", err)
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to generate serial number")
		return
	}

	// Re-issue with a fresh validity window
	now := time.Now()
	draft := cvc.Certificate{
		Authority: h.authority.Name(),
		Holder:    prev.Holder,
		HATEID:    prev.HATEID,
		HATESign:  prev.HATESign,
	}
	if draft.From, err = cvc.MakeDate(now.Year(), int(now.Month()), now.Day()); err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "Server clock is outside the certificate date range")
		return
	}
	until := now.Add(validity)
	if draft.Until, err = cvc.MakeDate(until.Year(), int(until.Month()), until.Day()); err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "Validity ends outside the certificate date range")
		return
	}
	if err := draft.SetPublicKey(pub); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_public_key", "Unsupported public key length")
		return
	}

	der, err := h.authority.Issue(&draft)
	if err != nil {
		log.Printf("Error issuing certificate: %v", err)
		RespondError(c, http.StatusInternalServerError, "signing_error", "Failed to issue certificate")
		return
	}

	// Save certificate record
	lvl, _ := cvc.LevelByPublicKeyLen(draft.PubKeyLen)
	certRecord := &models.CertificateRecord{
		UserID:       user.ID,
		SerialNumber: serialNumber,
		Holder:       draft.Holder,
		Authority:    draft.Authority,
		Level:        levelBits(lvl),
		PublicKeyFP:  fingerprint,
		CertDER:      hex.EncodeToString(der),
		ValidFrom:    draft.From.String(),
		ValidTo:      draft.Until.String(),
		ClientIP:     clientIP,
		UserAgent:    userAgent,
	}
	if err := h.certRepo.Create(certRecord); err != nil {
		log.Printf("Error saving certificate record: %v", err)
		// Continue anyway
	}

	// Update token last used
	if err := h.tokenRepo.UpdateLastUsed(token.ID); err != nil {
		log.Printf("Error updating token last used: %v", err)
	}

	// Log success
	h.logSuccess(models.ActionCertRenew, user.Username, clientIP, userAgent, map[string]interface{}{
		"public_key_fp": fingerprint,
		"holder":        draft.Holder,
		"valid_to":      draft.Until.String(),
		"serial":        serialNumber,
	})

	// Return response
	c.JSON(http.StatusOK, RenewResponse{
		Certificate:  hex.EncodeToString(der),
		Holder:       draft.Holder,
		ValidFrom:    draft.From.String(),
		ValidTo:      draft.Until.String(),
		SerialNumber: serialNumber,
	})
}

// VerifyRequest represents a certificate verification request
type VerifyRequest struct {
	Certificate string `json:"certificate" binding:"required"` // hex-encoded DER
}

// VerifyResponse represents a certificate verification response
type VerifyResponse struct {
	Valid       bool   `json:"valid"`
	Reason      string `json:"reason,omitempty"`
	Holder      string `json:"holder,omitempty"`
	Authority   string `json:"authority,omitempty"`
	ValidFrom   string `json:"valid_from,omitempty"`
	ValidTo     string `json:"valid_to,omitempty"`
	PublicKeyFP string `json:"public_key_fp,omitempty"`
	EIDAccess   string `json:"eid_access,omitempty"`
	ESignAccess string `json:"esign_access,omitempty"`
}

// VerifyCertificate checks a certificate's signature against the authority's
// key and its chain against the root
// POST /v1/certs/verify
func (h *CertHandler) VerifyCertificate(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	der, err := hex.DecodeString(req.Certificate)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_certificate", "Certificate must be hex-encoded")
		return
	}

	cert, err := h.authority.Verify(der)
	if err != nil {
		h.auditRepo.Create(&models.AuditLog{
			Action:   models.ActionCertVerify,
			ClientIP: GetClientIP(c),
			Success:  false,
			ErrorMsg: err.Error(),
		})
		c.JSON(http.StatusOK, VerifyResponse{Valid: false, Reason: err.Error()})
		return
	}

	h.auditRepo.Create(&models.AuditLog{
		Action:   models.ActionCertVerify,
		ClientIP: GetClientIP(c),
		Success:  true,
	})

	resp := VerifyResponse{
		Valid:       true,
		Holder:      cert.Holder,
		Authority:   cert.Authority,
		ValidFrom:   cert.From.String(),
		ValidTo:     cert.Until.String(),
		PublicKeyFP: certutil.Fingerprint(cert.PublicKey()),
	}
	if cert.HATEID != ([5]byte{}) {
		resp.EIDAccess = hex.EncodeToString(cert.HATEID[:])
	}
	if cert.HATESign != ([2]byte{}) {
		resp.ESignAccess = hex.EncodeToString(cert.HATESign[:])
	}
	c.JSON(http.StatusOK, resp)
}

// parseAccess decodes an optional hex access-rights field into dst. Empty
// input leaves dst zeroed, which encodes as an absent field.
func parseAccess(s string, dst []byte) error {
	if s == "" {
		return nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(dst) {
		return errBadAccess
	}
	copy(dst, raw)
	return nil
}

var errBadAccess = errors.New("bad access rights")

// levelBits maps a level to its advertised bit strength
func levelBits(l cvc.Level) int {
	switch l {
	case cvc.Level128:
		return 128
	case cvc.Level192:
		return 192
	default:
		return 256
	}
}

// Helper methods for audit logging
func (h *CertHandler) logAuthFailure(username, clientIP, userAgent, reason string) {
	h.auditRepo.Create(&models.AuditLog{
		Action:    models.ActionAuthFailed,
		Username:  username,
		ClientIP:  clientIP,
		UserAgent: userAgent,
		Success:   false,
		ErrorMsg:  reason,
	})
}

func (h *CertHandler) logSuccess(action, username, clientIP, userAgent string, details interface{}) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = nil
	}
	h.auditRepo.Create(&models.AuditLog{
		Action:    action,
		Username:  username,
		ClientIP:  clientIP,
		UserAgent: userAgent,
		Success:   true,
		Details:   string(detailsJSON),
	})
}

package handlers

import (
	"encoding/hex"
	"net/http"

	"github.com/adamscao/cvca/internal/ca"
	"github.com/adamscao/cvca/pkg/certutil"
	"github.com/gin-gonic/gin"
)

// CAHandler handles authority-related requests
type CAHandler struct {
	authority *ca.Authority
}

// NewCAHandler creates a new CA handler
func NewCAHandler(authority *ca.Authority) *CAHandler {
	return &CAHandler{
		authority: authority,
	}
}

// RootCertResponse describes the authority's self-signed root certificate
type RootCertResponse struct {
	Authority   string `json:"authority"`
	Level       string `json:"level"`
	Certificate string `json:"certificate"` // hex-encoded DER
	Fingerprint string `json:"fingerprint"`
	ValidFrom   string `json:"valid_from"`
	ValidTo     string `json:"valid_to"`
}

// GetRootCertificate returns the authority's self-signed root certificate
// GET /v1/ca/cert
func (h *CAHandler) GetRootCertificate(c *gin.Context) {
	root := h.authority.Root()
	der := h.authority.RootDER()

	c.JSON(http.StatusOK, RootCertResponse{
		Authority:   h.authority.Name(),
		Level:       h.authority.Level().String(),
		Certificate: hex.EncodeToString(der),
		Fingerprint: certutil.Fingerprint(der),
		ValidFrom:   root.From.String(),
		ValidTo:     root.Until.String(),
	})
}

// GetRootCertificateDER returns the raw root certificate bytes
// GET /v1/ca/cert.der
func (h *CAHandler) GetRootCertificateDER(c *gin.Context) {
	c.Data(http.StatusOK, "application/octet-stream", h.authority.RootDER())
}

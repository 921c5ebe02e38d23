package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BootstrapHandler serves the terminal provisioning script
type BootstrapHandler struct {
	terminalScriptContent string
}

// NewBootstrapHandler creates a new bootstrap handler
func NewBootstrapHandler() *BootstrapHandler {
	return &BootstrapHandler{
		terminalScriptContent: getTerminalBootstrapScript(),
	}
}

// GetTerminalScript returns the terminal bootstrap script
// GET /v1/bootstrap/terminal.sh
func (h *BootstrapHandler) GetTerminalScript(c *gin.Context) {
	c.Data(http.StatusOK, "text/x-shellscript; charset=utf-8", []byte(h.terminalScriptContent))
}

// getTerminalBootstrapScript returns the terminal bootstrap script content
func getTerminalBootstrapScript() string {
	return `#!/usr/bin/env bash
#
# Terminal Bootstrap Script
# Installs the authority's root certificate and registers this terminal
#

set -euo pipefail

CA_SERVER="${CA_SERVER:-http://localhost:8080}"
ROOT_CERT_URL="$CA_SERVER/v1/ca/cert.der"
REGISTER_URL="$CA_SERVER/v1/register/terminal"
TRUST_DIR="${TRUST_DIR:-/etc/cvca}"
TERMINAL_NAME="${TERMINAL_NAME:-}"

echo "=== CV Terminal Bootstrap ==="
echo "CA Server: $CA_SERVER"

if [ -z "$TERMINAL_NAME" ]; then
    read -p "Terminal name (8-12 characters): " TERMINAL_NAME
fi

# Download root certificate
echo "Downloading root certificate..."
mkdir -p "$TRUST_DIR"
curl -fsSL "$ROOT_CERT_URL" -o "$TRUST_DIR/root.crt"
chmod 644 "$TRUST_DIR/root.crt"

# Register terminal
echo "Registering terminal..."
curl -fsSL -X POST "$REGISTER_URL" \
    -H "Content-Type: application/json" \
    -d "{
        \"name\": \"$TERMINAL_NAME\",
        \"location\": \"$(hostname)\",
        \"root_trusted\": true
    }"

echo ""
echo "=== Bootstrap Complete ==="
echo "Root certificate installed at $TRUST_DIR/root.crt"
`
}

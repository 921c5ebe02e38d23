package policy

import (
	"fmt"
	"time"

	"github.com/adamscao/cvca/internal/config"
	"github.com/adamscao/cvca/internal/db/repository"
	"github.com/adamscao/cvca/internal/models"
	"github.com/adamscao/cvca/pkg/cvc"
)

// Validator validates certificate issuance requests against policy
type Validator struct {
	config   *config.Config
	certRepo *repository.CertRepository
}

// NewValidator creates a new policy validator
func NewValidator(cfg *config.Config, certRepo *repository.CertRepository) *Validator {
	return &Validator{
		config:   cfg,
		certRepo: certRepo,
	}
}

// ValidateIssueRequest validates a certificate issue request and returns the
// validity period to grant
func (v *Validator) ValidateIssueRequest(user *models.User, holder string, requestedValidity time.Duration) (time.Duration, error) {
	// Check if user is enabled
	if !user.Enabled {
		return 0, fmt.Errorf("user account is disabled")
	}

	// Holder must be a well-formed CV-certificate name
	if !cvc.NameValid(holder) {
		return 0, fmt.Errorf("holder must be 8-12 printable characters (got %q)", holder)
	}

	// Check daily certificate limit
	if err := v.checkDailyLimit(user); err != nil {
		return 0, err
	}

	// Validate and adjust validity period
	adjustedValidity := v.adjustValidity(requestedValidity)

	return adjustedValidity, nil
}

// ValidateRenewRequest validates a certificate renewal request
func (v *Validator) ValidateRenewRequest(user *models.User, token *models.RenewToken) (time.Duration, error) {
	// Check if user is enabled
	if !user.Enabled {
		return 0, fmt.Errorf("user account is disabled")
	}

	// Check if token belongs to user
	if token.UserID != user.ID {
		return 0, fmt.Errorf("token does not belong to user")
	}

	// Check if token is expired
	if time.Now().After(token.ExpiresAt) {
		return 0, fmt.Errorf("token has expired")
	}

	// Check daily certificate limit (renewal also counts)
	if err := v.checkDailyLimit(user); err != nil {
		return 0, err
	}

	// Use default validity for renewals
	validity := v.config.GetDefaultValidityDuration()

	return validity, nil
}

// checkDailyLimit enforces the per-user daily issuance cap
func (v *Validator) checkDailyLimit(user *models.User) error {
	count, err := v.certRepo.GetUserCertCountToday(user.ID)
	if err != nil {
		return fmt.Errorf("failed to check daily limit: %w", err)
	}

	maxCerts := user.MaxCertsPerDay
	if maxCerts <= 0 {
		maxCerts = v.config.Policy.MaxCertsPerDay
	}

	if count >= maxCerts {
		return fmt.Errorf("daily certificate limit exceeded (%d/%d)", count, maxCerts)
	}

	return nil
}

// adjustValidity adjusts the requested validity to comply with policy
func (v *Validator) adjustValidity(requested time.Duration) time.Duration {
	maxValidity := v.config.GetMaxValidityDuration()

	// If requested is zero or negative, use default
	if requested <= 0 {
		return v.config.GetDefaultValidityDuration()
	}

	// If requested exceeds max, cap at max
	if requested > maxValidity {
		return maxValidity
	}

	return requested
}

// GetMaxValidity returns the maximum allowed validity period
func (v *Validator) GetMaxValidity() time.Duration {
	return v.config.GetMaxValidityDuration()
}

// GetDefaultValidity returns the default validity period
func (v *Validator) GetDefaultValidity() time.Duration {
	return v.config.GetDefaultValidityDuration()
}

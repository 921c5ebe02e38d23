package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/adamscao/cvca/internal/auth"
	"github.com/adamscao/cvca/internal/ca"
	"github.com/adamscao/cvca/internal/config"
	"github.com/adamscao/cvca/internal/db"
	"github.com/adamscao/cvca/internal/db/repository"
	"github.com/adamscao/cvca/internal/models"
	"github.com/adamscao/cvca/pkg/certutil"
	"github.com/adamscao/cvca/pkg/cvc"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        *config.Config
	database   *db.DB
)

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "CV CA Server administration tool",
	Long:  "Administrative tool for managing CV CA Server users, certificates, and audit logs",
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	RunE:  createUser,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE:  listUsers,
}

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Manage certificates",
}

var certListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issued certificates",
	RunE:  listCerts,
}

var certInspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Decode and print a certificate file (raw DER or hex)",
	Args:  cobra.ExactArgs(1),
	RunE:  inspectCert,
}

var (
	username       string
	password       string
	generateTOTP   bool
	totpSecret     string
	enabled        bool
	maxCertsPerDay int
	certLimit      int
)

func init() {
	// Root flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/cvca/config.yaml", "Config file path")

	// User create flags
	userCreateCmd.Flags().StringVarP(&username, "username", "u", "", "Username (required)")
	userCreateCmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	userCreateCmd.Flags().BoolVar(&generateTOTP, "generate-totp", false, "Generate TOTP secret automatically")
	userCreateCmd.Flags().StringVar(&totpSecret, "totp-secret", "", "TOTP secret (required if not generating)")
	userCreateCmd.Flags().BoolVar(&enabled, "enabled", true, "Enable user account")
	userCreateCmd.Flags().IntVar(&maxCertsPerDay, "max-certs-per-day", 10, "Maximum certificates per day")

	userCreateCmd.MarkFlagRequired("username")
	userCreateCmd.MarkFlagRequired("password")

	// Cert list flags
	certListCmd.Flags().IntVar(&certLimit, "limit", 50, "Maximum number of certificates to show")

	// Add commands
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	certCmd.AddCommand(certListCmd)
	certCmd.AddCommand(certInspectCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(certCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initDB() error {
	// Load configuration
	var err error
	cfg, err = config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Connect to database
	database, err = db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	return nil
}

func createUser(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	// Get or generate TOTP secret
	var secret string
	if generateTOTP {
		var err error
		secret, err = auth.GenerateTOTPSecret()
		if err != nil {
			return fmt.Errorf("failed to generate TOTP secret: %w", err)
		}
		log.Printf("Generated TOTP secret: %s", secret)
	} else {
		if totpSecret == "" {
			return fmt.Errorf("either --generate-totp or --totp-secret must be provided")
		}
		secret = totpSecret
	}

	// Hash password
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// Create user
	userRepo := repository.NewUserRepository(database.DB)
	user := &models.User{
		Username:       username,
		PasswordHash:   passwordHash,
		TOTPSecret:     secret,
		Enabled:        enabled,
		MaxCertsPerDay: maxCertsPerDay,
	}

	if err := userRepo.Create(user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	// Generate QR URL
	qrURL := auth.GenerateQRCodeURL(secret, username, "CVC-CA")

	fmt.Printf("\nUser created successfully!\n")
	fmt.Printf("User ID: %d\n", user.ID)
	fmt.Printf("Username: %s\n", user.Username)
	fmt.Printf("Enabled: %t\n", user.Enabled)
	fmt.Printf("Max certs per day: %d\n", user.MaxCertsPerDay)
	fmt.Printf("\nTOTP Secret: %s\n", secret)
	fmt.Printf("TOTP QR URL: %s\n", qrURL)
	fmt.Printf("\nScan the QR URL with a TOTP app (Google Authenticator, Authy, etc.)\n")

	return nil
}

func listUsers(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	userRepo := repository.NewUserRepository(database.DB)
	users, err := userRepo.List()
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users found")
		return nil
	}

	fmt.Printf("\nTotal users: %d\n\n", len(users))
	fmt.Printf("%-5s %-20s %-10s %-15s %s\n", "ID", "Username", "Enabled", "Max Certs/Day", "Created")
	fmt.Println("--------------------------------------------------------------------------------")

	for _, user := range users {
		enabledStr := "No"
		if user.Enabled {
			enabledStr = "Yes"
		}
		fmt.Printf("%-5d %-20s %-10s %-15d %s\n",
			user.ID,
			user.Username,
			enabledStr,
			user.MaxCertsPerDay,
			user.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}

	return nil
}

func listCerts(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	certRepo := repository.NewCertRepository(database.DB)
	certs, err := certRepo.List(certLimit)
	if err != nil {
		return fmt.Errorf("failed to list certificates: %w", err)
	}

	if len(certs) == 0 {
		fmt.Println("No certificates found")
		return nil
	}

	fmt.Printf("\nTotal certificates: %d\n\n", len(certs))
	fmt.Printf("%-8s %-14s %-6s %-8s %-8s %s\n", "Serial", "Holder", "Level", "From", "Until", "Issued")
	fmt.Println("--------------------------------------------------------------------------------")

	for _, cert := range certs {
		fmt.Printf("%-8d %-14s %-6d %-8s %-8s %s\n",
			cert.SerialNumber,
			cert.Holder,
			cert.Level,
			cert.ValidFrom,
			cert.ValidTo,
			cert.IssuedAt.Format("2006-01-02 15:04:05"),
		)
	}

	return nil
}

func inspectCert(cmd *cobra.Command, args []string) error {
	// Inspection only decodes, so the configured provider is enough; no key
	// material is touched.
	var err error
	cfg, err = config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	prov, err := ca.NewProvider(cfg.Authority.Provider)
	if err != nil {
		return err
	}
	codec := cvc.New(prov)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read certificate file: %w", err)
	}

	der := data
	// Accept hex-encoded files as written by the API responses
	if trimmed := strings.TrimSpace(string(data)); isHex(trimmed) {
		if decoded, err := hex.DecodeString(trimmed); err == nil {
			der = decoded
		}
	}

	var cert cvc.Certificate
	if err := codec.Decode(&cert, der, nil); err != nil {
		return fmt.Errorf("failed to decode certificate: %w", err)
	}

	fmt.Printf("Authority:     %s\n", cert.Authority)
	fmt.Printf("Holder:        %s\n", cert.Holder)
	fmt.Printf("Valid from:    %s\n", cert.From)
	fmt.Printf("Valid until:   %s\n", cert.Until)
	fmt.Printf("Public key:    %d bytes, %s\n", cert.PubKeyLen, hex.EncodeToString(cert.PublicKey()))
	fmt.Printf("Fingerprint:   %s\n", certutil.Fingerprint(cert.PublicKey()))
	if cert.HATEID != ([5]byte{}) {
		fmt.Printf("eId access:    %s\n", hex.EncodeToString(cert.HATEID[:]))
	}
	if cert.HATESign != ([2]byte{}) {
		fmt.Printf("eSign access:  %s\n", hex.EncodeToString(cert.HATESign[:]))
	}
	fmt.Printf("Signature:     %d bytes (not verified; no issuer key given)\n", cert.SigLen)

	return nil
}

// isHex reports whether s consists solely of an even number of hex digits
func isHex(s string) bool {
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

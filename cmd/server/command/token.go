package command

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/staydrive/inventory-engine/internal/api"
	"github.com/staydrive/inventory-engine/internal/auth"
)

var tokenFlags struct {
	sub  string
	role string
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token signed with JWT_SECRET",
	Long: `Print a signed access token as JSON. Identity is owned by an external
service; this command exists for operators and local testing.`,
	Args: cobra.NoArgs,
	RunE: mintToken,
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenFlags.sub, "sub", "", "user id placed in the subject claim")
	f.StringVar(&tokenFlags.role, "role", auth.RoleCustomer, "customer, staff or admin")
	_ = tokenCmd.MarkFlagRequired("sub")
	rootCmd.AddCommand(tokenCmd)
}

func mintToken(cmd *cobra.Command, _ []string) error {
	if !auth.ValidRole(tokenFlags.role) {
		return fmt.Errorf("unknown role %q", tokenFlags.role)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	manager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTokenTTL)
	token, err := manager.GenerateAccessToken(tokenFlags.sub, tokenFlags.role)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(api.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(cfg.JWTAccessTokenTTL).UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

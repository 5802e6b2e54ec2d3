package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/deepguard/internal/auth"
	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token",
	Long: `Issue a bearer token signed with the configured secret_key.
Clients send it as "Authorization: Bearer <token>" when auth.enabled is set.

Example:
  SECRET_KEY=... deepguard token --subject dashboard --ttl 720h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ttl := cfg.Auth.TokenTTL
		if tokenTTL > 0 {
			ttl = tokenTTL
		}
		signer, err := auth.NewSigner(cfg.SecretKey, cfg.Auth.Issuer, ttl)
		if err != nil {
			return fmt.Errorf("%w (set SECRET_KEY or secret_key in the config file)", err)
		}

		token, claims, err := signer.Issue(tokenSubject)
		if err != nil {
			return err
		}

		fmt.Println(token)
		fmt.Fprintf(os.Stderr, "✓ Token for %q expires %s\n", claims.Subject, claims.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "api-client", "token subject (client name)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default from auth.token_ttl)")
}

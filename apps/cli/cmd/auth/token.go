package auth

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	platformauth "github.com/arunavo4/turns-management-sub001/platform/go/auth"
)

// Command groups auth helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication helpers",
	}

	cmd.AddCommand(tokenCommand())
	return cmd
}

func tokenCommand() *cobra.Command {
	var (
		secret    string
		userID    string
		email     string
		role      string
		expiresIn time.Duration
	)

	c := &cobra.Command{
		Use:   "token",
		Short: "Mint an HMAC-signed JWT for local API access",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("jwt secret is required (flag --secret or JWT_SECRET)")
			}

			now := time.Now().UTC()
			token, err := platformauth.SignHMACToken([]byte(secret), map[string]interface{}{
				"sub":   userID,
				"email": email,
				"role":  role,
				"iat":   now.Unix(),
				"exp":   now.Add(expiresIn).Unix(),
			})
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	c.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HMAC signing secret")
	c.Flags().StringVar(&userID, "user-id", "", "sub claim")
	c.Flags().StringVar(&email, "email", "", "email claim")
	c.Flags().StringVar(&role, "role", "member", "role claim")
	c.Flags().DurationVar(&expiresIn, "expires-in", time.Hour, "token lifetime (e.g. 30m, 2h)")

	_ = c.MarkFlagRequired("user-id")
	_ = c.MarkFlagRequired("email")
	return c
}

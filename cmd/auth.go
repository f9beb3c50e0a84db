package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"video-transcriber/infrastructure/googleauth"

	"github.com/spf13/cobra"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
)

var authCmd = &cobra.Command{
	Use:   "auth [drive|gmail]",
	Short: "Authorize access to Google Drive or Gmail",
	Long: fmt.Sprintf(`Run the browser consent flow and store the OAuth token.

Drive access is read-only and is needed for --source-type drive.
Gmail access is send-only and is needed for run-report emails.
The flow listens on %s for the redirect. Service-account
credentials need no authorization.

Examples:
  video-transcriber auth drive
  video-transcriber auth gmail`, googleauth.CallbackAddr),
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"drive", "gmail"},
	RunE:      runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}

	var authCfg googleauth.Config
	switch args[0] {
	case "drive":
		authCfg = googleauth.Config{
			CredentialsFile: c.Google.CredentialsFile,
			TokenFile:       c.Google.TokenFile,
			Scopes:          []string{drive.DriveReadonlyScope},
		}
	case "gmail":
		authCfg = googleauth.Config{
			CredentialsFile: c.Google.CredentialsFile,
			TokenFile:       c.Notify.TokenFile,
			Scopes:          []string{gmail.GmailSendScope},
		}
	default:
		return fmt.Errorf("unknown service %q. Use drive or gmail", args[0])
	}

	return RunAuthWithDependencies(cmd.Context(), googleauth.Authorize, authCfg, os.Stdout)
}

// RunAuthWithDependencies runs the auth command with an injected authorizer (for testing)
func RunAuthWithDependencies(
	ctx context.Context,
	authorize func(context.Context, googleauth.Config) error,
	authCfg googleauth.Config,
	output io.Writer,
) error {
	authCfg.Out = output
	if err := authorize(ctx, authCfg); err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}
	fmt.Fprintf(output, "Token saved to %s\n", authCfg.TokenFile)
	return nil
}

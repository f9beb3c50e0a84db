package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CallbackAddr is where the installed-app flow listens for the redirect
const CallbackAddr = "localhost:8085"

// Config holds the configuration for Google authentication
type Config struct {
	CredentialsFile string   // Service-account key or OAuth client credentials JSON
	TokenFile       string   // Path to store/load the OAuth user token
	Scopes          []string // API scopes to request
	Out             io.Writer
}

func (c Config) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// IsServiceAccount reports whether the credentials JSON is a service-account key
func IsServiceAccount(credentialsJSON []byte) bool {
	var f struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(credentialsJSON, &f) == nil && f.Type == "service_account"
}

// HTTPClient returns an authorised HTTP client. A service-account key uses the
// JWT flow; anything else is treated as an OAuth client and uses the cached user
// token, running the browser flow when there is none. The returned expiry is zero
// when the client can refresh itself.
func HTTPClient(ctx context.Context, cfg Config) (*http.Client, time.Time, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("unable to read credentials file: %w", err)
	}

	if IsServiceAccount(b) {
		jwtConfig, err := google.JWTConfigFromJSON(b, cfg.Scopes...)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("unable to parse service account credentials: %w", err)
		}
		return jwtConfig.Client(ctx), time.Time{}, nil
	}

	config, err := google.ConfigFromJSON(b, cfg.Scopes...)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("unable to parse OAuth credentials: %w", err)
	}

	token, err := getToken(ctx, config, cfg)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("unable to get OAuth token: %w", err)
	}

	var expiry time.Time
	if token.RefreshToken == "" {
		expiry = token.Expiry
	}
	return config.Client(ctx, token), expiry, nil
}

// Authorize runs the browser flow unconditionally and stores the token
func Authorize(ctx context.Context, cfg Config) error {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return fmt.Errorf("unable to read credentials file: %w", err)
	}
	if IsServiceAccount(b) {
		fmt.Fprintln(cfg.out(), "Service account credentials need no interactive authorization.")
		return nil
	}
	config, err := google.ConfigFromJSON(b, cfg.Scopes...)
	if err != nil {
		return fmt.Errorf("unable to parse OAuth credentials: %w", err)
	}
	_, err = getTokenFromWeb(ctx, config, cfg)
	return err
}

// getToken retrieves a token from file or initiates the OAuth flow
func getToken(ctx context.Context, config *oauth2.Config, cfg Config) (*oauth2.Token, error) {
	token, err := LoadToken(cfg.TokenFile)
	if err == nil {
		newToken, err := config.TokenSource(ctx, token).Token()
		if err == nil {
			if newToken.AccessToken != token.AccessToken {
				if err := SaveToken(cfg.TokenFile, newToken); err != nil {
					fmt.Fprintf(cfg.out(), "Warning: couldn't save refreshed token: %v\n", err)
				}
			}
			return newToken, nil
		}
		// refresh failed, fall through to re-authenticate
	}

	return getTokenFromWeb(ctx, config, cfg)
}

// LoadToken loads a token from a file
func LoadToken(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}
	return token, nil
}

// SaveToken saves a token to a file readable only by the owner
func SaveToken(file string, token *oauth2.Token) error {
	if dir := filepath.Dir(file); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}

// getTokenFromWeb initiates the OAuth flow via browser
func getTokenFromWeb(ctx context.Context, config *oauth2.Config, cfg Config) (*oauth2.Token, error) {
	out := cfg.out()
	config.RedirectURL = "http://" + CallbackAddr + "/callback"

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			select {
			case errChan <- fmt.Errorf("no code in callback"):
			default:
			}
			fmt.Fprintf(w, "Error: No authorization code received")
			return
		}
		select {
		case codeChan <- code:
		default:
		}
		fmt.Fprintf(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window and return to the terminal.</p></body></html>")
	})

	listener, err := net.Listen("tcp", CallbackAddr)
	if err != nil {
		return nil, fmt.Errorf("unable to listen for OAuth callback: %w", err)
	}
	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	defer server.Shutdown(context.WithoutCancel(ctx))

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Opening browser for Google authentication...")
	fmt.Fprintln(out, "If the browser doesn't open, please visit this URL:")
	fmt.Fprintln(out)
	fmt.Fprintln(out, authURL)
	fmt.Fprintln(out)

	openBrowser(authURL)

	var authCode string
	select {
	case authCode = <-codeChan:
	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	token, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange auth code: %w", err)
	}

	if err := SaveToken(cfg.TokenFile, token); err != nil {
		fmt.Fprintf(out, "Warning: couldn't save token: %v\n", err)
	}

	fmt.Fprintln(out, "Authentication successful!")
	return token, nil
}

// openBrowser opens a URL in the default browser
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		if _, err := exec.LookPath("xdg-open"); err == nil {
			cmd = exec.Command("xdg-open", url)
		} else if _, err := exec.LookPath("wslview"); err == nil {
			cmd = exec.Command("wslview", url)
		} else {
			cmd = exec.Command("cmd.exe", "/c", "start", url)
		}
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	}

	if cmd != nil {
		cmd.Start()
	}
}

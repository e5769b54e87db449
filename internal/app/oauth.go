package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/semmidev/pgkeep/internal/adapter/storage"
	"github.com/semmidev/pgkeep/internal/infrastructure/logger"
)

// GoogleOAuthService serves the consent flow that yields a Drive refresh token
// for gdrive:// destinations.
type GoogleOAuthService struct {
	config     *oauth2.Config
	logger     *logger.Logger
	state      string
	authServer *http.Server
	tokens     chan *oauth2.Token
}

func NewGoogleOAuthService(log *logger.Logger, clientSecretPath string) (*GoogleOAuthService, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if clientSecretPath == "" {
		return nil, errors.New("upload.gdrive.client_secret_file is not set")
	}

	cfg, err := storage.GoogleOAuthConfig(clientSecretPath)
	if err != nil {
		return nil, err
	}

	return &GoogleOAuthService{
		config: cfg,
		logger: log,
		state:  uuid.NewString(),
		tokens: make(chan *oauth2.Token, 1),
	}, nil
}

func (s *GoogleOAuthService) GetConfig() *oauth2.Config {
	return s.config
}

// Tokens delivers the token once the callback succeeds.
func (s *GoogleOAuthService) Tokens() <-chan *oauth2.Token {
	return s.tokens
}

func (s *GoogleOAuthService) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /auth/google/drive", func(w http.ResponseWriter, r *http.Request) {
		authURL := s.config.AuthCodeURL(s.state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
	})

	mux.HandleFunc("GET /auth/google/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != s.state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code parameter", http.StatusBadRequest)
			return
		}

		token, err := s.config.Exchange(r.Context(), code)
		if err != nil {
			http.Error(w, fmt.Sprintf("token exchange failed: %v", err), http.StatusInternalServerError)
			return
		}

		if token.RefreshToken == "" {
			fmt.Fprintln(w, "⚠️ No refresh token returned. Revoke app access & re-authorize.")
			return
		}

		tokenJSON, err := json.MarshalIndent(token, "", "  ")
		if err != nil {
			http.Error(w, "failed to marshal token", http.StatusInternalServerError)
			return
		}

		fmt.Fprintf(w, "✅ Refresh Token:\n%s\n\nSet it as upload.gdrive.refresh_token (or PGKEEP_UPLOAD_GDRIVE_REFRESH_TOKEN).\n\nFull Token JSON:\n%s", token.RefreshToken, tokenJSON)

		select {
		case s.tokens <- token:
		default:
		}
	})

	return mux
}

// StartAuthServer listens on addr in the background.
func (s *GoogleOAuthService) StartAuthServer(ctx context.Context, addr string) error {
	s.authServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Infof("Google Drive OAuth server listening on http://%s/auth/google/drive", s.authServer.Addr)
		if err := s.authServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("OAuth server error: %v", err)
		}
	}()

	return nil
}

func (s *GoogleOAuthService) Shutdown(ctx context.Context) error {
	if s.authServer == nil {
		return nil
	}

	if err := s.authServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown OAuth server: %w", err)
	}
	s.logger.Infof("OAuth server stopped")
	return nil
}

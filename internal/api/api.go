package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/oauth2"

	"github.com/susu3304/warikanbot/internal/config"
	"github.com/susu3304/warikanbot/internal/invitation"
	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/participant"
	"github.com/susu3304/warikanbot/internal/reconcile"
)

// Services are the domain components the API exposes.
type Services struct {
	Entries     *ledger.Repository
	Reconcile   *reconcile.Service
	Invitations *invitation.Repository
	Directory   *participant.Directory
}

type API struct {
	router      *mux.Router
	config      *config.Config
	oauthConfig *oauth2.Config
	jwtSecret   []byte
	svc         Services

	// fetchUser is replaced in tests.
	fetchUser func(ctx context.Context, token *oauth2.Token) (*DiscordUser, error)
}

func New(cfg *config.Config, svc Services) *API {
	api := &API{
		router:    mux.NewRouter(),
		config:    cfg,
		svc:       svc,
		jwtSecret: []byte(cfg.JWTSecret),
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURI,
			Scopes:       []string{"identify"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/api/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
	}
	api.fetchUser = api.getDiscordUser

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.router.Use(requestLogger)

	// Auth endpoints
	a.router.HandleFunc("/api/auth/login", a.handleLogin).Methods("GET")
	a.router.HandleFunc("/api/auth/callback", a.handleCallback).Methods("GET")
	a.router.HandleFunc("/api/auth/logout", a.handleLogout).Methods("POST")

	// Public endpoints
	a.router.HandleFunc("/api/invitations/{token}", a.handleValidateInvitation).Methods("GET")

	// Logged in, not yet a participant
	a.router.Handle("/api/invitations/{token}/accept", a.authMiddleware(http.HandlerFunc(a.handleAcceptInvitation))).Methods("POST")

	// Admin endpoints
	admin := func(h http.HandlerFunc) http.Handler { return a.authMiddleware(a.adminMiddleware(h)) }
	a.router.Handle("/api/invitations", admin(a.handleCreateInvitation)).Methods("POST")
	a.router.Handle("/api/invitations", admin(a.handleListInvitations)).Methods("GET")
	a.router.Handle("/api/invitations/{id}", admin(a.handleRevokeInvitation)).Methods("DELETE")

	// Participant endpoints
	protected := a.router.PathPrefix("/api").Subrouter()
	protected.Use(a.authMiddleware, a.participantMiddleware)

	protected.HandleFunc("/me", a.handleMe).Methods("GET")
	protected.HandleFunc("/me/display-name", a.handleUpdateDisplayName).Methods("PUT")
	protected.HandleFunc("/participants", a.handleListParticipants).Methods("GET")

	protected.HandleFunc("/entries", a.handleCreateEntry).Methods("POST")
	protected.HandleFunc("/entries/{owner}/{created_at}", a.handleUpdateEntry).Methods("PATCH")
	protected.HandleFunc("/entries/{owner}/{created_at}", a.handleDeleteEntry).Methods("DELETE")

	protected.HandleFunc("/months/{month}/summary", a.handleMonthlySummary).Methods("GET")
	protected.HandleFunc("/months/{month}/categories", a.handleCategorySummary).Methods("GET")
	protected.HandleFunc("/months/{month}/participants/{id}", a.handleParticipantDetail).Methods("GET")
	protected.HandleFunc("/months/{month}/settlements", a.handleListSettlements).Methods("GET")
	protected.HandleFunc("/months/{month}/settlements/{participant}", a.handleGetSettlement).Methods("GET")
	protected.HandleFunc("/months/{month}/settlements/{participant}/complete", a.handleCompleteSettlement).Methods("POST")
	protected.HandleFunc("/months/{month}/settlements/{participant}/cancel", a.handleCancelSettlement).Methods("POST")
	protected.HandleFunc("/settlements", a.handleCreateSettlement).Methods("POST")
}

// Handler returns the router wrapped with CORS.
func (a *API) Handler() http.Handler {
	// When AllowedOrigins is "*", AllowCredentials must be false
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}
	return cors.New(corsOptions).Handler(a.router)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (a *API) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.config.WebBind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", "http://"+a.config.WebBind)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

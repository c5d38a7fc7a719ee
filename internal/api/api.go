// Package api provides the JSON API serving the client side application.
//
// It's the main, monolithic package that wires the storage layer and the
// feed importer up to the public routes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	lru "github.com/hashicorp/golang-lru/v2"

	immoerrs "github.com/CharlT24/social-immo/internal/errors"
	"github.com/CharlT24/social-immo/internal/feed"
	"github.com/CharlT24/social-immo/internal/immo"
)

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("error encoding json response: %s", err)
	}

	return nil
}

// validator is a surface that can validate itself and return an error
// if something is wrong.
type validator interface {
	Validate() error
}

// decodeValid decodes a request and then validates it.
func decodeValid[V validator](r io.Reader) (V, error) {
	var v V
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return v, fmt.Errorf("error decoding request: %w", err)
	}
	if err := v.Validate(); err != nil {
		return v, fmt.Errorf("error validating request: %w", err)
	}

	return v, nil
}

// HandlerFuncE is a modified type of [http.HandlerFunc] that returns an error.
type HandlerFuncE func(w http.ResponseWriter, r *http.Request) error

func (f HandlerFuncE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := f(w, r)
	if err == nil {
		return
	}

	// Either it's already a structured error, or coerce it to one
	sErr := &immoerrs.Error{}
	if !errors.As(err, &sErr) {
		slog.Error("unstructured handler error", "err", err)
		sErr = immoerrs.E(http.StatusInternalServerError, "internal server error")
	}

	if err := writeJSON(w, sErr.Status, sErr); err != nil {
		slog.Error("error writing response", "error", err)
	}
}

// errRouter is a newtype around a mux router that allows attaching handlers that return errors.
type errRouter struct {
	*mux.Router
}

func (r errRouter) HandleFuncE(path string, f HandlerFuncE) *mux.Route {
	return r.Handle(path, f)
}

// ImportRunner triggers a batch import of the configured feed.
type ImportRunner interface {
	Run(ctx context.Context, src string) (feed.Result, error)
}

type (
	// Server handles the public browse/filter routes, the social routes,
	// and the staff dashboard.
	Server struct {
		*http.Server

		repo       immo.Repository
		importer   ImportRunner
		feedSource string

		// Photo payloads per listing reference; rebuilt after imports.
		photoCache *lru.Cache[string, []PhotoResp]

		secureCookie *securecookie.SecureCookie
		httpsCookies bool // Whether or not HTTPS should be used for cookies
	}

	ServerConfig struct {
		Port           int
		CookieHashKey  []byte
		CookieBlockKey []byte
		HttpsCookies   bool
		CorsHeader     string
		FeedSource     string
	}
)

func NewServer(config ServerConfig, repo immo.Repository, importer ImportRunner) *Server {
	var (
		r        = errRouter{Router: mux.NewRouter()}
		cache, _ = lru.New[string, []PhotoResp](1024)
	)

	srvr := Server{
		repo:         repo,
		importer:     importer,
		feedSource:   config.FeedSource,
		photoCache:   cache,
		secureCookie: securecookie.New(config.CookieHashKey, config.CookieBlockKey),
		httpsCookies: config.HttpsCookies,
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second, // Imports run inside a request
			Handler: handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsHeader}),
				handlers.AllowCredentials(),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type"}),
			)(r),
		},
	}

	r.Use(accessLogMiddleware) // Log everything
	r.HandleFuncE("/api/viewer", srvr.handleViewer).Methods(http.MethodGet)
	r.HandleFuncE("/api/signup", srvr.postSignup).Methods(http.MethodPost)
	r.HandleFuncE("/api/login", srvr.postLogin).Methods(http.MethodPost)
	r.HandleFuncE("/api/logout", srvr.getLogout).Methods(http.MethodGet)

	// Public browsing
	r.HandleFuncE("/api/listings", srvr.getListings).Methods(http.MethodGet)
	r.HandleFuncE("/api/listings/{reference}", srvr.getListing).Methods(http.MethodGet)

	authed := errRouter{Router: r.NewRoute().Subrouter()}
	authed.Use(requireSessionMiddleware(srvr.secureCookie))

	// Social: comments and favorites
	authed.HandleFuncE("/api/listings/{reference}/comments", srvr.postComment).Methods(http.MethodPost)
	authed.HandleFuncE("/api/toggle-favorite", srvr.postToggleFavorite).Methods(http.MethodPost)

	// Staff dashboard
	authed.HandleFuncE("/api/dashboard", srvr.getDashboard).Methods(http.MethodGet)
	authed.HandleFuncE("/api/dashboard/import", srvr.postRunImport).Methods(http.MethodPost)

	slog.Debug("configured api server", "port", config.Port)

	return &srvr
}

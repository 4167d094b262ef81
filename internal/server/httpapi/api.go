// Package httpapi serves the browser-facing HTTP surface: health, the websocket change
// feed and board media.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/media"
	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/realtime"
	"github.com/and161185/brainboard/internal/service"
)

// Members checks board roles.
type Members interface {
	Require(ctx context.Context, userID, boardID uuid.UUID, min model.Role) (model.Role, error)
}

// Feed hands out board subscriptions.
type Feed interface {
	Subscribe(boardID uuid.UUID, f realtime.Filter) *realtime.Subscription
}

// Config of New. Media routes are not mounted when Media is nil.
type Config struct {
	SignKey      []byte
	Members      Members
	Feed         Feed
	Media        *media.Store
	Logger       *zap.Logger
	WriteTimeout time.Duration
	PingInterval time.Duration
	// CheckOrigin of the websocket upgrade; nil allows same-origin requests only.
	CheckOrigin func(r *http.Request) bool
}

// API holds the HTTP handlers.
type API struct {
	cfg      Config
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func New(cfg Config) *API {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &API{
		cfg: cfg,
		log: cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// Handler builds the router.
//
//	GET  /healthz
//	GET  /v1/boards/{id}/feed           websocket change feed (viewer)
//	POST /v1/boards/{id}/media/{name}   upload (editor)
//	GET  /media/{path}                  public object download
func (a *API) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/boards/{id}/feed", a.handleFeed).Methods(http.MethodGet)
	if a.cfg.Media != nil {
		v1.HandleFunc("/boards/{id}/media/{name}", a.handleUpload).Methods(http.MethodPost, http.MethodPut)
		r.PathPrefix("/media/").HandlerFunc(a.handleDownload).Methods(http.MethodGet, http.MethodHead)
	}
	return r
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authorize resolves the caller and checks their role on the board in the route.
func (a *API) authorize(r *http.Request, min model.Role) (uuid.UUID, uuid.UUID, error) {
	boardID, err := uuid.FromString(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, uuid.Nil, errs.ErrInvalidArgument
	}
	tok := bearerToken(r)
	if tok == "" {
		return uuid.Nil, uuid.Nil, errs.ErrUnauthorized
	}
	uid, err := service.ParseAccessToken(a.cfg.SignKey, tok)
	if err != nil {
		return uuid.Nil, uuid.Nil, errs.ErrUnauthorized
	}
	if _, err := a.cfg.Members.Require(r.Context(), uid, boardID, min); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return uid, boardID, nil
}

// bearerToken reads "Authorization: Bearer <JWT>" or, for browsers that cannot set
// headers on a websocket upgrade, the access_token query parameter.
func bearerToken(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("Authorization")); len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return r.URL.Query().Get("access_token")
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}

// respondErr maps domain errors to HTTP statuses.
func (a *API) respondErr(w http.ResponseWriter, op string, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrInvalidArgument):
		code = http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	case errors.Is(err, errs.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, media.ErrTooLarge):
		code = http.StatusRequestEntityTooLarge
	case errors.Is(err, errs.ErrUnavailable):
		code = http.StatusServiceUnavailable
	}
	if code == http.StatusInternalServerError {
		a.log.Error("http request failed", zap.String("op", op), zap.Error(err))
		respondError(w, code, "internal error")
		return
	}
	respondError(w, code, err.Error())
}

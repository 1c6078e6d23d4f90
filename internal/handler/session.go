package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kidsdesign/storefront/internal/catalog"
	"github.com/kidsdesign/storefront/internal/composer"
	"github.com/kidsdesign/storefront/internal/session"
	apperrors "github.com/kidsdesign/storefront/pkg/errors"
	"github.com/kidsdesign/storefront/pkg/httputil"
	"github.com/kidsdesign/storefront/pkg/logger"
	"github.com/kidsdesign/storefront/pkg/validator"
)

func init() {
	err := validator.RegisterString("sortkey", func(s string) bool {
		_, err := catalog.ParseSort(s)
		return err == nil
	})
	if err != nil {
		panic(err)
	}
}

// SessionHandler serves long-lived category page sessions.
type SessionHandler struct {
	sessions *session.Manager
	timeout  time.Duration
	logger   *slog.Logger
}

// NewSessionHandler creates a session handler. timeout bounds ?wait=true.
func NewSessionHandler(sessions *session.Manager, timeout time.Duration, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		timeout:  timeout,
		logger:   logger,
	}
}

// --- Request DTOs ---

// CreateSessionRequest is the JSON request body for mounting a page.
type CreateSessionRequest struct {
	Location string `json:"location" validate:"required,startswith=/,max=2048"`
}

// ChangePageRequest is the JSON request body for a page change.
type ChangePageRequest struct {
	Page int `json:"page" validate:"required,gte=1"`
}

// ChangeSortRequest is the JSON request body for a sort change.
type ChangeSortRequest struct {
	Sort string `json:"sort" validate:"required,sortkey"`
}

// NavigateRequest is the JSON request body for moving a session to another
// category page.
type NavigateRequest struct {
	Location string `json:"location" validate:"required,startswith=/,max=2048"`
}

// --- Handlers ---

// CreateSession handles POST /api/v1/catalog/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	s, err := h.sessions.Create(r.Context(), req.Location)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.render(w, r, s, http.StatusCreated)
}

// GetSession handles GET /api/v1/catalog/sessions/{sid}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.render(w, r, s, http.StatusOK)
}

// ChangePage handles PUT /api/v1/catalog/sessions/{sid}/page
func (h *SessionHandler) ChangePage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req ChangePageRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if err := s.Composer.OnPageChange(req.Page); err != nil {
		h.writeComposerError(w, r, err)
		return
	}
	h.render(w, r, s, http.StatusOK)
}

// ChangeSort handles PUT /api/v1/catalog/sessions/{sid}/sort
func (h *SessionHandler) ChangeSort(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req ChangeSortRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	criterion, err := catalog.ParseSort(req.Sort)
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
		return
	}
	s.Composer.OnSortChange(criterion)
	h.render(w, r, s, http.StatusOK)
}

// Navigate handles PUT /api/v1/catalog/sessions/{sid}/location
func (h *SessionHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req NavigateRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if err := s.Composer.Navigate(req.Location); err != nil {
		h.writeComposerError(w, r, err)
		return
	}
	h.render(w, r, s, http.StatusOK)
}

// SaveProduct handles PUT /api/v1/catalog/sessions/{sid}/saved/{productId}
func (h *SessionHandler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	h.setSaved(w, r, true)
}

// UnsaveProduct handles DELETE /api/v1/catalog/sessions/{sid}/saved/{productId}
func (h *SessionHandler) UnsaveProduct(w http.ResponseWriter, r *http.Request) {
	h.setSaved(w, r, false)
}

// DeleteSession handles DELETE /api/v1/catalog/sessions/{sid}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), chi.URLParam(r, "sid")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) setSaved(w http.ResponseWriter, r *http.Request, saved bool) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	productID, ok := httputil.ParseID(w, "product id", chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	if err := h.sessions.SetSaved(r.Context(), s, productID, saved); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.render(w, r, s, http.StatusOK)
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sid"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return nil, false
	}
	return s, true
}

// render writes the session's current view. With ?wait=true it first waits
// for the view to settle, returning whatever it has once the timeout passes.
func (h *SessionHandler) render(w http.ResponseWriter, r *http.Request, s *session.Session, status int) {
	v := s.Composer.View()
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		var err error
		v, err = s.Composer.Wait(ctx)
		switch {
		case errors.Is(err, composer.ErrUnmounted):
			httputil.WriteError(w, r, apperrors.NotFound("catalog session", s.ID), h.logger)
			return
		case err != nil && errors.Is(r.Context().Err(), context.Canceled):
			return
		}
	}

	resp := newPageResponse(v, s.Composer.Location().URL())
	resp.SessionID = s.ID
	httputil.WriteJSON(w, status, httputil.Response{Data: resp})
}

// writeComposerError reports a rejected navigation. A composer unmounted
// under the request (evicted or deleted concurrently) reads as a missing
// session.
func (h *SessionHandler) writeComposerError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, composer.ErrUnmounted) {
		err = apperrors.NotFound("catalog session", chi.URLParam(r, "sid"))
	} else {
		logger.FromContext(r.Context()).DebugContext(r.Context(), "navigation rejected",
			slog.String("error", err.Error()),
		)
		err = apperrors.InvalidInput(err.Error())
	}
	httputil.WriteError(w, r, err, h.logger)
}

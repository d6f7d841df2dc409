package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"shortlink-bot/internal/domain"
	"shortlink-bot/internal/repository"
	"shortlink-bot/internal/service"
	"shortlink-bot/pkg/logger"
	urlvalidator "shortlink-bot/pkg/validator"

	"github.com/go-playground/validator/v10"
)

// maxSnapshotSize caps uploaded snapshot archives
const maxSnapshotSize = 20 << 20

// Shortener is the part of service.Shortener the API exposes
type Shortener interface {
	Shorten(ctx context.Context, rawURL string, owner domain.Owner) (*domain.Record, error)
	RecordClick(ctx context.Context, shortURL, source string) (*domain.Record, error)
	RecordOwnerClick(ctx context.Context, ownerID int64, shortURL, source string) (*domain.Record, error)
	ProviderStatus() []service.ProviderStatus
	Fallbacks() int64
}

// Assembler is the part of service.Assembler the API exposes
type Assembler interface {
	Links(ctx context.Context, ownerID int64) []*domain.Record
	ComputeStats(ctx context.Context, ownerID int64) domain.Stats
	ExportSnapshot(ctx context.Context, ownerID *int64) (*service.Snapshot, error)
	ImportSnapshot(ctx context.Context, ownerID int64, blob []byte) (service.ImportResult, error)
}

// Pinger checks a backing dependency for readiness
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the operator HTTP API
type Handler struct {
	shortener Shortener
	assembler Assembler
	store     Pinger
	logger    *logger.Logger
	validate  *validator.Validate
}

func NewHandler(shortener Shortener, assembler Assembler, store Pinger, log *logger.Logger) *Handler {
	return &Handler{
		shortener: shortener,
		assembler: assembler,
		store:     store,
		logger:    log,
		validate:  newValidator(),
	}
}

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Routes registers every API route on mux
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/urls", h.CreateURL)
	mux.HandleFunc("POST /api/v1/links/click", h.RecordClick)
	mux.HandleFunc("GET /api/v1/owners/{id}/links", h.ListLinks)
	mux.HandleFunc("GET /api/v1/owners/{id}/stats", h.GetStats)
	mux.HandleFunc("GET /api/v1/owners/{id}/export", h.ExportSnapshot)
	mux.HandleFunc("POST /api/v1/owners/{id}/import", h.ImportSnapshot)
	mux.HandleFunc("GET /api/v1/providers", h.ListProviders)
	mux.HandleFunc("GET /api/v1/openapi.json", ServeOpenAPISpec)
	mux.HandleFunc("GET /health/live", h.HealthCheck)
	mux.HandleFunc("GET /health/ready", h.ReadinessCheck)
}

type CreateURLRequest struct {
	URL       string `json:"url" validate:"required"`
	OwnerID   int64  `json:"owner_id" validate:"required,gt=0"`
	OwnerName string `json:"owner_name" validate:"max=64"`
}

type LinkResponse struct {
	ID            string     `json:"id"`
	OwnerID       int64      `json:"owner_id"`
	OriginalURL   string     `json:"original_url"`
	ShortURL      string     `json:"short_url"`
	Provider      string     `json:"provider"`
	Clicks        int64      `json:"clicks"`
	Persisted     bool       `json:"persisted"`
	CreatedAt     time.Time  `json:"created_at"`
	LastClickedAt *time.Time `json:"last_clicked_at,omitempty"`
}

// ClickRequest credits the newest record with ShortURL, or only OwnerID's
// record when OwnerID is set.
type ClickRequest struct {
	ShortURL string `json:"short_url" validate:"required"`
	OwnerID  int64  `json:"owner_id,omitempty" validate:"omitempty,gt=0"`
}

type ProvidersResponse struct {
	Providers []service.ProviderStatus `json:"providers"`
	Fallbacks int64                    `json:"fallbacks"`
}

func toLinkResponse(rec *domain.Record) LinkResponse {
	return LinkResponse{
		ID:            rec.ID,
		OwnerID:       rec.OwnerID,
		OriginalURL:   rec.OriginalURL,
		ShortURL:      rec.ShortURL,
		Provider:      rec.Provider,
		Clicks:        rec.Clicks,
		Persisted:     rec.IsPersisted(),
		CreatedAt:     rec.CreatedAt,
		LastClickedAt: rec.LastClickedAt,
	}
}

// CreateURL handles POST /api/v1/urls
func (h *Handler) CreateURL(w http.ResponseWriter, r *http.Request) {
	var req CreateURLRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.shortener.Shorten(r.Context(), req.URL, domain.Owner{ID: req.OwnerID, Name: req.OwnerName})
	if err != nil {
		h.respondServiceError(w, r, "create url", err)
		return
	}

	respondSuccess(w, http.StatusCreated, toLinkResponse(rec), "URL shortened successfully")
}

// RecordClick handles POST /api/v1/links/click
func (h *Handler) RecordClick(w http.ResponseWriter, r *http.Request) {
	var req ClickRequest
	if !h.decode(w, r, &req) {
		return
	}

	var rec *domain.Record
	var err error
	if req.OwnerID != 0 {
		rec, err = h.shortener.RecordOwnerClick(r.Context(), req.OwnerID, req.ShortURL, domain.SourceAPI)
	} else {
		rec, err = h.shortener.RecordClick(r.Context(), req.ShortURL, domain.SourceAPI)
	}
	if err != nil {
		h.respondServiceError(w, r, "record click", err)
		return
	}

	respondSuccess(w, http.StatusOK, toLinkResponse(rec), "")
}

// ListLinks handles GET /api/v1/owners/{id}/links
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerIDFromPath(w, r)
	if !ok {
		return
	}

	records := h.assembler.Links(r.Context(), ownerID)
	links := make([]LinkResponse, 0, len(records))
	for _, rec := range records {
		links = append(links, toLinkResponse(rec))
	}

	respondSuccess(w, http.StatusOK, links, "")
}

// GetStats handles GET /api/v1/owners/{id}/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerIDFromPath(w, r)
	if !ok {
		return
	}

	respondSuccess(w, http.StatusOK, h.assembler.ComputeStats(r.Context(), ownerID), "")
}

// ExportSnapshot handles GET /api/v1/owners/{id}/export.
// The id "all" exports every owner.
func (h *Handler) ExportSnapshot(w http.ResponseWriter, r *http.Request) {
	var scope *int64
	if r.PathValue("id") != service.ScopeAll {
		ownerID, ok := ownerIDFromPath(w, r)
		if !ok {
			return
		}
		scope = &ownerID
	}

	snap, err := h.assembler.ExportSnapshot(r.Context(), scope)
	if err != nil {
		h.respondServiceError(w, r, "export snapshot", err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", snap.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(snap.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(snap.Data)
}

// ImportSnapshot handles POST /api/v1/owners/{id}/import with the zip as body
func (h *Handler) ImportSnapshot(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerIDFromPath(w, r)
	if !ok {
		return
	}

	blob, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSnapshotSize))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "Snapshot is too large")
		return
	}
	if len(blob) == 0 {
		respondError(w, http.StatusBadRequest, "Snapshot body is required")
		return
	}

	result, err := h.assembler.ImportSnapshot(r.Context(), ownerID, blob)
	if err != nil {
		h.respondServiceError(w, r, "import snapshot", err)
		return
	}

	respondSuccess(w, http.StatusOK, result, "Snapshot restored")
}

// ListProviders handles GET /api/v1/providers
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, ProvidersResponse{
		Providers: h.shortener.ProviderStatus(),
		Fallbacks: h.shortener.Fallbacks(),
	}, "")
}

// HealthCheck handles GET /health/live
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /health/ready
func (h *Handler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("Readiness check failed", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"store":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondValidationError(w, err)
		return false
	}
	return true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log := h.logger.WithContext(r.Context()).WithFields(map[string]interface{}{"operation": op})

	switch {
	case urlvalidator.IsValidationError(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidSnapshot):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		respondError(w, http.StatusNotFound, "Link not found")
	case errors.Is(err, repository.ErrStoreUnavailable), errors.Is(err, service.ErrNotPersisted):
		log.Error("Store unavailable", "error", err)
		respondError(w, http.StatusServiceUnavailable, "Storage is temporarily unavailable")
	default:
		log.Error("Request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func ownerIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Owner id must be a positive integer")
		return 0, false
	}
	return id, true
}

package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// maxUploadMemory bounds the multipart form buffer; larger files spill to disk
const maxUploadMemory = 32 << 20

// AssetHandler handles HTTP requests for assets using pkg/simpleasset
type AssetHandler struct {
	service      simpleasset.Service
	logger       *slog.Logger
	signatureTTL int64
	cacheMaxAge  int // minutes

	// AuthCheck gates assets flagged auth-only. When nil those assets are
	// served as-is, on the assumption that upstream middleware already
	// authenticated the request.
	AuthCheck func(r *http.Request) bool
}

// HandlerOption configures an AssetHandler
type HandlerOption func(*AssetHandler)

// WithLogger sets the structured logger for the handler
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *AssetHandler) {
		h.logger = logger
	}
}

// WithSignatureTTL sets the validation window for signed asset links, in seconds
func WithSignatureTTL(seconds int64) HandlerOption {
	return func(h *AssetHandler) {
		h.signatureTTL = seconds
	}
}

// WithCacheMaxAge sets the browser cache lifetime for served assets, in minutes
func WithCacheMaxAge(minutes int) HandlerOption {
	return func(h *AssetHandler) {
		h.cacheMaxAge = minutes
	}
}

// WithAuthCheck sets the authorization gate for auth-only assets
func WithAuthCheck(check func(r *http.Request) bool) HandlerOption {
	return func(h *AssetHandler) {
		h.AuthCheck = check
	}
}

// NewAssetHandler creates a new asset handler
func NewAssetHandler(service simpleasset.Service, opts ...HandlerOption) *AssetHandler {
	h := &AssetHandler{
		service:      service,
		logger:       slog.Default(),
		signatureTTL: simpleasset.DefaultSignatureTTL,
		cacheMaxAge:  1440,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the management routes for assets: uploads and statistics.
// These typically sit behind an API key.
func (h *AssetHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/files", h.UploadFiles)
	r.Post("/base64", h.UploadBase64)
	r.Post("/links", h.UploadLinks)
	r.Get("/stats", h.Stats)

	return r
}

// ServeRoutes returns the public serving route. Access control happens per
// asset: signed link, public flag or auth check.
func (h *AssetHandler) ServeRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{asset}", h.ServeAsset)

	return r
}

// AssetResponse is the response body for an asset
type AssetResponse struct {
	ID        string    `json:"id"`
	Link      string    `json:"link"`
	Mime      string    `json:"mime"`
	Size      int64     `json:"size"`
	FileName  string    `json:"file_name,omitempty"`
	Counter   int       `json:"counter"`
	CreatedAt time.Time `json:"created_at"`
}

// UploadBase64Request is the request body for base64 uploads, keyed by field
type UploadBase64Request map[string][]string

// UploadLinksRequest is the request body for remote-URL uploads, keyed by field
type UploadLinksRequest map[string][]string

func (h *AssetHandler) assetResponse(a *simpleasset.Asset) AssetResponse {
	return AssetResponse{
		ID:        a.ID.String(),
		Link:      h.service.Signer().Issue(a, true, "", time.Now()),
		Mime:      a.Mime,
		Size:      a.Size,
		FileName:  a.FileName(),
		Counter:   a.Counter,
		CreatedAt: a.CreatedAt,
	}
}

func (h *AssetHandler) fieldsResponse(fields map[string][]*simpleasset.Asset) map[string][]AssetResponse {
	out := make(map[string][]AssetResponse, len(fields))
	for key, assets := range fields {
		responses := make([]AssetResponse, 0, len(assets))
		for _, a := range assets {
			responses = append(responses, h.assetResponse(a))
		}
		out[key] = responses
	}
	return out
}

// UploadFiles ingests multipart file uploads, one field per form key
func (h *AssetHandler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	fields := make(map[string][]simpleasset.UploadedFile)
	for key, headers := range r.MultipartForm.File {
		for _, header := range headers {
			file, err := header.Open()
			if err != nil {
				h.logger.Error("failed to open uploaded file", "field", key, "err", err)
				continue
			}
			content, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				h.logger.Error("failed to read uploaded file", "field", key, "err", err)
				continue
			}

			fields[key] = append(fields[key], simpleasset.UploadedFile{
				FileName:  header.Filename,
				MimeType:  header.Header.Get("Content-Type"),
				Extension: extensionOf(header.Filename),
				Content:   content,
				Size:      header.Size,
			})
		}
	}

	result, err := h.service.IngestFiles(r.Context(), fields)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.fieldsResponse(result))
}

// UploadBase64 ingests base64 payloads, one field per JSON key. Unlike file
// and link uploads, a rejected payload fails the whole request.
func (h *AssetHandler) UploadBase64(w http.ResponseWriter, r *http.Request) {
	var req UploadBase64Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.IngestBase64(r.Context(), req, nil)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.fieldsResponse(result))
}

// UploadLinks ingests remote URLs, one field per JSON key
func (h *AssetHandler) UploadLinks(w http.ResponseWriter, r *http.Request) {
	var req UploadLinksRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.IngestRemote(r.Context(), req, nil)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.fieldsResponse(result))
}

// ServeAsset streams an asset's content. Assets that are neither public nor
// auth-gated require a valid signed link.
func (h *AssetHandler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "asset")

	rawID, _, ok := splitAssetName(name)
	if !ok {
		http.Error(w, "asset not found", http.StatusNotFound)
		return
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		http.Error(w, "asset not found", http.StatusNotFound)
		return
	}

	asset, err := h.service.GetAsset(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	switch {
	case asset.IsPublic():
		// no gate
	case asset.IsAuth():
		if h.AuthCheck != nil && !h.AuthCheck(r) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	default:
		token := name
		if r.URL.RawQuery != "" {
			token = name + "?" + r.URL.RawQuery
		}
		if !h.service.Signer().Validate(token, "", h.signatureTTL, time.Now()) {
			http.Error(w, "invalid or expired link", http.StatusForbidden)
			return
		}
	}

	reader, info, err := h.service.GetAssetContent(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	defer reader.Close()

	fileName := info.FileName
	if fileName == "" {
		fileName = name
	}

	maxAge := h.cacheMaxAge * 60
	w.Header().Set("Content-Type", info.Mime)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", fileName))
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, s-maxage=%d", maxAge, maxAge))

	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Error("failed to stream asset", "asset_id", id, "err", err)
	}
}

// StatsResponse is the response body for storage statistics
type StatsResponse struct {
	TotalCount int64 `json:"total_count"`
	TotalSize  int64 `json:"total_size"`
}

// Stats reports asset count and total stored bytes
func (h *AssetHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, StatsResponse{
		TotalCount: stats.TotalCount,
		TotalSize:  stats.TotalSize,
	})
}

// renderError maps service errors onto HTTP status codes
func (h *AssetHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *simpleasset.ValidationError
	var integrityErr *simpleasset.IntegrityError

	switch {
	case errors.As(err, &validationErr):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, map[string]string{
			"error": validationErr.Error(),
			"field": validationErr.Field,
		})
	case errors.Is(err, simpleasset.ErrAssetNotFound):
		http.Error(w, "asset not found", http.StatusNotFound)
	case errors.As(err, &integrityErr):
		h.logger.Error("asset integrity violation", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	default:
		h.logger.Error("asset request failed", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// extensionOf returns the lowercase extension of a file name, without the dot
func extensionOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return strings.ToLower(name[i+1:])
		}
	}
	return ""
}

// splitAssetName breaks `<id>.<ext>` at the last dot
func splitAssetName(name string) (id, ext string, ok bool) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			if i == 0 || i == len(name)-1 {
				return "", "", false
			}
			return name[:i], name[i+1:], true
		}
	}
	return "", "", false
}

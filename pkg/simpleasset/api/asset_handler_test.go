package api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/api"
	"github.com/tendant/simple-asset/pkg/simpleasset/repo/memory"
	memorystorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/memory"
)

func setupHandler(t *testing.T, opts ...api.HandlerOption) (simpleasset.Service, http.Handler) {
	t.Helper()

	svc, err := simpleasset.New(
		simpleasset.WithRepository(memory.New()),
		simpleasset.WithBlobStore("memory", memorystorage.New()),
		simpleasset.WithSigner(simpleasset.NewSigner("test-secret")),
	)
	require.NoError(t, err)

	h := api.NewAssetHandler(svc, opts...)
	r := chi.NewRouter()
	r.Mount("/api/v1/assets", h.Routes())
	r.Mount("/assets", h.ServeRoutes())
	return svc, r
}

func ingestPDF(t *testing.T, svc simpleasset.Service) *simpleasset.Asset {
	t.Helper()

	asset, err := svc.Ingest(context.Background(), simpleasset.IngestRequest{
		Content:   []byte("%PDF-1.4 body"),
		MimeType:  "application/pdf",
		Extension: "pdf",
		FileName:  "report.pdf",
	})
	require.NoError(t, err)
	return asset
}

func TestUploadFiles(t *testing.T) {
	_, handler := setupHandler(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("documents", "report.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 body"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assets/files", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var result map[string][]api.AssetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result["documents"], 1)
	assert.Equal(t, "report.pdf", result["documents"][0].FileName)
	assert.NotEmpty(t, result["documents"][0].Link)
}

func TestUploadBase64(t *testing.T) {
	t.Run("accepts a valid payload", func(t *testing.T) {
		_, handler := setupHandler(t)

		payload := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 body"))
		body, err := json.Marshal(map[string][]string{"document": {payload}})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/assets/base64", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("rejects a bad payload with 422", func(t *testing.T) {
		_, handler := setupHandler(t)

		body, err := json.Marshal(map[string][]string{"document": {"!!not base64!!"}})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/assets/base64", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("rejects a non-json body", func(t *testing.T) {
		_, handler := setupHandler(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/assets/base64", bytes.NewReader([]byte("nope")))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServeAsset(t *testing.T) {
	t.Run("valid signed link streams the blob", func(t *testing.T) {
		svc, handler := setupHandler(t)
		asset := ingestPDF(t, svc)

		token := svc.Signer().Issue(asset, true, "", time.Now())

		req := httptest.NewRequest(http.MethodGet, "/assets/"+token, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "report.pdf")
		assert.Contains(t, rec.Header().Get("Cache-Control"), "public")

		content, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-1.4 body"), content)
	})

	t.Run("unsigned link to a gated asset is forbidden", func(t *testing.T) {
		svc, handler := setupHandler(t)
		asset := ingestPDF(t, svc)

		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/assets/%s.pdf", asset.ID), nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("expired link is forbidden", func(t *testing.T) {
		svc, handler := setupHandler(t, api.WithSignatureTTL(3600))
		asset := ingestPDF(t, svc)

		token := svc.Signer().Issue(asset, true, "", time.Now().Add(-3*time.Hour))

		req := httptest.NewRequest(http.MethodGet, "/assets/"+token, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("public asset needs no signature", func(t *testing.T) {
		svc, handler := setupHandler(t)
		asset := ingestPDF(t, svc)
		asset.SetPublic(true)
		require.NoError(t, svc.UpdateAsset(context.Background(), asset))

		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/assets/%s.pdf", asset.ID), nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("auth asset goes through the auth check", func(t *testing.T) {
		denied := api.WithAuthCheck(func(r *http.Request) bool { return false })
		svc, handler := setupHandler(t, denied)

		asset := ingestPDF(t, svc)
		asset.SetAuth(true)
		require.NoError(t, svc.UpdateAsset(context.Background(), asset))

		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/assets/%s.pdf", asset.ID), nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown asset is 404", func(t *testing.T) {
		_, handler := setupHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/assets/0190a7ee-0000-7000-8000-000000000000.pdf", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed name is 404", func(t *testing.T) {
		_, handler := setupHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/assets/garbage", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestStats(t *testing.T) {
	svc, handler := setupHandler(t)
	ingestPDF(t, svc)
	ingestPDF(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assets/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats api.StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.TotalCount)
}

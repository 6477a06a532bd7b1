package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports per-dependency readiness
// @Description Readiness response
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks"`
}

// ExistsResponse answers the filename existence query
// @Description Document existence response
type ExistsResponse struct {
	Exists bool `json:"exists" example:"true"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the database, Redis and the bucket
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK
	for _, check := range s.checks {
		if err := check.Pinger.Ping(ctx); err != nil {
			resp.Checks[check.Name] = err.Error()
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[check.Name] = "ok"
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Document endpoints

// handleUploadDocument godoc
// @Summary      Upload a document
// @Description  Streams the multipart "file" field into object storage, records it and queues it for indexing
// @Tags         Documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "Document"
// @Success      201   {object}  domain.Document
// @Failure      400   {object}  ErrorResponse
// @Failure      413   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /documents [post]
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}

	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart/form-data body")
		return
	}

	// The file part is streamed straight to the service; it is never
	// buffered in memory or spooled to disk.
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			writeError(w, http.StatusBadRequest, `missing "file" field`)
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed multipart body")
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		doc, err := s.docService.Upload(r.Context(), driving.UploadRequest{
			Filename:    part.FileName(),
			ContentType: partContentType(part.Header.Get("Content-Type")),
			Size:        -1,
			Body:        part,
		})
		_ = part.Close()
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit))
				return
			}
			s.writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, doc)
		return
	}
}

// partContentType drops parameters and the generic octet-stream type so
// the service falls back to the filename extension.
func partContentType(header string) string {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil || mediaType == "application/octet-stream" {
		return ""
	}
	return mediaType
}

// handleDocumentExists godoc
// @Summary      Check whether a filename was already ingested
// @Tags         Documents
// @Produce      json
// @Param        filename  query     string  true  "Filename"
// @Success      200       {object}  ExistsResponse
// @Failure      400       {object}  ErrorResponse
// @Router       /documents/exists [get]
func (s *Server) handleDocumentExists(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if strings.TrimSpace(filename) == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	exists, err := s.docService.Exists(r.Context(), filename)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ExistsResponse{Exists: exists})
}

// handleListDocuments godoc
// @Summary      List documents
// @Description  Returns documents, newest first
// @Tags         Documents
// @Produce      json
// @Param        limit   query  int  false  "Page size"
// @Param        offset  query  int  false  "Offset"
// @Success      200     {array}  domain.Document
// @Router       /documents [get]
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	docs, err := s.docService.List(r.Context(), limit, offset)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// handleGetDocument godoc
// @Summary      Get a document
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  domain.Document
// @Failure      404  {object}  ErrorResponse
// @Router       /documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleDownloadDocument godoc
// @Summary      Download a document
// @Description  Streams the stored blob
// @Tags         Documents
// @Produce      octet-stream
// @Param        id   path  string  true  "Document ID"
// @Success      200
// @Failure      404  {object}  ErrorResponse
// @Router       /documents/{id}/download [get]
func (s *Server) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	doc, body, err := s.docService.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer body.Close()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	if doc.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		s.logger.Warn("download interrupted", "document_id", doc.ID, "error", err)
	}
}

// handleDeleteDocument godoc
// @Summary      Delete a document
// @Tags         Documents
// @Param        id   path  string  true  "Document ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Router       /documents/{id} [delete]
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.docService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReindexDocument godoc
// @Summary      Re-trigger indexing
// @Description  Publishes the document notification again
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      202  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /documents/{id}/reindex [post]
func (s *Server) handleReindexDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.docService.Reindex(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, StatusResponse{Status: "queued"})
}

// Google OAuth endpoints

const oauthStateCookie = "infovault_oauth_state"

// handleGoogleLogin godoc
// @Summary      Start Google login
// @Description  Redirects to the Google consent page
// @Tags         OAuth
// @Success      302
// @Router       /google/login [get]
func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create state")
		return
	}
	state := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/google",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.authorizer.AuthCodeURL(state), http.StatusFound)
}

// handleGoogleRedirect godoc
// @Summary      Google login callback
// @Description  Exchanges the authorisation code and stores the token
// @Tags         OAuth
// @Param        code   query  string  true  "Authorisation code"
// @Param        state  query  string  true  "State"
// @Success      200
// @Failure      400  {object}  ErrorResponse
// @Router       /google/redirect [get]
func (s *Server) handleGoogleRedirect(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/google", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code")
		return
	}

	if err := s.authorizer.Exchange(r.Context(), code); err != nil {
		s.logger.Error("oauth exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, "authorization failed")
		return
	}

	s.logger.Info("google account authorised")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "Authorization successful. You can close this window.\n")
}

// writeServiceError maps domain sentinels to status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, http.StatusText(status))
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnsupportedContentType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

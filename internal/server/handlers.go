package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/lepinkainen/cataloger/internal/book"
	"github.com/lepinkainen/cataloger/internal/catalog"
	"github.com/lepinkainen/cataloger/internal/lookup"
	"github.com/lepinkainen/cataloger/internal/session"
)

// maxDescriptionChars caps description length in lookup responses. The
// full text still flows into the catalog CSV; only the JSON preview is cut.
const maxDescriptionChars = 200

type lookupRequest struct {
	ISBNs    []string `json:"isbns"`
	Location string   `json:"location"`
}

type lookupResponse struct {
	SessionID string          `json:"session_id"`
	Summary   session.Summary `json:"summary"`
	Books     []bookView      `json:"books"`
}

// bookView is the JSON shape of a record in the lookup response.
type bookView struct {
	Identifier  string   `json:"identifier"`
	Title       string   `json:"title,omitempty"`
	Author      string   `json:"author,omitempty"`
	Description string   `json:"description,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	PageCount   int      `json:"page_count,omitempty"`
	Price       string   `json:"price,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	SourceUsed  string   `json:"source_used,omitempty"`
	ImageSource string   `json:"image_source,omitempty"`
	Errors      []string `json:"errors,omitempty"`
}

func viewOf(rec *book.Record) bookView {
	return bookView{
		Identifier:  rec.Identifier,
		Title:       rec.Title,
		Author:      rec.Author,
		Description: truncate(rec.Description, maxDescriptionChars),
		Genres:      rec.Genres,
		PageCount:   rec.PageCount,
		Price:       rec.Price,
		ImageURL:    rec.ImageURL,
		SourceUsed:  rec.SourceUsed,
		ImageSource: rec.ImageSource,
		Errors:      rec.Errors,
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	if !s.allowRequest(clientIP(r)) {
		s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	var req lookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("request body exceeds %d bytes", s.config.MaxBodyBytes))
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Location == "" {
		s.writeError(w, http.StatusBadRequest, "location is required")
		return
	}

	books, err := s.orchestrator.Lookup(r.Context(), req.ISBNs)
	if err != nil {
		switch {
		case errors.Is(err, lookup.ErrEmptyBatch), errors.Is(err, lookup.ErrBatchTooLarge):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("Lookup failed", "error", err)
			s.writeError(w, http.StatusInternalServerError, "lookup failed")
		}
		return
	}

	sess, err := s.store.Create(req.Location, books)
	if err != nil {
		if errors.Is(err, session.ErrStoreFull) {
			s.writeError(w, http.StatusServiceUnavailable, "server is busy, try again later")
			return
		}
		s.logger.Error("Session creation failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	views := make([]bookView, len(books))
	for i := range books {
		views[i] = viewOf(&books[i])
	}

	s.writeJSON(w, http.StatusOK, lookupResponse{
		SessionID: sess.ID,
		Summary:   sess.Summary(),
		Books:     views,
	})
}

func (s *Server) handleDownloadCatalog(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromQuery(w, r)
	if !ok {
		return
	}

	data, err := catalog.Bytes(sess.Books, sess.Location)
	if err != nil {
		s.logger.Error("Catalog export failed", "session", sess.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to build catalog")
		return
	}

	serveAttachment(w, "catalog.csv", "text/csv", data)
}

func (s *Server) handleDownloadImages(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromQuery(w, r)
	if !ok {
		return
	}

	data, err := s.packager.ImageZip(r.Context(), sess.Books)
	if err != nil {
		s.logger.Error("Image archive failed", "session", sess.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to build image archive")
		return
	}

	serveAttachment(w, "images.zip", "application/zip", data)
}

func (s *Server) handleDownloadBundle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromQuery(w, r)
	if !ok {
		return
	}

	csvData, err := catalog.Bytes(sess.Books, sess.Location)
	if err != nil {
		s.logger.Error("Catalog export failed", "session", sess.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to build catalog")
		return
	}

	data, err := s.packager.CombinedZip(r.Context(), csvData, sess.Books)
	if err != nil {
		s.logger.Error("Bundle archive failed", "session", sess.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to build bundle")
		return
	}

	serveAttachment(w, "cataloger.zip", "application/zip", data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"active_sessions": s.store.Len(),
	})
}

// sessionFromQuery resolves the session query parameter for the download
// endpoints. Writes the error response itself on failure.
func (s *Server) sessionFromQuery(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.URL.Query().Get("session")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "session parameter is required")
		return nil, false
	}

	sess, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "session not found or expired")
			return nil, false
		}
		s.logger.Error("Session lookup failed", "session", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load session")
		return nil, false
	}
	return sess, true
}

func serveAttachment(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// clientIP extracts the caller's address for per-IP throttling, honoring
// the first X-Forwarded-For entry when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

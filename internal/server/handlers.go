package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ivritype/tirgum/internal/export"
	"github.com/ivritype/tirgum/internal/pdf"
	"github.com/ivritype/tirgum/internal/session"
	"github.com/ivritype/tirgum/internal/utils"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	s.writeJSON(w, http.StatusOK, response)
}

// createSessionHandler ingests uploaded pages and starts processing.
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		s.writeError(w, "failed to parse form data", http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["pages"]
	if len(files) == 0 {
		s.writeError(w, "no pages provided", http.StatusBadRequest)
		return
	}

	inputs, err := s.collectUploads(files)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(inputs) > utils.MaxPagesPerUpload {
		s.writeError(w, fmt.Sprintf("too many pages: %d exceeds limit of %d", len(inputs), utils.MaxPagesPerUpload),
			http.StatusRequestEntityTooLarge)
		return
	}
	uploadSizeBytes.Observe(float64(r.ContentLength))

	mode := session.Mode(s.defaultMode)
	if v := r.FormValue("mode"); v != "" {
		switch v {
		case string(session.ModeSync), string(session.ModeBatch):
			mode = session.Mode(v)
		default:
			s.writeError(w, "invalid mode: "+v, http.StatusBadRequest)
			return
		}
	}
	verify := s.verify
	if v := r.FormValue("verify"); v != "" {
		verify = v == "true" || v == "1"
	}

	sess, err := session.New(inputs, session.Options{
		Mode:        mode,
		Verify:      verify,
		MaxDistance: s.maxDistance,
	})
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.store.Add(sess)
	sessionsTotal.WithLabelValues(string(mode)).Inc()

	s.startProcessing(sess)

	duplicates := 0
	for _, p := range sess.Snapshot() {
		if p.Status == session.StatusDuplicate {
			duplicates++
		}
	}
	s.writeJSON(w, http.StatusCreated, CreateSessionResponse{
		ID:         sess.ID,
		Pages:      sess.PageCount(),
		Duplicates: duplicates,
	})
}

// collectUploads normalizes uploaded files into session inputs. ZIP archives
// and PDFs expand into their contained pages.
func (s *Server) collectUploads(files []*multipart.FileHeader) ([]utils.NamedImage, error) {
	var inputs []utils.NamedImage
	for _, header := range files {
		raw, err := readUpload(header)
		if err != nil {
			return nil, err
		}

		switch strings.ToLower(filepath.Ext(header.Filename)) {
		case ".zip":
			pages, err := utils.ExtractZipImages(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", header.Filename, err)
			}
			inputs = append(inputs, pages...)
		case ".pdf":
			pages, err := extractPDFUpload(header.Filename, raw)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, pages...)
		default:
			if !utils.IsSupportedImage(header.Filename) {
				return nil, fmt.Errorf("unsupported file type: %s", header.Filename)
			}
			png, _, err := utils.NormalizeUpload(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", header.Filename, err)
			}
			inputs = append(inputs, utils.NamedImage{Name: header.Filename, PNG: png})
		}
	}
	return inputs, nil
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", header.Filename, err)
	}
	defer func() { _ = f.Close() }()
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", header.Filename, err)
	}
	return raw, nil
}

// extractPDFUpload spools a PDF upload to disk for pdfcpu, which works on
// file paths.
func extractPDFUpload(name string, raw []byte) ([]utils.NamedImage, error) {
	tmp, err := os.CreateTemp("", "tirgum-upload-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("spool %s: %w", name, err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(raw); err != nil {
		return nil, fmt.Errorf("spool %s: %w", name, err)
	}
	pages, err := pdf.ExtractPageImages(tmp.Name(), "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return pages, nil
}

// startProcessing launches the session's pipeline run in the background.
func (s *Server) startProcessing(sess *session.Session) {
	ctx, cancel := context.WithCancel(context.Background())
	if s.timeoutSec > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), time.Duration(s.timeoutSec)*time.Second)
	}
	s.trackCancel(sess.ID, cancel)

	go func() {
		defer s.dropCancel(sess.ID)
		defer cancel()

		var err error
		if sess.Mode == session.ModeBatch {
			err = s.pipeline.RunBatch(ctx, sess, s.pollInterval)
		} else {
			err = s.pipeline.ProcessSync(ctx, sess)
		}
		if err != nil {
			slog.Error("session processing ended with error", "session", sess.ID, "error", err)
		}
		for status, n := range sess.Stats() {
			pagesProcessedTotal.WithLabelValues(string(status)).Add(float64(n))
		}
	}()
}

// getSessionHandler reports the current state of a session.
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	stats := make(map[string]int)
	for status, n := range sess.Stats() {
		stats[string(status)] = n
	}
	s.writeJSON(w, http.StatusOK, SessionResponse{
		ID:         sess.ID,
		Mode:       sess.Mode,
		Finished:   sess.Finished(),
		Cancelled:  sess.Cancelled(),
		FatalError: sess.FatalErr(),
		Stats:      stats,
		Pages:      sess.Snapshot(),
	})
}

// cancelSessionHandler cancels a session. In-flight results are discarded.
func (s *Server) cancelSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sess.Cancel()
	s.cancelSession(sess.ID)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelled"})
}

// cancelPageHandler cancels a single page, leaving the rest of the session
// running. In-flight results for the page are discarded.
func (s *Server) cancelPageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	idx, err := strconv.Atoi(r.PathValue("idx"))
	if err != nil {
		s.writeError(w, "invalid page index", http.StatusBadRequest)
		return
	}
	if err := sess.CancelPage(idx); err != nil {
		switch {
		case errors.Is(err, session.ErrTerminal):
			s.writeError(w, err.Error(), http.StatusConflict)
		default:
			s.writeError(w, err.Error(), http.StatusNotFound)
		}
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelled"})
}

// exportSessionHandler streams a ZIP archive of completed pages.
func (s *Server) exportSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	pages := sess.CompletedPages()
	if len(pages) == 0 {
		s.writeError(w, "no completed pages to export", http.StatusConflict)
		return
	}

	archive, err := export.Archive(pages)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "translated_"+sess.ID+".zip"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(archive); err != nil {
		slog.Error("failed to stream export archive", "session", sess.ID, "error", err)
	}
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, status int) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}

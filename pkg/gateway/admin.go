package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/earshot/earshot/pkg/archive"
)

// admin wraps a handler with the static bearer token check.
func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header != "Bearer "+s.opts.AdminToken {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
			return
		}
		next(w, r)
	}
}

type chunkInfo struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"lastModified"`
	Metadata     map[string]string `json:"metadata"`
}

// handleAudioStats summarizes the archive namespace.
func (s *Server) handleAudioStats(w http.ResponseWriter, r *http.Request) {
	infos, err := s.opts.Store.List(r.Context(), archive.KeyPrefix)
	if err != nil {
		s.log.Error("archive list failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to list archive"})
		return
	}
	var totalBytes int64
	sessions := make(map[string]struct{})
	for _, info := range infos {
		totalBytes += info.Size
		if id := info.Metadata["sessionid"]; id != "" {
			sessions[id] = struct{}{}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"objects":    len(infos),
		"totalBytes": totalBytes,
		"sessions":   len(sessions),
	})
}

// handleSessionChunks lists the archived chunks of one session.
func (s *Server) handleSessionChunks(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	prefix := archive.KeyPrefix + "session_" + id + "_"
	infos, err := s.opts.Store.List(r.Context(), prefix)
	if err != nil {
		s.log.Error("archive list failed", "session_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to list archive"})
		return
	}
	chunks := make([]chunkInfo, 0, len(infos))
	for _, info := range infos {
		chunks = append(chunks, chunkInfo{
			Key:          info.Key,
			Size:         info.Size,
			LastModified: info.LastModified,
			Metadata:     info.Metadata,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessionId": id, "chunks": chunks})
}

// archiveKey validates that a client-supplied key stays inside the
// archive namespace.
func archiveKey(r *http.Request) (string, bool) {
	key := r.URL.Query().Get("key")
	if key == "" || !strings.HasPrefix(key, archive.KeyPrefix) || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

// handleAudioDownload streams one archived object.
func (s *Server) handleAudioDownload(w http.ResponseWriter, r *http.Request) {
	key, ok := archiveKey(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid key"})
		return
	}
	rc, info, err := s.opts.Store.Get(r.Context(), key)
	if errors.Is(err, os.ErrNotExist) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Not found"})
		return
	}
	if err != nil {
		s.log.Error("archive get failed", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to read object"})
		return
	}
	defer rc.Close()

	ct := info.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, rc)
}

// handleAudioDelete removes one archived object.
func (s *Server) handleAudioDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := archiveKey(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid key"})
		return
	}
	if err := s.opts.Store.Delete(r.Context(), key); err != nil {
		s.log.Error("archive delete failed", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to delete object"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRetention sweeps archived objects older than the requested
// number of days, keyed by their uploadedAt metadata.
func (s *Server) handleRetention(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxAgeDays int `json:"maxAgeDays"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid request body"})
		return
	}
	if req.MaxAgeDays < 1 || req.MaxAgeDays > 365 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "maxAgeDays must be between 1 and 365"})
		return
	}
	deleted, err := archive.Sweep(r.Context(), s.opts.Store, time.Duration(req.MaxAgeDays)*24*time.Hour)
	if err != nil {
		s.log.Error("retention sweep failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Sweep failed", "deleted": deleted})
		return
	}
	s.log.Info("retention sweep completed", "max_age_days", req.MaxAgeDays, "deleted", deleted)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// decodeJSON reads a small JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

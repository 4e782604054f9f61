package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"trackmatch-srv/internal/database"
	"trackmatch-srv/internal/importer"
	"trackmatch-srv/internal/matcher"
	"trackmatch-srv/internal/parser"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxUploadBytes = 32 << 20

/* =========================
   Recovery Middleware
   ========================= */

func RecoveryMiddleware(logger *slog.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic in handler",
					slog.Any("panic", err),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

/* =========================
   Types
   ========================= */

type ImportRequest struct {
	URL          string `json:"url"`
	Type         string `json:"type"`
	PlaylistName string `json:"playlist_name"`
	PlaylistID   *int64 `json:"playlist_id"`
	Icon         string `json:"icon"`
	Color        string `json:"color"`
	MatchingMode string `json:"matching_mode"`
}

// importerFactory builds an importer that reports progress to fn.
type importerFactory func(fn importer.ProgressFunc) (*importer.Importer, error)

type server struct {
	store       *database.Store
	newImporter importerFactory
	sources     map[string]rowSource
	defaultMode string
	logger      *slog.Logger
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/import", RecoveryMiddleware(s.logger, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodOptions {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleImport(w, r)
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

/* =========================
   SSE Helpers
   ========================= */

func setupSSE(w http.ResponseWriter) (http.Flusher, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return flusher, nil
}

func (s *server) sendEvent(w http.ResponseWriter, flusher http.Flusher, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("sse marshal failed", slog.String("error", err.Error()))
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", b)
	flusher.Flush()
}

/* =========================
   Handler
   ========================= */

func (s *server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Auth-Token")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx := r.Context()
	req, source, status, err := s.readRequest(ctx, r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	req.AuthToken = r.Header.Get("X-Auth-Token")
	if req.MatchingMode == "" {
		req.MatchingMode = s.defaultMode
	}

	// The target must be known before the stream starts so a bad id gets a
	// plain 404 instead of an error event.
	if req.PlaylistID != nil {
		p, err := s.store.FindPlaylist(ctx, *req.PlaylistID)
		if err != nil {
			http.Error(w, "Playlist lookup failed", http.StatusInternalServerError)
			return
		}
		if p == nil {
			http.Error(w, "Playlist not found", http.StatusNotFound)
			return
		}
	}

	/* =========================
	   SSE Setup (SAFE POINT)
	   ========================= */

	flusher, err := setupSSE(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	send := func(v any) { s.sendEvent(w, flusher, v) }

	send(map[string]any{
		"status":  "info",
		"message": fmt.Sprintf("Matching %d rows from %s", len(req.Rows), source),
	})

	im, err := s.newImporter(func(index, total int, out matcher.Outcome) {
		send(map[string]any{
			"status": "processing",
			"index":  index + 1,
			"total":  total,
			"result": out,
		})
	})
	if err != nil {
		send(map[string]string{"status": "error", "message": err.Error()})
		return
	}

	res, err := im.Run(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.logger.Info("client disconnected during import")
			return
		}
		send(map[string]string{"status": "error", "message": "Import failed: " + err.Error()})
		return
	}

	send(map[string]any{
		"status": "complete",
		"meta": map[string]any{
			"source_name": source,
			"timestamp":   time.Now().Format(time.RFC3339),
		},
		"result": res,
	})
}

// readRequest decodes either a multipart CSV upload or a JSON streaming
// link into an import request. Failures carry the HTTP status to answer.
func (s *server) readRequest(ctx context.Context, r *http.Request) (importer.Request, string, int, error) {
	contentType := r.Header.Get("Content-Type")

	// ---------- CSV (multipart) ----------
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return importer.Request{}, "", http.StatusBadRequest, errors.New("Invalid multipart form")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return importer.Request{}, "", http.StatusBadRequest, errors.New("Missing file field")
		}
		defer file.Close()

		rows, err := parser.ParseCSV(file)
		if err != nil {
			return importer.Request{}, "", http.StatusBadRequest, fmt.Errorf("CSV parse failed: %w", err)
		}
		if len(rows) == 0 {
			return importer.Request{}, "", http.StatusBadRequest, errors.New("No tracks found")
		}

		req := importer.Request{
			Rows:         rows,
			PlaylistName: r.FormValue("playlist_name"),
			Icon:         r.FormValue("icon"),
			Color:        r.FormValue("color"),
			MatchingMode: r.FormValue("matching_mode"),
		}
		if raw := strings.TrimSpace(r.FormValue("playlist_id")); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return importer.Request{}, "", http.StatusBadRequest, errors.New("Invalid playlist_id")
			}
			req.PlaylistID = &id
		}
		return req, header.Filename, 0, nil
	}

	// ---------- JSON (Spotify / YouTube) ----------
	var body ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return importer.Request{}, "", http.StatusBadRequest, errors.New("Invalid JSON body")
	}

	parsedURL, err := url.Parse(body.URL)
	if err != nil || parsedURL.Host == "" {
		return importer.Request{}, "", http.StatusBadRequest, errors.New("Invalid URL")
	}
	switch body.Type {
	case "spotify":
		if !strings.HasSuffix(parsedURL.Host, "spotify.com") {
			return importer.Request{}, "", http.StatusBadRequest, errors.New("Invalid Spotify URL")
		}
	case "youtube":
		if !strings.Contains(parsedURL.Host, "youtube.com") && !strings.Contains(parsedURL.Host, "youtu.be") {
			return importer.Request{}, "", http.StatusBadRequest, errors.New("Invalid YouTube URL")
		}
	default:
		return importer.Request{}, "", http.StatusBadRequest, errors.New("Unsupported source type")
	}
	src, ok := s.sources[body.Type]
	if !ok {
		return importer.Request{}, "", http.StatusServiceUnavailable, fmt.Errorf("%s import is not configured", body.Type)
	}

	rows, name, err := src.Parse(ctx, body.URL)
	if err != nil {
		return importer.Request{}, "", http.StatusBadGateway, fmt.Errorf("Extraction failed: %w", err)
	}
	if len(rows) == 0 {
		return importer.Request{}, "", http.StatusBadRequest, errors.New("No tracks found")
	}

	playlistName := body.PlaylistName
	if playlistName == "" {
		playlistName = name
	}
	return importer.Request{
		Rows:         rows,
		PlaylistName: playlistName,
		PlaylistID:   body.PlaylistID,
		Icon:         body.Icon,
		Color:        body.Color,
		MatchingMode: body.MatchingMode,
	}, name, 0, nil
}

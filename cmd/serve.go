package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dpgf-extract/internal/extract"
	"github.com/sells-group/dpgf-extract/internal/fetcher"
	"github.com/sells-group/dpgf-extract/internal/resilience"
	"github.com/sells-group/dpgf-extract/internal/store"
	"github.com/sells-group/dpgf-extract/internal/workbook"
)

const maxUploadBytes = 64 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP extraction server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the HTTP API over env.
func newRouter(env *extractEnv, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	h := &handlers{env: env}
	r.Get("/health", h.health)
	r.Post("/extract", h.extract)
	r.Get("/mappings", h.listMappings)
	r.Delete("/mappings/{signature}", h.deleteMapping)
	return r
}

type handlers struct {
	env *extractEnv
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok", "ai": h.env.AI != nil}
	if h.env.AI != nil {
		open := 0
		for _, s := range h.env.AI.BreakerStates() {
			if s == resilience.CircuitOpen {
				open++
			}
		}
		body["open_breakers"] = open
	}
	respondJSON(w, http.StatusOK, body)
}

// extract accepts a multipart upload in the "file" field. An optional "name"
// field overrides the uploaded file name, which drives lot identification.
func (h *handlers) extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	name := filepath.Base(hdr.Filename)
	if n := r.FormValue("name"); n != "" {
		name = n
	}
	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	var payload any
	switch {
	case fetcher.IsZip(name):
		payload, err = h.extractBundle(r.Context(), name, data)
	case workbook.Supported(name):
		payload, err = h.env.Extractor.Extract(r.Context(), extract.Document{Name: name, Data: data})
	default:
		respondError(w, http.StatusUnsupportedMediaType, "expected an .xlsx, .xlsm or .zip file")
		return
	}
	if err != nil {
		if fe, ok := extract.IsFatal(err); ok {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": fe.Err.Error(),
				"kind":  string(fe.Kind),
			})
			return
		}
		zap.L().Error("extract request failed", zap.String("document", name), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "extraction failed")
		return
	}
	respondJSON(w, http.StatusOK, payload)
}

func (h *handlers) extractBundle(ctx context.Context, name string, data []byte) ([]*extract.Result, error) {
	dir, err := os.MkdirTemp("", "dpgf-upload-*")
	if err != nil {
		return nil, eris.Wrap(err, "create upload dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, eris.Wrap(err, "save upload")
	}
	return extractRef(ctx, h.env, path)
}

func (h *handlers) listMappings(w http.ResponseWriter, r *http.Request) {
	ms, err := h.env.Store.ListMappings(r.Context())
	if err != nil {
		zap.L().Error("list mappings", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not list mappings")
		return
	}
	respondJSON(w, http.StatusOK, ms)
}

func (h *handlers) deleteMapping(w http.ResponseWriter, r *http.Request) {
	sig := chi.URLParam(r, "signature")
	if err := h.env.Store.DeleteMapping(r.Context(), sig); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "mapping not found")
			return
		}
		zap.L().Error("delete mapping", zap.String("signature", sig), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not delete mapping")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		respondError(w, http.StatusInternalServerError, "encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

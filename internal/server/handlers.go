package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/conneroisu/wasmreload/internal/assets"
	apperrors "github.com/conneroisu/wasmreload/internal/errors"
	"github.com/conneroisu/wasmreload/internal/version"
)

const contentTypeWasm = "application/wasm"

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeStatic(w, assets.ContentTypeHTML, s.bundle.Index)
}

func (s *Server) handleJS(w http.ResponseWriter, r *http.Request) {
	writeStatic(w, assets.ContentTypeJS, s.bundle.JS)
}

func (s *Server) handleCSS(w http.ResponseWriter, r *http.Request) {
	writeStatic(w, assets.ContentTypeCSS, s.bundle.CSS)
}

func writeStatic(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}

// handleArtifact rebuilds the project on every request. On success the dirty
// flag is cleared, unless a change was seen while the build ran, and the
// artifact served. On failure the flag is left as it was so connected clients
// keep asking.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	gen := s.flag.Generation()

	result, err := s.builder.Build(ctx, s.projectDir)
	if err != nil {
		if ctx.Err() != nil {
			// The client went away; nobody is left to answer.
			return
		}

		s.logger.Error(ctx, err, "Build failed", "project", s.projectDir)

		if s.cfg.Build.ExitOnFailure {
			http.Error(w, "build failed", http.StatusInternalServerError)
			s.fatal(err)
			return
		}

		s.renderBuildError(w, r, err)
		return
	}

	if !s.flag.ClearIf(gen) {
		s.logger.Debug(ctx, "Sources changed during the build, keeping the dirty flag")
	}

	w.Header().Set("Content-Type", contentTypeWasm)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(result.Data)
}

func (s *Server) renderBuildError(w http.ResponseWriter, r *http.Request, err error) {
	page := BuildErrorPage{
		Project: s.projectDir,
		Message: err.Error(),
		Output:  apperrors.BuildOutput(err),
	}
	page.Diagnostics = apperrors.NewErrorParser().ParseError(page.Output)

	w.Header().Set("Cache-Control", "no-store")
	page.Handler(http.StatusInternalServerError).ServeHTTP(w, r)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string       `json:"status"`
	Version      string       `json:"version"`
	Project      string       `json:"project"`
	Uptime       string       `json:"uptime"`
	Dirty        bool         `json:"dirty"`
	LiveReload   bool         `json:"live_reload"`
	TrackedFiles int          `json:"tracked_files"`
	Build        *BuildHealth `json:"build,omitempty"`
}

// BuildHealth summarises build outcomes.
type BuildHealth struct {
	Total           int64      `json:"total"`
	Failed          int64      `json:"failed"`
	Shared          int64      `json:"shared"`
	SuccessRate     float64    `json:"success_rate"`
	AverageDuration string     `json:"average_duration"`
	LastBuild       *time.Time `json:"last_build,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "healthy",
		Version:    version.Short(),
		Project:    s.projectDir,
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Dirty:      s.flag.IsSet(),
		LiveReload: s.cfg.Development.LiveReload,
	}
	if s.store != nil {
		resp.TrackedFiles = s.store.Len()
	}

	if s.stats != nil {
		snap := s.stats.GetSnapshot()
		bh := &BuildHealth{
			Total:           snap.TotalBuilds,
			Failed:          snap.FailedBuilds,
			Shared:          snap.SharedResults,
			SuccessRate:     s.stats.SuccessRate(),
			AverageDuration: snap.AverageDuration.String(),
			LastError:       snap.LastError,
		}
		if !snap.LastBuild.IsZero() {
			bh.LastBuild = &snap.LastBuild
		}
		if snap.LastError != "" {
			resp.Status = "degraded"
		}
		resp.Build = bh
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}

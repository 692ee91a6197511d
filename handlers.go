package main

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/kwv/mlswarp/warp"
)

// maxJobBytes bounds the size of a POST /deform body
const maxJobBytes = 1 << 20

// processFunc runs one warp job against the service's source image
type processFunc func(ctx context.Context, job *warp.Job) (*warp.Result, error)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(stateTracker *warp.StateTracker, process processFunc) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		completed, failed, lastError := stateTracker.Counts()
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			HasResult bool      `json:"hasResult"`
			Completed int       `json:"completed"`
			Failed    int       `json:"failed"`
			LastError string    `json:"lastError,omitempty"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			HasResult: stateTracker.HasResult(),
			Completed: completed,
			Failed:    failed,
			LastError: lastError,
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding health status: %v", err)
		}
	})

	// Warp on demand; the body is a JSON job, the response the warped PNG
	mux.HandleFunc("/deform", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxJobBytes))
		if err != nil {
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}

		job, err := warp.DecodeJob(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		log.Printf("[HTTP] /deform job %s (%d control points) from %s", job.ID, len(job.ControlPoints), r.RemoteAddr)
		result, err := process(r.Context(), job)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, warp.ErrInvalidInput) {
				status = http.StatusBadRequest
			}
			http.Error(w, err.Error(), status)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Job-ID", result.JobID)
		if err := png.Encode(w, result.Image); err != nil {
			log.Printf("Error encoding warped PNG: %v", err)
		}
	})

	// Latest warped image
	mux.HandleFunc("/warped.png", func(w http.ResponseWriter, r *http.Request) {
		result := stateTracker.Latest()
		if result == nil {
			http.Error(w, "No warp result available", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := png.Encode(w, result.Image); err != nil {
			log.Printf("Error encoding warped PNG: %v", err)
		}
	})

	// Control point overlay for the latest result
	mux.HandleFunc("/overlay.svg", func(w http.ResponseWriter, r *http.Request) {
		result := stateTracker.Latest()
		if result == nil {
			http.Error(w, "No warp result available", http.StatusServiceUnavailable)
			return
		}

		renderer := warp.NewOverlayRenderer(result.Stats.Rows, result.Stats.Cols, result.Pairs)
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.RenderToSVG(w); err != nil {
			log.Printf("Error rendering overlay SVG: %v", err)
		}
	})

	// Statistics for the latest result
	mux.HandleFunc("/stats.json", func(w http.ResponseWriter, r *http.Request) {
		result := stateTracker.Latest()
		if result == nil {
			http.Error(w, "No warp result available", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			log.Printf("Error encoding stats: %v", err)
		}
	})

	return mux
}

package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"snapspend/internal/export"
	"snapspend/internal/queue"
	"snapspend/internal/receipt"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

var (
	specialChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	multiSpace   = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and
// truncating length; phone-generated names can be long and strange.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = specialChars.ReplaceAllString(base, "")
	base = multiSpace.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// handleUpload accepts one or more files, writes each to the local uploads
// area under a generated unique name, and enqueues one job per file. It
// answers as soon as every job is queued; processing happens asynchronously.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		corsError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		corsError(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	type uploadResponse struct {
		Message string `json:"message"`
	}
	responses := make([]uploadResponse, 0, len(files))

	for _, header := range files {
		src, err := header.Open()
		if err != nil {
			corsError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
			return
		}

		fileName := fmt.Sprintf("%d_%s", time.Now().UnixNano(), sanitizeFilename(header.Filename))
		filePath := filepath.Join(s.uploadsDir, fileName)

		dst, err := os.Create(filePath)
		if err != nil {
			src.Close()
			slog.Error("Error writing upload", "file", fileName, "error", err)
			corsError(w, "Error saving file. Please try again.", http.StatusInternalServerError)
			return
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			src.Close()
			slog.Error("Error writing upload", "file", fileName, "error", err)
			corsError(w, "Error saving file. Please try again.", http.StatusInternalServerError)
			return
		}
		dst.Close()
		src.Close()

		if err := s.queue.Enqueue(r.Context(), queue.Job{FilePath: filePath, FileName: fileName}); err != nil {
			slog.Error("Error enqueuing receipt", "file", fileName, "error", err)
			corsError(w, "Error queuing file. Please try again.", http.StatusInternalServerError)
			return
		}

		responses = append(responses, uploadResponse{
			Message: fmt.Sprintf("Receipt %s added for processing!", fileName),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(responses); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleListReceipts returns every persisted record minus the raw analysis
// payload.
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	records, err := s.db.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	listed := make([]*receipt.Record, 0, len(records))
	for _, rec := range records {
		listed = append(listed, rec.WithoutRaw())
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(listed); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleCollectiveInsights returns the aggregation engine's combined
// payload.
func (s *Server) handleCollectiveInsights(w http.ResponseWriter, r *http.Request) {
	collected, err := s.engine.Collect(r.Context())
	if err != nil {
		slog.Error("Error collecting insights", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(collected); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleExport returns the ledger as an XLSX download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	records, err := s.db.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data, err := export.ReceiptsXLSX(records)
	if err != nil {
		slog.Error("Error exporting receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="receipts.xlsx"`)
	w.Write(data)
}

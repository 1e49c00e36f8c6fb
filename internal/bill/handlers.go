package bill

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/billbuster/internal/ai"
)

// maxUploadSize allows high-resolution phone photos and multi-page PDFs
const maxUploadSize = int64(50 << 20)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// statusFor maps service and provider errors onto HTTP statuses
func statusFor(err error) int {
	var (
		configErr     *ai.ConfigurationError
		timeoutErr    *ai.TimeoutError
		remoteErr     *ai.RemoteError
		emptyErr      *ai.EmptyResponseError
		extractionErr *ai.ExtractionError
		parseErr      *ai.ParseError
	)
	switch {
	case errors.As(err, &configErr):
		return http.StatusPreconditionFailed
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout
	case errors.As(err, &remoteErr), errors.As(err, &emptyErr), errors.As(err, &extractionErr), errors.As(err, &parseErr):
		return http.StatusBadGateway
	case errors.Is(err, ErrScanLimitReached):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err with the mapped status. Provider errors carry a user-facing
// message; anything unclassified is hidden behind a generic one.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	var message string
	switch status {
	case http.StatusInternalServerError:
		message = "Internal server error"
	case http.StatusNotFound:
		message = "Not found"
	case http.StatusPaymentRequired:
		message = "Free scan limit reached. Upgrade to Pro for unlimited scans."
	default:
		message = userMessage(err)
	}
	writeJSONError(w, message, status)
}

// userMessage unwraps to the typed provider error so wrapping context is not shown to users
func userMessage(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch e.(type) {
		case *ai.ConfigurationError, *ai.TimeoutError, *ai.RemoteError,
			*ai.EmptyResponseError, *ai.ExtractionError, *ai.ParseError:
			return e.Error()
		}
	}
	return err.Error()
}

func providerParam(w http.ResponseWriter, r *http.Request) (ai.ProviderType, bool) {
	t, err := ai.ParseProviderType(r.PathValue("provider"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return t, true
}

// detectContentType falls back to the file extension when the part has no type
func detectContentType(header string, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(header))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleAnalyzeBill uploads and analyses a bill photo
func (s *Server) handleAnalyzeBill(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeJSONError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		writeJSONError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSONError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := detectContentType(header.Header.Get("Content-Type"), header.Filename)

	bill, analysis, err := s.service.AnalyzeBill(r.Context(), header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error analyzing bill", "filename", header.Filename, "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"bill":     bill,
		"analysis": analysis,
	})
}

// handleListBills returns all bills, always as an array
func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.service.ListBills()
	if err != nil {
		slog.Error("Error listing bills", "error", err)
		writeError(w, err)
		return
	}
	if bills == nil {
		bills = []*Bill{}
	}
	writeJSON(w, http.StatusOK, bills)
}

// handleGetBill returns a bill with its analysis and script
func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	detail, err := s.service.GetBill(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleGetBillImage returns the stored photo
func (s *Server) handleGetBillImage(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetBillImage(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteBill deletes a bill
func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteBill(r.PathValue("id")); err != nil {
		slog.Error("Error deleting bill", "bill_id", r.PathValue("id"), "error", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGenerateScript generates a negotiation script for a bill
func (s *Server) handleGenerateScript(w http.ResponseWriter, r *http.Request) {
	script, err := s.service.GenerateScript(r.Context(), r.PathValue("id"))
	if err != nil {
		slog.Error("Error generating script", "bill_id", r.PathValue("id"), "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, script)
}

// handleGetScript returns the stored script
func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	script, err := s.service.GetScript(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, script)
}

// handleSavings returns the savings total
func (s *Server) handleSavings(w http.ResponseWriter, r *http.Request) {
	savings, err := s.service.Savings()
	if err != nil {
		slog.Error("Error totaling savings", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, savings)
}

type settingsResponse struct {
	Settings
	RemainingScans *int `json:"remainingScans"`
}

func newSettingsResponse(s Settings) settingsResponse {
	return settingsResponse{Settings: s, RemainingScans: RemainingScans(s)}
}

// handleGetSettings returns the settings with the remaining free scans
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.service.Settings()
	if err != nil {
		slog.Error("Error reading settings", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsResponse(settings))
}

// handleUpdateSettings changes the AI provider
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AIProvider string `json:"aiProvider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	t, err := ai.ParseProviderType(req.AIProvider)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	settings, err := s.service.SetProvider(t)
	if err != nil {
		slog.Error("Error saving settings", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsResponse(settings))
}

// handleKeyStatus reports which providers have keys
func (s *Server) handleKeyStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.KeyStatus()
	if err != nil {
		slog.Error("Error reading keys", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleSetKey stores a provider key
func (s *Server) handleSetKey(w http.ResponseWriter, r *http.Request) {
	t, ok := providerParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Key) == "" {
		writeJSONError(w, "A key is required", http.StatusBadRequest)
		return
	}
	if err := s.service.SetProviderKey(t, req.Key); err != nil {
		slog.Error("Error storing key", "provider", t, "error", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteKey removes a provider key
func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	t, ok := providerParam(w, r)
	if !ok {
		return
	}
	if err := s.service.DeleteProviderKey(t); err != nil {
		slog.Error("Error deleting key", "provider", t, "error", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleValidateKey pings the vendor with the posted key or the stored one
func (s *Server) handleValidateKey(w http.ResponseWriter, r *http.Request) {
	t, ok := providerParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Key string `json:"key"`
	}
	// An empty body validates the stored key
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	check, err := s.service.ValidateProviderKey(r.Context(), t, req.Key)
	if err != nil {
		slog.Error("Error validating key", "provider", t, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

// handleDeleteAllData wipes records, photos and keys
func (s *Server) handleDeleteAllData(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteAllData(); err != nil {
		slog.Error("Error deleting all data", "error", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

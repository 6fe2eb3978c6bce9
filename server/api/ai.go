package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

const defaultMaxVoiceBytes = 25 << 20

var voiceExtensions = map[string]bool{".mp3": true, ".webm": true, ".wav": true}

// --- Assistant handlers ---

type assistantRequest struct {
	Prompt string `json:"prompt"`
}

func (h *Handlers) assistant(w http.ResponseWriter, r *http.Request) {
	var req assistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		writeError(w, http.StatusBadRequest, "Prompt is required")
		return
	}
	resp := h.Assistant.Respond(r.Context(), UserID(r.Context()), prompt)
	writeJSON(w, http.StatusOK, map[string]any{"response": resp})
}

func (h *Handlers) voice(w http.ResponseWriter, r *http.Request) {
	if h.Transcriber == nil {
		writeError(w, http.StatusServiceUnavailable, "speech transcription is not configured")
		return
	}
	limit := h.MaxVoiceBytes
	if limit <= 0 {
		limit = defaultMaxVoiceBytes
	}
	// Leave room for the multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "audio file is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No audio file provided. Please upload an MP3, WEBM, or WAV file.")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !voiceExtensions[ext] {
		writeError(w, http.StatusBadRequest, "Unsupported file format. Please upload MP3, WEBM, or WAV.")
		return
	}
	if header.Size > limit {
		writeError(w, http.StatusRequestEntityTooLarge, "audio file is too large")
		return
	}

	uid := UserID(r.Context())
	name := fmt.Sprintf("audio_%d%s", h.now().Unix(), ext)
	start := time.Now()
	tr, err := h.Transcriber.Transcribe(r.Context(), name, file)
	if err != nil {
		h.logger().Error("transcription failed", slog.Int64("user", uid), slog.Any("err", err))
		writeError(w, http.StatusBadGateway, "transcription failed: "+err.Error())
		return
	}
	h.logger().Debug("transcribed voice request",
		slog.Int64("user", uid), slog.Duration("took", time.Since(start)), slog.String("language", tr.Language))
	if tr.Text == "" {
		writeError(w, http.StatusBadRequest, "No speech detected in the audio file")
		return
	}

	resp := h.Assistant.Respond(r.Context(), uid, tr.Text)
	writeJSON(w, http.StatusOK, map[string]any{"response": resp, "transcription": tr.Text})
}

package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sipeed/picocast/pkg/audio"
	"github.com/sipeed/picocast/pkg/config"
	"github.com/sipeed/picocast/pkg/dialogue"
	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/metrics"
	"github.com/sipeed/picocast/pkg/persona"
	"github.com/sipeed/picocast/pkg/session"
	"github.com/sipeed/picocast/pkg/voice"
)

// maxBodyBytes bounds request bodies, metric documents included.
const maxBodyBytes = 4 << 20

var apiVersion = "dev"

// SetVersion sets the version string returned by the health endpoint.
func SetVersion(v string) {
	apiVersion = v
}

type PodcastRequest struct {
	Documents []json.RawMessage `json:"documents"`
	Turns     int               `json:"turns,omitempty"`
	Minutes   int               `json:"minutes,omitempty"`
}

type PodcastResponse struct {
	ID               string          `json:"id"`
	Status           string          `json:"status"`
	Transcript       []dialogue.Turn `json:"transcript"`
	AudioPath        string          `json:"audio_path,omitempty"`
	TranscriptPath   string          `json:"transcript_path,omitempty"`
	CoverageMismatch bool            `json:"coverage_mismatch"`
	Gaps             []voice.Gap     `json:"gaps,omitempty"`
	Skipped          []int           `json:"skipped,omitempty"`
	DurationSeconds  float64         `json:"duration_seconds"`
}

type RespondRequest struct {
	Persona   string            `json:"persona"`
	Message   string            `json:"message"`
	Documents []json.RawMessage `json:"documents,omitempty"`
}

type RespondResponse struct {
	Persona  string `json:"persona"`
	Response string `json:"response"`
	Fallback bool   `json:"fallback"`
}

type SpeakRequest struct {
	Persona string `json:"persona"`
	Text    string `json:"text"`
}

type SessionList struct {
	Sessions []session.Record `json:"sessions"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: apiVersion})
}

func (s *Server) handlePodcast(w http.ResponseWriter, r *http.Request) {
	var req PodcastRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "documents are required")
		return
	}

	turns := config.ClampTurns(req.Turns)
	minutes := config.ClampMinutes(req.Minutes)
	res, err := s.producer.Run(r.Context(), rawDocs(req.Documents), turns, minutes*60)
	if err != nil {
		var malformed *metrics.MalformedInputError
		if errors.As(err, &malformed) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.ErrorCF("gateway", "Podcast generation failed", map[string]any{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "podcast generation failed")
		return
	}

	writeJSON(w, http.StatusOK, PodcastResponse{
		ID:               res.ID,
		Status:           res.Status,
		Transcript:       res.Transcript,
		AudioPath:        res.Artifacts.AudioPath,
		TranscriptPath:   res.Artifacts.TranscriptPath,
		CoverageMismatch: res.CoverageMismatch,
		Gaps:             res.Gaps,
		Skipped:          res.Skipped,
		DurationSeconds:  res.Duration.Seconds(),
	})
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req RespondRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Persona == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "persona and message are required")
		return
	}

	text, fallback, err := s.producer.Respond(r.Context(), req.Persona, req.Message, rawDocs(req.Documents))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, RespondResponse{Persona: req.Persona, Response: text, Fallback: fallback})
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req SpeakRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Persona == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "persona and text are required")
		return
	}

	master, err := s.producer.Speak(r.Context(), req.Persona, req.Text)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	var buf bytes.Buffer
	if err := audio.EncodeWAV(&buf, master); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode audio")
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	list := SessionList{Sessions: []session.Record{}}
	if s.ledger == nil {
		writeJSON(w, http.StatusOK, list)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.ledger.List(r.Context(), limit)
	if err != nil {
		logger.ErrorCF("gateway", "Failed to list sessions", map[string]any{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if rows != nil {
		list.Sessions = rows
	}
	writeJSON(w, http.StatusOK, list)
}

func statusFor(err error) int {
	var (
		unknown   *persona.UnknownRoleError
		malformed *metrics.MalformedInputError
		synth     *voice.SynthesisError
	)
	switch {
	case errors.As(err, &unknown), errors.As(err, &malformed):
		return http.StatusBadRequest
	case errors.As(err, &synth):
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func rawDocs(in []json.RawMessage) [][]byte {
	if len(in) == 0 {
		return nil
	}
	out := make([][]byte, len(in))
	for i, d := range in {
		out[i] = d
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, ErrorResponse{Error: message, Code: code})
}

package voice

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picocast/pkg/config"
)

const testMarkup = `<speak version="1.0"><voice name="alloy"><prosody rate="-2%">ASA fell <emphasis level="moderate">84.7%</emphasis>.</prosody><break time="320ms"/></voice></speak>`

func TestOpenAISynthesizer_Synthesize(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(makeWAV(DefaultFormat, make([]byte, 4800), 4800))
	}))
	defer server.Close()

	s := NewOpenAISynthesizer("sk-test", server.URL, "", time.Second)
	speech, err := s.Synthesize(t.Context(), Request{
		Text:         testMarkup,
		Voice:        "alloy",
		Markup:       true,
		Instructions: "Warm, even and neutral broadcast host.",
	})
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, speech.Duration)

	assert.Equal(t, "gpt-4o-mini-tts", body["model"])
	assert.Equal(t, "ASA fell 84.7%.", body["input"])
	assert.Equal(t, "alloy", body["voice"])
	assert.Equal(t, "wav", body["response_format"])
	assert.Equal(t, "Warm, even and neutral broadcast host.", body["instructions"])
	assert.Equal(t, "openai", s.Name())
}

func TestOpenAISynthesizer_APIError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"engine down"}}`))
	}))
	defer server.Close()

	s := NewOpenAISynthesizer("sk-test", server.URL, "tts-1", time.Second)
	_, err := s.Synthesize(t.Context(), Request{Text: "Hello there listeners.", Voice: "nova"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=500")
	assert.Equal(t, 1, calls)

	_, err = s.Synthesize(t.Context(), Request{Text: "  ", Voice: "nova"})
	assert.Error(t, err)
}

func TestKokoroSynthesizer_Synthesize(t *testing.T) {
	var req kokoroRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/audio/speech":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			_, _ = w.Write(makeWAV(DefaultFormat, make([]byte, 48000), 48000))
		case "/v1/models":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	s := NewKokoroSynthesizer(server.URL+"/", "", time.Second)
	speech, err := s.Synthesize(t.Context(), Request{Text: testMarkup, Markup: true})
	require.NoError(t, err)
	assert.Equal(t, time.Second, speech.Duration)
	assert.Equal(t, "af_nova", req.Voice)
	assert.Equal(t, "wav", req.Format)
	assert.Equal(t, "ASA fell 84.7%.", req.Input)
	assert.True(t, s.IsAvailable())
}

func TestKokoroSynthesizer_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s := NewKokoroSynthesizer(server.URL, "af_bella", time.Second)
	_, err := s.Synthesize(t.Context(), Request{Text: "Hello there listeners.", Voice: "af_sky"})
	assert.ErrorContains(t, err, "status 503")
	assert.False(t, s.IsAvailable())
}

func TestSilentSynthesizer(t *testing.T) {
	s := NewSilentSynthesizer(Format{}, 150)
	speech, err := s.Synthesize(t.Context(), Request{Text: testMarkup, Markup: true})
	require.NoError(t, err)
	// "ASA fell 84.7%." is three words: 1.2s at 150 wpm.
	assert.Equal(t, 1200*time.Millisecond, speech.Duration)
	assert.Equal(t, DefaultFormat, speech.Format)
	for _, b := range speech.Samples {
		require.Zero(t, b)
	}
}

func TestNewSynthesizer(t *testing.T) {
	s, err := NewSynthesizer(config.SpeechConfig{Provider: "openai", APIKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, "openai", s.Name())

	_, err = NewSynthesizer(config.SpeechConfig{Provider: "openai"})
	assert.Error(t, err)

	s, err = NewSynthesizer(config.SpeechConfig{Provider: "Kokoro"})
	require.NoError(t, err)
	assert.Equal(t, "kokoro", s.Name())

	s, err = NewSynthesizer(config.SpeechConfig{Provider: "silent", SampleRate: 16000})
	require.NoError(t, err)
	assert.Equal(t, 16000, s.(*SilentSynthesizer).format.SampleRate)

	_, err = NewSynthesizer(config.SpeechConfig{Provider: "polly"})
	assert.ErrorContains(t, err, "unknown speech provider")
}

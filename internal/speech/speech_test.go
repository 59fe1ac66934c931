package speech

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/nomadai/concierge/internal/config"
	apperrors "github.com/nomadai/concierge/internal/errors"
	"github.com/nomadai/concierge/internal/resilience"
	testHelpers "github.com/nomadai/concierge/internal/testing"
)

func fastClient(name string) *resilience.RetryClient {
	return resilience.NewRetryClient(resilience.Policy{
		Name:        name,
		MaxAttempts: 3,
		Timeout:     time.Second,
		BaseDelay:   time.Millisecond,
		Multiplier:  1,
		MaxDelay:    time.Millisecond,
	})
}

var wavHeader = []byte("RIFF\x24\x00\x00\x00WAVEfmt ")

func TestPlainText_Render(t *testing.T) {
	p := NewPlainText()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "The pool opens at 6 AM.", "The pool opens at 6 AM."},
		{"emphasis", "The password is **Welcome2026!**", "The password is Welcome2026!"},
		{"heading and list", "## Breakfast\n\n- Continental\n- Japanese", "Breakfast. Continental. Japanese."},
		{"link text only", "See [the map](https://maps.example/x) for details", "See the map for details."},
		{"inline code", "Join `NomadAI-Guest` now", "Join NomadAI-Guest now."},
		{"raw html dropped", "Hello <b>there</b>", "Hello there."},
		{"soft breaks", "first line\nsecond line", "first line second line."},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Render(tt.in); got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSTTClient_Transcribe(t *testing.T) {
	handler := testHelpers.NewRetryHandler(1, http.StatusServiceUnavailable, "busy", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if got := r.FormValue("model"); got != DefaultSTTModel {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("language"); got != "ja" {
			t.Errorf("language = %q, want ja", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != string(wavHeader) || header.Filename != "audio.wav" {
			t.Errorf("file = %q (%s)", data, header.Filename)
		}
		testHelpers.SetJSONHeaders(w)
		_, _ = w.Write([]byte(`{"text":"  What time is breakfast?  "}`))
	})
	server := testHelpers.NewMockServer(t, handler, testHelpers.WithAuthValidation("Authorization", "Bearer stt-key"))

	c := NewSTTClient(config.STTConfig{BaseURL: server.URL, APIKey: "stt-key", Language: "ja"}, fastClient(resilience.DependencySTT), nil)
	text, err := c.Transcribe(context.Background(), wavHeader, "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "What time is breakfast?" {
		t.Errorf("text = %q", text)
	}
	if handler.CallCount() != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", handler.CallCount())
	}
}

func TestSTTClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		audio    []byte
		wantKind apperrors.Kind
	}{
		{"empty audio", testHelpers.JSONHandler(`{"text":"x"}`), nil, apperrors.KindInvalidRequest},
		{"bad key", testHelpers.UnauthorizedHandler(`{"error":"invalid key"}`), wavHeader, apperrors.KindDependencyUnavailable},
		{"always down", testHelpers.InternalErrorHandler("oops"), wavHeader, apperrors.KindDependencyUnavailable},
		{"garbage body", testHelpers.JSONHandler(`not json`), wavHeader, apperrors.KindDependencyUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := testHelpers.NewMockServer(t, tt.handler)
			c := NewSTTClient(config.STTConfig{BaseURL: server.URL}, fastClient(resilience.DependencySTT), nil)
			_, err := c.Transcribe(context.Background(), tt.audio, "")
			if got := apperrors.KindOf(err); got != tt.wantKind {
				t.Errorf("kind = %s, want %s (err %v)", got, tt.wantKind, err)
			}
		})
	}
}

func TestSniffExtension(t *testing.T) {
	tests := []struct {
		audio []byte
		want  string
	}{
		{wavHeader, ".wav"},
		{[]byte("ID3\x04"), ".mp3"},
		{[]byte{0xFF, 0xFB, 0x90}, ".mp3"},
		{[]byte("OggS\x00"), ".ogg"},
		{[]byte{0x1A, 0x45, 0xDF, 0xA3, 0x01}, ".webm"},
		{[]byte("????"), ".wav"},
	}
	for _, tt := range tests {
		if got := sniffExtension(tt.audio); got != tt.want {
			t.Errorf("sniffExtension(%q) = %s, want %s", tt.audio, got, tt.want)
		}
	}
}

func TestTTSClient_Synthesize(t *testing.T) {
	var got speechRequest
	server := testHelpers.NewMockServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}), testHelpers.WithAuthValidation("Authorization", "Bearer tts-key"))

	c := NewTTSClient(config.TTSConfig{BaseURL: server.URL + "/v1/", APIKey: "tts-key"}, fastClient(resilience.DependencyTTS), nil)
	audio, err := c.Synthesize(context.Background(), "**Check-out** is at 11 AM", "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "ID3-audio" {
		t.Errorf("audio = %q", audio)
	}
	if got.Input != "Check-out is at 11 AM." {
		t.Errorf("input = %q, want markdown stripped", got.Input)
	}
	if got.Voice != DefaultTTSVoice || got.Model != DefaultTTSModel || got.ResponseFormat != "mp3" {
		t.Errorf("request = %+v", got)
	}
	if c.Format() != DefaultTTSFormat {
		t.Errorf("Format = %s", c.Format())
	}

	if _, err := c.Synthesize(context.Background(), "ok", "nova"); err != nil {
		t.Fatalf("Synthesize with voice: %v", err)
	}
	if got.Voice != "nova" {
		t.Errorf("voice = %q, want nova", got.Voice)
	}
}

func TestTTSClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		text     string
		wantKind apperrors.Kind
	}{
		{"nothing to speak", testHelpers.JSONHandler("x"), "  ", apperrors.KindInvalidRequest},
		{"empty audio", testHelpers.StatusHandler(http.StatusOK, ""), "hello", apperrors.KindDependencyUnavailable},
		{"rejected", testHelpers.StatusHandler(http.StatusBadRequest, "bad voice"), "hello", apperrors.KindDependencyUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := testHelpers.NewMockServer(t, tt.handler)
			c := NewTTSClient(config.TTSConfig{BaseURL: server.URL}, fastClient(resilience.DependencyTTS), nil)
			_, err := c.Synthesize(context.Background(), tt.text, "")
			if got := apperrors.KindOf(err); got != tt.wantKind {
				t.Errorf("kind = %s, want %s (err %v)", got, tt.wantKind, err)
			}
		})
	}
}

func TestClientsSatisfyInterfaces(t *testing.T) {
	var _ Transcriber = (*STTClient)(nil)
	var _ Synthesizer = (*TTSClient)(nil)
	var _ Transcriber = (*testHelpers.MockTranscriber)(nil)
	var _ Synthesizer = (*testHelpers.MockSynthesizer)(nil)
}

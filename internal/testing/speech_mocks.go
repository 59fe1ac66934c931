package testing

import (
	"context"
	"sync"
)

// MockTranscriber implements speech.Transcriber for testing
type MockTranscriber struct {
	mu        sync.Mutex
	Text      string
	Err       error
	Calls     int
	LastAudio []byte
	LastLang  string
}

// Transcribe returns the configured text or error
func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.LastAudio = audio
	m.LastLang = language
	if m.Err != nil {
		return "", m.Err
	}
	return m.Text, nil
}

// MockSynthesizer implements speech.Synthesizer for testing
type MockSynthesizer struct {
	mu        sync.Mutex
	Audio     []byte
	Err       error
	Calls     int
	LastText  string
	LastVoice string
}

// Synthesize returns the configured audio or error
func (m *MockSynthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.LastText = text
	m.LastVoice = voice
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Audio, nil
}

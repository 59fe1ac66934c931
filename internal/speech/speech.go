// Package speech talks to the speech-to-text and speech-synthesis
// services. Both use OpenAI-compatible audio endpoints and go through the
// retry envelope.
package speech

import (
	"context"
	"strings"

	apperrors "github.com/nomadai/concierge/internal/errors"
)

// Transcriber turns recorded audio into text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
}

// Synthesizer turns reply text into audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// unavailable maps a transport failure onto dependency_unavailable.
// Errors that already carry a public kind pass through.
func unavailable(dependency string, err error) error {
	if apperrors.KindOf(err).Public() {
		return err
	}
	return apperrors.NewDependencyError(dependency, 1, err)
}

func endpoint(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

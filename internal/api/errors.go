package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	apperrors "github.com/nomadai/concierge/internal/errors"
	"github.com/nomadai/concierge/internal/logging"
)

// statusFor maps an error kind to an HTTP status
func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindRateLimited:
		return http.StatusTooManyRequests
	case apperrors.KindInvalidRequest:
		return http.StatusBadRequest
	case apperrors.KindDependencyUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err. Only public kinds expose their message; anything
// else is logged and answered with a generic 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	if !kind.Public() {
		if err != nil {
			s.logger.Error("request failed", logging.Error(err))
		}
		s.writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "internal error",
			Kind:  apperrors.KindInternal.String(),
		})
		return
	}

	resp := ErrorResponse{Error: publicMessage(err), Kind: kind.String()}

	var rl *apperrors.RateLimitedError
	if errors.As(err, &rl) {
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		resp.RetryAfter = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	s.writeJSON(w, statusFor(kind), resp)
}

// publicMessage omits wrapped causes, which may carry upstream detail
func publicMessage(err error) string {
	if ce, ok := apperrors.AsConciergeError(err); ok {
		return ce.Message
	}
	return err.Error()
}

package tools

import (
	"github.com/nomadai/concierge/internal/knowledge"
	"github.com/nomadai/concierge/internal/resilience"
)

// BuiltinOptions selects optional concierge tools
type BuiltinOptions struct {
	// Media enables image_preview and video_tour when BaseURL and APIKey are set
	Media       MediaConfig
	MediaClient *resilience.RetryClient
}

// RegisterBuiltins registers the concierge tool set backed by kb
func RegisterBuiltins(r *Registry, kb *knowledge.Base, opts BuiltinOptions) error {
	builtins := []Tool{
		NewRoomServiceTool(kb),
		NewHousekeepingTool(kb),
		NewAmenitiesTool(kb),
		NewWiFiTool(kb),
		NewRecommendationsTool(kb),
		NewItineraryTool(kb),
		NewDirectionsTool(kb),
		NewCallbackTool(),
	}
	if opts.Media.Enabled() {
		builtins = append(builtins,
			NewImagePreviewTool(opts.Media, opts.MediaClient),
			NewVideoTourTool(opts.Media, opts.MediaClient),
		)
	}

	for _, t := range builtins {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

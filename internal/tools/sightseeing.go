package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nomadai/concierge/internal/knowledge"
)

// NewRecommendationsTool suggests nearby places by category
func NewRecommendationsTool(kb *knowledge.Base) Tool {
	return &Definition{
		ToolName:   "local_recommendations",
		Summary:    "Suggest nearby restaurants, cafes, attractions, shopping and parks with walking distance. Categories: " + strings.Join(kb.Categories(), ", ") + ".",
		Concurrent: true,
		Schema: object(map[string]interface{}{
			"category": prop("string", "Place category; omit for a mix"),
		}),
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			category := args.String("category", "")
			places := kb.PlacesIn(category)
			if len(places) == 0 {
				return fmt.Sprintf("No %s places on file. Known categories: %s", category, strings.Join(kb.Categories(), ", ")), nil
			}
			return places, nil
		},
	}
}

// NewItineraryTool proposes route templates that fit the guest's free time
func NewItineraryTool(kb *knowledge.Base) Tool {
	return &Definition{
		ToolName:   "itinerary_planning",
		Summary:    "Plan a day out from route templates that fit the hours the guest has available.",
		Concurrent: true,
		Schema: object(map[string]interface{}{
			"hours":    prop("number", "Hours available"),
			"interest": prop("string", "Optional interest such as food, culture, family"),
		}, "hours"),
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			hours := args.Float("hours", 0)
			if hours <= 0 {
				return nil, fmt.Errorf("hours must be positive")
			}

			options := kb.ItinerariesWithin(hours)
			if interest := strings.ToLower(args.String("interest", "")); interest != "" {
				var matched []knowledge.Itinerary
				for _, it := range options {
					if strings.Contains(strings.ToLower(it.Name), interest) {
						matched = append(matched, it)
					}
				}
				if len(matched) > 0 {
					options = matched
				}
			}
			if len(options) == 0 {
				return fmt.Sprintf("No route fits in %.1f hours; suggest a single nearby spot instead.", hours), nil
			}
			return options, nil
		},
	}
}

// NewDirectionsTool gives routes to common destinations
func NewDirectionsTool(kb *knowledge.Base) Tool {
	return &Definition{
		ToolName:   "directions",
		Summary:    "Give directions from the hotel to common destinations with walking and transit options.",
		Concurrent: true,
		Schema: object(map[string]interface{}{
			"destination": prop("string", "Where the guest wants to go"),
		}, "destination"),
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			query := args.String("destination", "")
			if d, ok := kb.FindDestination(query); ok {
				return d, nil
			}
			names := make([]string, len(kb.Destinations))
			for i, d := range kb.Destinations {
				names[i] = d.Name
			}
			return fmt.Sprintf("No stored route to %q. Known destinations: %s. Suggest asking the concierge desk.", query, strings.Join(names, ", ")), nil
		},
	}
}

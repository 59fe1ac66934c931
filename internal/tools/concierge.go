package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nomadai/concierge/internal/knowledge"
	"github.com/nomadai/concierge/internal/session"
)

// Scratch keys for per-session tool state
const (
	scratchOrders   = "room_service.orders"
	scratchTickets  = "housekeeping.tickets"
	scratchCallback = "request_callback.call"
)

// Ticket is a service request recorded for a session
type Ticket struct {
	ID        string    `json:"ticket_id"`
	Kind      string    `json:"kind"`
	Room      string    `json:"room"`
	Items     []string  `json:"items,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	ETA       string    `json:"eta,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func newTicketID(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.NewString()[:8])
}

func appendTicket(ctx context.Context, key string, t Ticket) int {
	list := session.ScratchFrom(ctx).Update(key, func(cur interface{}) interface{} {
		tickets, _ := cur.([]Ticket)
		return append(tickets, t)
	})
	return len(list.([]Ticket))
}

// NewRoomServiceTool lists the menu or places a food and beverage order
func NewRoomServiceTool(kb *knowledge.Base) Tool {
	return &Definition{
		ToolName: "room_service",
		Summary:  "Show the room service menu or place a food and beverage order delivered to the guest's room. Confirm the items and room number with the guest before ordering.",
		Schema: object(map[string]interface{}{
			"action": enumProp("'menu' to list items, 'order' to place an order", "menu", "order"),
			"items":  prop("array", "Menu items to order"),
			"room":   prop("string", "Guest room number"),
			"notes":  prop("string", "Special requests or dietary notes"),
		}, "action"),
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			if args.String("action", "menu") == "menu" {
				var sb strings.Builder
				for _, m := range kb.RoomService {
					fmt.Fprintf(&sb, "%s: %s\n", m.Name, strings.Join(m.Items, ", "))
				}
				return sb.String(), nil
			}

			room := args.String("room", "")
			if room == "" {
				return nil, fmt.Errorf("room number is required to place an order")
			}
			items := args.Strings("items")
			if len(items) == 0 {
				return nil, fmt.Errorf("at least one item is required")
			}

			menu := kb.MenuItems()
			var unknown []string
			for _, item := range items {
				if _, ok := menu[strings.ToLower(item)]; !ok {
					unknown = append(unknown, item)
				}
			}
			if len(unknown) > 0 {
				return fmt.Sprintf("Not on the menu: %s. Offer the guest the menu instead.", strings.Join(unknown, ", ")), nil
			}

			ticket := Ticket{
				ID:        newTicketID("RS"),
				Kind:      "room_service",
				Room:      room,
				Items:     items,
				Notes:     args.String("notes", ""),
				ETA:       "30-45 minutes",
				Status:    "confirmed",
				CreatedAt: time.Now().UTC(),
			}
			count := appendTicket(ctx, scratchOrders, ticket)
			return map[string]interface{}{
				"ticket":           ticket,
				"orders_this_stay": count,
			}, nil
		},
	}
}

// NewHousekeepingTool files a housekeeping request
func NewHousekeepingTool(kb *knowledge.Base) Tool {
	return &Definition{
		ToolName: "housekeeping",
		Summary:  "Request housekeeping: extra towels or linens, room cleaning, toiletries, pillows or blankets, laundry.",
		Schema: object(map[string]interface{}{
			"service": prop("string", "What the guest needs, e.g. extra towels"),
			"room":    prop("string", "Guest room number"),
			"notes":   prop("string", "Additional details"),
		}, "service", "room"),
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			room := args.String("room", "")
			service := args.String("service", "")
			if room == "" || service == "" {
				return nil, fmt.Errorf("service and room are required")
			}

			ticket := Ticket{
				ID:        newTicketID("HK"),
				Kind:      "housekeeping",
				Room:      room,
				Items:     []string{service},
				Notes:     args.String("notes", ""),
				ETA:       kb.Housekeeping.ETA,
				Status:    "open",
				CreatedAt: time.Now().UTC(),
			}
			appendTicket(ctx, scratchTickets, ticket)
			return ticket, nil
		},
	}
}

// NewAmenitiesTool answers questions about on-site facilities
func NewAmenitiesTool(kb *knowledge.Base) Tool {
	return &Definition{
		ToolName:   "amenities_info",
		Summary:    "Look up hotel amenities and their opening hours (pool, gym, spa, restaurant, bar, business center, concierge desk).",
		Concurrent: true,
		Schema: object(map[string]interface{}{
			"amenity": prop("string", "Amenity name; omit to list all"),
		}),
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			query := args.String("amenity", "")
			if query == "" {
				return kb.Amenities, nil
			}
			if a, ok := kb.FindAmenity(query); ok {
				return a, nil
			}
			names := make([]string, len(kb.Amenities))
			for i, a := range kb.Amenities {
				names[i] = a.Name
			}
			return fmt.Sprintf("No amenity called %q. Available: %s", query, strings.Join(names, ", ")), nil
		},
	}
}

// NewWiFiTool returns network credentials and troubleshooting steps
func NewWiFiTool(kb *knowledge.Base) Tool {
	return &Definition{
		ToolName:   "wifi_help",
		Summary:    "Provide WiFi network names and passwords, and troubleshooting steps for connectivity problems.",
		Concurrent: true,
		Schema: object(map[string]interface{}{
			"topic": enumProp("'credentials' or 'troubleshooting'", "credentials", "troubleshooting"),
		}),
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			if args.String("topic", "credentials") == "troubleshooting" {
				return map[string]interface{}{
					"steps": kb.WiFi.Troubleshooting,
				}, nil
			}
			return map[string]interface{}{
				"networks": kb.WiFi.Networks,
			}, nil
		},
	}
}

// Callback is a simulated outbound call to the guest
type Callback struct {
	ID        string    `json:"call_id"`
	Phone     string    `json:"phone"`
	Topic     string    `json:"topic"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCallbackTool schedules, checks, or cancels a staff callback. The
// call state is scoped to the caller's session.
func NewCallbackTool() Tool {
	return &Definition{
		ToolName: "request_callback",
		Summary:  "Have a staff member call the guest back. Use action 'schedule' with a phone number or room extension, 'status' to check it, or 'cancel'.",
		Schema: object(map[string]interface{}{
			"action": enumProp("schedule, status or cancel", "schedule", "status", "cancel"),
			"phone":  prop("string", "Phone number or room extension"),
			"topic":  prop("string", "What the call is about"),
		}, "action"),
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			scratch := session.ScratchFrom(ctx)
			action := args.String("action", "status")

			var result interface{}
			var err error
			scratch.Update(scratchCallback, func(cur interface{}) interface{} {
				call, _ := cur.(*Callback)
				switch action {
				case "schedule":
					phone := args.String("phone", "")
					if phone == "" {
						err = fmt.Errorf("phone number or extension is required")
						return call
					}
					if call != nil && call.Status == "scheduled" {
						call.Attempts++
						call.UpdatedAt = time.Now().UTC()
						result = *call
						return call
					}
					call = &Callback{
						ID:        newTicketID("CB"),
						Phone:     phone,
						Topic:     args.String("topic", "general"),
						Status:    "scheduled",
						Attempts:  1,
						UpdatedAt: time.Now().UTC(),
					}
					result = *call
				case "cancel":
					if call == nil {
						result = "No callback is scheduled."
						return call
					}
					call.Status = "cancelled"
					call.UpdatedAt = time.Now().UTC()
					result = *call
				default:
					if call == nil {
						result = "No callback is scheduled."
						return call
					}
					result = *call
				}
				return call
			})
			if err != nil {
				return nil, err
			}
			return result, nil
		},
	}
}

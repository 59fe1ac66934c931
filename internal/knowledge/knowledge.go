// Package knowledge loads the read-only hotel reference data that tools
// and the system prompt draw on. The base id doubles as the response
// cache tenant.
package knowledge

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed hotel.yaml
var defaultBase []byte

// Hotel holds property-level facts
type Hotel struct {
	Name      string `yaml:"name"`
	Address   string `yaml:"address"`
	FrontDesk string `yaml:"front_desk"`
	CheckIn   string `yaml:"check_in"`
	CheckOut  string `yaml:"check_out"`
	Parking   string `yaml:"parking"`
}

// Network is one WiFi network
type Network struct {
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	Note     string `yaml:"note,omitempty"`
}

// WiFi holds connectivity facts
type WiFi struct {
	Networks        []Network `yaml:"networks"`
	Troubleshooting []string  `yaml:"troubleshooting"`
}

// Amenity is an on-site facility
type Amenity struct {
	Name  string `yaml:"name"`
	Hours string `yaml:"hours"`
	Note  string `yaml:"note,omitempty"`
}

// Menu is a room service menu section
type Menu struct {
	Name  string   `yaml:"name"`
	Items []string `yaml:"items"`
}

// Housekeeping lists available services
type Housekeeping struct {
	Services []string `yaml:"services"`
	ETA      string   `yaml:"eta"`
}

// Place is a local recommendation
type Place struct {
	Category string `yaml:"category"`
	Name     string `yaml:"name"`
	Distance string `yaml:"distance"`
}

// Itinerary is a route template
type Itinerary struct {
	Name  string   `yaml:"name"`
	Hours float64  `yaml:"hours"`
	Stops []string `yaml:"stops"`
}

// Destination is a common route from the hotel
type Destination struct {
	Name  string `yaml:"name"`
	Route string `yaml:"route"`
}

// Base is a complete knowledge base for one property
type Base struct {
	ID            string        `yaml:"id"`
	AssistantName string        `yaml:"assistant_name"`
	Hotel         Hotel         `yaml:"hotel"`
	WiFi          WiFi          `yaml:"wifi"`
	Amenities     []Amenity     `yaml:"amenities"`
	RoomService   []Menu        `yaml:"room_service"`
	Housekeeping  Housekeeping  `yaml:"housekeeping"`
	Places        []Place       `yaml:"places"`
	Itineraries   []Itinerary   `yaml:"itineraries"`
	Destinations  []Destination `yaml:"destinations"`
}

// Default returns the embedded knowledge base
func Default() *Base {
	b, err := Parse(defaultBase)
	if err != nil {
		panic(fmt.Sprintf("knowledge: embedded base invalid: %v", err))
	}
	return b
}

// Load reads a knowledge base from path; an empty path selects the default
func Load(path string) (*Base, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML knowledge base
func Parse(data []byte) (*Base, error) {
	var b Base
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base: %w", err)
	}
	if strings.TrimSpace(b.ID) == "" {
		return nil, fmt.Errorf("knowledge base id is required")
	}
	if b.AssistantName == "" {
		b.AssistantName = "Concierge"
	}
	return &b, nil
}

// FindAmenity returns the amenity whose name contains query (case-insensitive)
func (b *Base) FindAmenity(query string) (Amenity, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Amenity{}, false
	}
	for _, a := range b.Amenities {
		name := strings.ToLower(a.Name)
		if name == q || strings.Contains(name, q) || strings.Contains(q, name) {
			return a, true
		}
	}
	return Amenity{}, false
}

// PlacesIn returns the places of a category; an empty category returns all
func (b *Base) PlacesIn(category string) []Place {
	c := strings.ToLower(strings.TrimSpace(category))
	var out []Place
	for _, p := range b.Places {
		if c == "" || strings.EqualFold(p.Category, c) {
			out = append(out, p)
		}
	}
	return out
}

// Categories lists the distinct place categories, sorted
func (b *Base) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range b.Places {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out
}

// ItinerariesWithin returns templates that fit in hours; zero returns all
func (b *Base) ItinerariesWithin(hours float64) []Itinerary {
	var out []Itinerary
	for _, it := range b.Itineraries {
		if hours <= 0 || it.Hours <= hours {
			out = append(out, it)
		}
	}
	return out
}

// FindDestination returns the destination matching query (case-insensitive)
func (b *Base) FindDestination(query string) (Destination, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Destination{}, false
	}
	for _, d := range b.Destinations {
		name := strings.ToLower(d.Name)
		if strings.Contains(name, q) || strings.Contains(q, name) {
			return d, true
		}
	}
	return Destination{}, false
}

// MenuItems returns every room service item mapped to its section
func (b *Base) MenuItems() map[string]string {
	items := make(map[string]string)
	for _, m := range b.RoomService {
		for _, item := range m.Items {
			items[strings.ToLower(item)] = m.Name
		}
	}
	return items
}

// Summary renders the facts the reasoning model should always know
func (b *Base) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hotel: %s, %s\n", b.Hotel.Name, b.Hotel.Address)
	fmt.Fprintf(&sb, "Check-in %s, check-out %s. Front desk: %s.\n", b.Hotel.CheckIn, b.Hotel.CheckOut, b.Hotel.FrontDesk)
	if b.Hotel.Parking != "" {
		fmt.Fprintf(&sb, "Parking: %s\n", b.Hotel.Parking)
	}
	sb.WriteString("Amenities:\n")
	for _, a := range b.Amenities {
		fmt.Fprintf(&sb, "- %s: %s", a.Name, a.Hours)
		if a.Note != "" {
			fmt.Fprintf(&sb, " (%s)", a.Note)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

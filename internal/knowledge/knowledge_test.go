package knowledge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	b := Default()
	if b.ID != "nomadai-tokyo" {
		t.Errorf("ID = %q", b.ID)
	}
	if len(b.WiFi.Networks) == 0 || b.WiFi.Networks[0].Password != "Welcome2026!" {
		t.Errorf("WiFi = %+v", b.WiFi)
	}
}

func TestFindAmenity(t *testing.T) {
	b := Default()
	tests := []struct {
		query string
		want  string
		found bool
	}{
		{"pool", "Pool", true},
		{"GYM", "Gym", true},
		{"business", "Business Center", true},
		{"the spa", "Spa", true},
		{"casino", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := b.FindAmenity(tt.query)
		if ok != tt.found || got.Name != tt.want {
			t.Errorf("FindAmenity(%q) = %q,%v want %q,%v", tt.query, got.Name, ok, tt.want, tt.found)
		}
	}
}

func TestPlacesAndItineraries(t *testing.T) {
	b := Default()
	if got := b.PlacesIn("ramen"); len(got) != 2 {
		t.Errorf("PlacesIn(ramen) = %d places, want 2", len(got))
	}
	if got := b.PlacesIn(""); len(got) != len(b.Places) {
		t.Errorf("PlacesIn(\"\") = %d, want all", len(got))
	}
	if got := b.ItinerariesWithin(3); len(got) != 1 || got[0].Name != "Walking tour" {
		t.Errorf("ItinerariesWithin(3) = %+v", got)
	}
	if d, ok := b.FindDestination("airport"); !ok || !strings.Contains(d.Route, "Narita") {
		t.Errorf("FindDestination(airport) = %+v, %v", d, ok)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.yaml")
	if err := os.WriteFile(path, []byte("id: seaside\nhotel:\n  name: Seaside Inn\n"), 0644); err != nil {
		t.Fatal(err)
	}

	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.ID != "seaside" || b.AssistantName != "Concierge" {
		t.Errorf("got id=%q assistant=%q", b.ID, b.AssistantName)
	}

	if _, err := Parse([]byte("hotel:\n  name: x\n")); err == nil {
		t.Error("missing id should fail")
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestSummary(t *testing.T) {
	s := Default().Summary()
	for _, want := range []string{"NomadAI Hotel Tokyo", "Pool: 6 AM - 10 PM daily", "Booking required"} {
		if !strings.Contains(s, want) {
			t.Errorf("Summary missing %q", want)
		}
	}
}

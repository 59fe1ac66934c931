package respcache

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"What's the WiFi password?", "what's the wifi password"},
		{"  what's   the\twifi password  ", "what's the wifi password"},
		{"Pool hours!!", "pool hours"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprint_Isolation(t *testing.T) {
	base := Fingerprint("grand-hotel", "", "What's the WiFi password?")

	tests := []struct {
		name     string
		tenant   string
		language string
		message  string
		same     bool
	}{
		{"equivalent question", "grand-hotel", "", "what's the wifi password", true},
		{"other tenant", "seaside-inn", "", "What's the WiFi password?", false},
		{"reply language", "grand-hotel", "Spanish", "What's the WiFi password?", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fingerprint(tt.tenant, tt.language, tt.message)
			if (got == base) != tt.same {
				t.Errorf("shared fingerprint = %v, want %v", got == base, tt.same)
			}
		})
	}

	if Fingerprint("t", "Spanish", "pool hours") != Fingerprint("t", "  spanish ", "pool hours") {
		t.Error("language hints should be normalized")
	}
}

func TestClassify(t *testing.T) {
	c := DefaultClassifier()
	tests := []struct {
		message   string
		cacheable bool
		intent    string
	}{
		{"What's the WiFi password?", true, "wifi_credentials"},
		{"What time does the pool open?", true, "operating_hours"},
		{"When is check-out?", true, "checkin_checkout"},
		{"Is there parking?", true, "parking_policy"},
		{"What can you do?", true, "capabilities"},
		{"Book a spa appointment for 3pm", false, ""},
		{"Please send towels to my room", false, ""},
		{"Can you change the wifi password for my room?", false, ""},
		{"Tell me a joke", false, ""},
		{"", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := c.Classify(tt.message)
			if got.Cacheable != tt.cacheable {
				t.Fatalf("Cacheable = %v, want %v", got.Cacheable, tt.cacheable)
			}
			if got.Intent != tt.intent {
				t.Errorf("Intent = %q, want %q", got.Intent, tt.intent)
			}
		})
	}
}

func TestParseClassifier_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "intents: [::"},
		{"bad kind", "intents:\n  - name: x\n    kind: action\n    patterns: ['x']\n"},
		{"bad regex", "intents:\n  - name: x\n    kind: faq\n    patterns: ['(']\n"},
		{"bad veto", "vetoes: ['[']\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseClassifier([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCache_HitAfterPut(t *testing.T) {
	clock := newClock()
	c := New(Options{MaxSize: 16, Now: clock.Now})

	first := c.Get("grand-hotel", "", "What's the WiFi password?")
	if !first.Cacheable || first.Hit {
		t.Fatalf("first lookup = %+v, want cacheable miss", first)
	}
	if !c.Put("grand-hotel", "", "What's the WiFi password?", "Network NomadAI-Guest, password Welcome2026!") {
		t.Fatal("Put refused a cacheable question")
	}

	second := c.Get("grand-hotel", "", "what's the wifi password")
	if !second.Hit {
		t.Fatal("expected hit for equivalent question")
	}
	if second.Answer != "Network NomadAI-Guest, password Welcome2026!" {
		t.Errorf("Answer = %q", second.Answer)
	}

	other := c.Get("seaside-inn", "", "What's the WiFi password?")
	if other.Hit {
		t.Error("answer leaked across tenants")
	}

	spanish := c.Get("grand-hotel", "Spanish", "What's the WiFi password?")
	if !spanish.Cacheable || spanish.Hit {
		t.Errorf("answer leaked across reply languages: %+v", spanish)
	}
}

func TestCache_PutRefusesNonCacheable(t *testing.T) {
	c := New(Options{MaxSize: 16})

	if c.Put("grand-hotel", "", "Book a spa appointment", "Booked for 3pm") {
		t.Error("action request must not be written")
	}
	if c.Put("grand-hotel", "", "What's the WiFi password?", "") {
		t.Error("empty answer must not be written")
	}
	if c.Size() != 0 {
		t.Errorf("Size = %d, want 0", c.Size())
	}
	if got := c.Get("grand-hotel", "", "Book a spa appointment"); got.Cacheable || got.Hit {
		t.Errorf("lookup for action = %+v", got)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	clock := newClock()
	c := New(Options{MaxSize: 16, TTL: time.Minute, Now: clock.Now})

	c.Put("t", "", "pool hours?", "6AM to 10PM")
	clock.Advance(59 * time.Second)
	if !c.Get("t", "", "pool hours?").Hit {
		t.Fatal("entry expired early")
	}

	clock.Advance(time.Second)
	if c.Get("t", "", "pool hours?").Hit {
		t.Fatal("entry served at its expiry instant")
	}

	stats := c.Stats()
	if stats.Expirations != 1 {
		t.Errorf("Expirations = %d, want 1", stats.Expirations)
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	clock := newClock()
	lru := NewLRUCache(2, clock.Now)
	put := func(key string) {
		lru.Put(CacheEntry{Key: key, Answer: key, ExpiresAt: clock.Now().Add(time.Hour)})
	}

	put("a")
	put("b")
	if _, ok := lru.Get("a"); !ok {
		t.Fatal("a missing")
	}
	put("c")

	if _, ok := lru.Get("b"); ok {
		t.Error("least recently used entry b should have been evicted")
	}
	if _, ok := lru.Get("a"); !ok {
		t.Error("a should survive")
	}
	if lru.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", lru.Stats().Evictions)
	}
}

func TestStore_CapacityMatchesMaxSize(t *testing.T) {
	tests := []struct {
		maxSize, shards int
		wantShards      int
	}{
		{8, 4, 4},
		{20, 16, 10},
		{17, 16, 1},
		{3, 16, 3},
		{512, 16, 16},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.maxSize, tt.shards), func(t *testing.T) {
			clock := newClock()
			s := NewStore(tt.maxSize, tt.shards, clock.Now)
			if len(s.shards) != tt.wantShards {
				t.Errorf("shards = %d, want %d", len(s.shards), tt.wantShards)
			}
			total := 0
			for _, sh := range s.shards {
				total += sh.maxSize
			}
			if total != tt.maxSize {
				t.Errorf("total capacity = %d, want %d", total, tt.maxSize)
			}

			for i := 0; i < 10*tt.maxSize; i++ {
				s.Put(CacheEntry{Key: Fingerprint("t", "", fmt.Sprintf("question %d", i)), ExpiresAt: clock.Now().Add(time.Hour)})
			}
			if s.Size() > tt.maxSize {
				t.Errorf("Size = %d, want <= %d", s.Size(), tt.maxSize)
			}
		})
	}
}

func TestStats_HitRate(t *testing.T) {
	c := New(Options{MaxSize: 16})
	c.Put("t", "", "what's the wifi password", "x")
	c.Get("t", "", "what's the wifi password")
	c.Get("t", "", "is there parking")

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("Hits/Misses = %d/%d, want 1/1", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", stats.HitRate)
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	clock := newClock()
	path := filepath.Join(t.TempDir(), "cache", "responses.json")

	src := New(Options{MaxSize: 16, Now: clock.Now})
	src.Put("t", "", "what's the wifi password", "Welcome2026!")
	src.Put("t", "", "pool hours", "6AM to 10PM")
	if err := NewSnapshot(path, src, nil).Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	dst := New(Options{MaxSize: 16, Now: clock.Now})
	n, err := NewSnapshot(path, dst, nil).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 2 {
		t.Fatalf("loaded %d entries, want 2", n)
	}
	if got := dst.Get("t", "", "What's the WiFi password?"); got.Answer != "Welcome2026!" {
		t.Errorf("restored answer = %q", got.Answer)
	}
}

func TestSnapshot_SkipsExpired(t *testing.T) {
	clock := newClock()
	path := filepath.Join(t.TempDir(), "responses.json")

	src := New(Options{MaxSize: 16, TTL: time.Minute, Now: clock.Now})
	src.Put("t", "", "pool hours", "6AM to 10PM")
	if err := NewSnapshot(path, src, nil).Save(); err != nil {
		t.Fatal(err)
	}

	clock.Advance(2 * time.Minute)
	dst := New(Options{MaxSize: 16, Now: clock.Now})
	n, err := NewSnapshot(path, dst, nil).Load()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || dst.Size() != 0 {
		t.Errorf("expired entries restored: n=%d size=%d", n, dst.Size())
	}
}

func TestSnapshot_MissingAndCorrupted(t *testing.T) {
	dir := t.TempDir()
	c := New(Options{MaxSize: 16})

	n, err := NewSnapshot(filepath.Join(dir, "absent.json"), c, nil).Load()
	if err != nil || n != 0 {
		t.Fatalf("missing file: n=%d err=%v", n, err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	n, err = NewSnapshot(bad, c, nil).Load()
	if err != nil || n != 0 {
		t.Fatalf("corrupted file: n=%d err=%v", n, err)
	}
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Error("corrupted snapshot should be moved aside")
	}
}

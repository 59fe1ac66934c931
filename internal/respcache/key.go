package respcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// keyRequest is the canonical form hashed into a fingerprint
type keyRequest struct {
	Tenant   string `json:"tenant"`
	Language string `json:"language,omitempty"`
	Question string `json:"question"`
}

// Normalize case-folds the message, collapses runs of whitespace, and drops
// trailing sentence punctuation so "What's the WiFi password?" and
// "what's the  wifi password" share an entry.
func Normalize(message string) string {
	folded := strings.Join(strings.Fields(strings.ToLower(message)), " ")
	return strings.TrimRight(folded, "?!.¿？！。 ")
}

// NormalizeLanguage folds a reply-language hint so "Spanish" and
// " spanish" select the same partition. Empty means no hint.
func NormalizeLanguage(language string) string {
	return strings.Join(strings.Fields(strings.ToLower(language)), " ")
}

// Fingerprint hashes the normalized question together with the tenant and
// reply language, so the same question against two knowledge bases or in
// two languages never collides.
func Fingerprint(tenant, language, message string) string {
	data, _ := json.Marshal(keyRequest{
		Tenant:   tenant,
		Language: NormalizeLanguage(language),
		Question: Normalize(message),
	})
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

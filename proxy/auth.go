package proxy

import (
	"net/http"
	"strings"

	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

// clientCredential extracts the client-presented API key from the
// idiomatic header or query parameter for the request's wire format
// (spec.md §6): x-api-key for Anthropic, ?key= or Bearer for Gemini,
// Bearer for OpenAI.
func clientCredential(r *http.Request, format types.Format) string {
	switch format {
	case types.FormatAnthropic:
		return r.Header.Get("x-api-key")
	case types.FormatGemini:
		if key := r.URL.Query().Get("key"); key != "" {
			return key
		}
		return bearerToken(r)
	default:
		return bearerToken(r)
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(h, prefix) {
		return strings.TrimPrefix(h, prefix)
	}
	return h
}

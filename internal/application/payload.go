package application

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ParseQRPayload extracts the passenger ID from a scanned QR payload. A JSON
// object yields its userId, else its id; an object with neither, and anything
// that is not a JSON object, is taken verbatim. ok is false when the payload
// is blank.
func ParseQRPayload(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "{") {
		var obj map[string]any
		dec := json.NewDecoder(bytes.NewReader([]byte(text)))
		dec.UseNumber()
		if err := dec.Decode(&obj); err == nil {
			if id := idField(obj, "userId"); id != "" {
				return id, true
			}
			if id := idField(obj, "id"); id != "" {
				return id, true
			}
		}
	}
	return text, text != ""
}

// idField returns a string or numeric field as written in the payload.
func idField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

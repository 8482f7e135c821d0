package telemetry

import (
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxAttrString = 512
	maxAttrList   = 32
)

// Key fragments that suggest the value is document text or a secret.
var deniedKeyParts = []string{
	"text", "report", "content", "snippet",
	"authorization", "api_key", "token",
	"email", "phone", "iban", "credit_card", "passport",
}

// SafeAttributes turns pipeline counters and labels into span attributes,
// sorted by key. Keys that look like text or secrets are dropped, as are
// values other than int, string and []string. Strings longer than 512
// bytes are dropped and lists are cut to 32 entries.
func SafeAttributes(values map[string]interface{}) []attribute.KeyValue {
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		if !deniedKey(k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		switch v := values[k].(type) {
		case int:
			attrs = append(attrs, attribute.Int(k, v))
		case string:
			if len(v) <= maxAttrString {
				attrs = append(attrs, attribute.String(k, v))
			}
		case []string:
			attrs = append(attrs, attribute.StringSlice(k, v[:min(len(v), maxAttrList)]))
		}
	}
	return attrs
}

func deniedKey(k string) bool {
	lk := strings.ToLower(k)
	for _, part := range deniedKeyParts {
		if strings.Contains(lk, part) {
			return true
		}
	}
	return false
}

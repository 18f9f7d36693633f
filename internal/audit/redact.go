package audit

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// RedactedValue replaces the value of every sensitive key.
const RedactedValue = "[REDACTED]"

var sensitiveKeys = []string{"password", "secret", "token", "api_key", "apikey", "credential", "private_key"}

var emailPattern = regexp.MustCompile(`([A-Za-z0-9._%+-]+)@([A-Za-z0-9.-]+\.[A-Za-z]{2,})`)

// Redact returns a copy of snapshot with sensitive keys replaced and email
// addresses masked, descending into nested maps and slices. The input is not
// modified.
func Redact(snapshot map[string]any) map[string]any {
	if snapshot == nil {
		return nil
	}
	out := make(map[string]any, len(snapshot))
	for k, v := range snapshot {
		if sensitiveKey(k) {
			out[k] = RedactedValue
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Redact(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}
		return out
	case string:
		return MaskEmails(val)
	}
	return v
}

func sensitiveKey(k string) bool {
	k = strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// MaskEmails keeps the first two characters of each address's local part:
// jane.doe@example.com becomes ja***@example.com.
func MaskEmails(s string) string {
	return emailPattern.ReplaceAllStringFunc(s, func(addr string) string {
		m := emailPattern.FindStringSubmatch(addr)
		local := m[1]
		if len(local) > 2 {
			local = local[:2]
		}
		return local + "***@" + m[2]
	})
}

// Snapshot captures v as a canonical map through its JSON encoding. A nil v
// yields a nil snapshot.
func Snapshot(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if string(data) == "null" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("snapshot of %T is not a JSON object: %w", v, err)
	}
	return out, nil
}

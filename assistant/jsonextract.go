package assistant

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	jsonFence    = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	genericFence = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// extractJSON pulls the first JSON object out of model output. Models wrap
// JSON in prose and code fences, so it tries, in order: the whole text, any
// ```json block, any fenced block, the outermost {...} span and the
// outermost [...] span. An array yields its first element.
func extractJSON(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	if obj, ok := decodeObject(text); ok {
		return obj, true
	}

	for _, re := range []*regexp.Regexp{jsonFence, genericFence} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			candidate := strings.TrimSpace(m[1])
			if candidate == "" {
				continue
			}
			if !strings.HasPrefix(candidate, "{") && !strings.HasPrefix(candidate, "[") {
				candidate = "{" + candidate + "}"
			}
			if obj, ok := decodeObject(candidate); ok {
				return obj, true
			}
		}
	}

	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(text, pair[0])
		end := strings.LastIndex(text, pair[1])
		if start == -1 || end <= start {
			continue
		}
		if obj, ok := decodeObject(text[start : end+1]); ok {
			return obj, true
		}
	}
	return nil, false
}

func decodeObject(s string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case []any:
		if len(t) > 0 {
			if obj, ok := t[0].(map[string]any); ok {
				return obj, true
			}
		}
	}
	return nil, false
}

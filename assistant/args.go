package assistant

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/DhimiMohamed/taskmanager/task"
)

// intArg reads an integer argument. Models send JSON numbers or numeric
// strings interchangeably, so both are accepted.
func intArg(args map[string]any, key string) (int64, bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, true, fmt.Errorf("%s must be a whole number, got %v", key, n)
		}
		return int64(n), true, nil
	case int:
		return int64(n), true, nil
	case int64:
		return n, true, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, true, fmt.Errorf("%s must be a whole number, got %v", key, n)
		}
		return i, true, nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false, nil
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, true, fmt.Errorf("%s must be a whole number, got %q", key, n)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("%s must be a whole number, got %v", key, v)
	}
}

// strArg reads a string argument, trimming surrounding space.
func strArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// statusArg reads a status given as its index (0, 1, 2) or its name.
// valid is false when the argument is present but names no status.
func statusArg(args map[string]any, key string) (st task.Status, present, valid bool) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", false, false
	}
	if s, isStr := raw.(string); isStr {
		if st := task.Status(strings.TrimSpace(strings.ToLower(s))); st.Valid() {
			return st, true, true
		}
	}
	i, _, err := intArg(args, key)
	if err != nil {
		return "", true, false
	}
	st, valid = task.StatusFromIndex(int(i))
	return st, true, valid
}

func invalidStatus(raw any) *Result {
	return failure("invalid_status",
		fmt.Sprintf("Invalid status '%v'. Valid options are: 0=pending, 1=in_progress, 2=completed", raw))
}

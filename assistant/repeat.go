package assistant

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// errRepeatedCall is reported to the model instead of running a tool call
// that already ran with the same arguments in this request.
const errRepeatedCall = "this exact call already ran; use its earlier result"

// repeatGuard remembers the tool calls made while answering one request so a
// model stuck in a loop cannot create the same task twice.
type repeatGuard struct {
	seen map[string]bool
}

func newRepeatGuard() *repeatGuard {
	return &repeatGuard{seen: make(map[string]bool)}
}

// first records the call and reports whether it is new.
func (g *repeatGuard) first(name string, args map[string]any) bool {
	key := callKey(name, args)
	if g.seen[key] {
		return false
	}
	g.seen[key] = true
	return true
}

// callKey identifies a call by tool name and arguments. encoding/json sorts
// map keys, so equal maps hash equally.
func callKey(name string, args map[string]any) string {
	b, err := json.Marshal(args)
	if err != nil {
		b = []byte(err.Error())
	}
	sum := sha256.Sum256(b)
	return name + ":" + hex.EncodeToString(sum[:8])
}

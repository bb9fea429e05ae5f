// Package oracle defines the text-generation oracle channel and the
// defensive decoding applied to its replies.
//
// The oracle is an untrusted black box: replies may wrap a JSON object
// in arbitrary prose, may be malformed, or may not arrive at all. Every
// consumer decodes replies through Decode and substitutes a documented
// default on failure; decode errors never surface past this package.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnavailable indicates the oracle channel itself failed (transport,
// auth, rate limit), as opposed to an unparseable reply.
var ErrUnavailable = errors.New("oracle unavailable")

// Oracle generates free-form text from a system and user prompt.
type Oracle interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Decode extracts the first embedded JSON object from a free-form reply
// and unmarshals it into target. It reports whether decoding succeeded;
// on failure the caller discards target and applies its documented
// default.
func Decode(reply string, target any) bool {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(reply[start:end+1]), target) == nil
}

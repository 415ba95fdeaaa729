package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed is returned when a reply holds no decodable JSON, either
// directly or inside a markdown code fence.
var ErrParseFailed = errors.New("failed to parse response")

var jsonFence = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// Parse unmarshals content into T, retrying with the body of the first
// markdown code fence when the content itself is not JSON.
func Parse[T any](content string) (T, error) {
	var out T
	content = strings.TrimSpace(content)

	if err := json.Unmarshal([]byte(content), &out); err == nil {
		return out, nil
	}

	if m := jsonFence.FindStringSubmatch(content); len(m) >= 2 {
		var fenced T
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &fenced); err == nil {
			return fenced, nil
		}
	}

	return out, fmt.Errorf("%w: %.200s", ErrParseFailed, content)
}

// ParseResult decodes a model reply into a Result tagged with SourceAPI.
// A reply that decodes but carries no overallQuality is treated as
// unparseable.
func ParseResult(content string) (*Result, error) {
	r, err := Parse[Result](content)
	if err != nil {
		return nil, err
	}
	if r.OverallQuality == "" {
		return nil, fmt.Errorf("%w: missing overallQuality", ErrParseFailed)
	}
	r.Source = SourceAPI
	r.Simulated = false
	r.APIError = ""
	r.CredentialMissing = false
	r.normalize()
	return &r, nil
}

// Package classify decides whether an assistant reply is conversational
// text or an embedded build artifact, and extracts the artifact payload.
//
// Detection is a textual heuristic: a reply whose trimmed text starts with
// "{" or with a code fence tagged json is treated as a build. False
// positives and negatives are possible; the payload is never parsed here.
package classify

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/1-kabir/cfm/internal/types"
)

// DefaultPreviewLength is the number of characters shown for an artifact.
const DefaultPreviewLength = 200

const fence = "```"

// Kind is the classification outcome.
type Kind string

const (
	KindPlain    Kind = "plain"
	KindArtifact Kind = "artifact"
)

// ErrExtraction marks a reply that looked like a build but whose payload
// could not be cut out.
var ErrExtraction = errors.New("build artifact extraction failed")

// ExtractionError describes why extraction failed.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrExtraction, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return ErrExtraction }

// Reply is a classified assistant reply. Text is the body to show for plain
// replies; Artifact is set only for KindArtifact.
type Reply struct {
	Kind     Kind
	Text     string
	Artifact *types.BuildArtifact
}

// Classifier applies the heuristic with a fixed preview length.
type Classifier struct {
	previewLength int
}

// New returns a Classifier. Non-positive lengths use DefaultPreviewLength.
func New(previewLength int) *Classifier {
	if previewLength <= 0 {
		previewLength = DefaultPreviewLength
	}
	return &Classifier{previewLength: previewLength}
}

// Classify runs the default classifier.
func Classify(raw string) (Reply, error) {
	return New(DefaultPreviewLength).Classify(raw)
}

// PreviewLength reports the configured preview length.
func (c *Classifier) PreviewLength() int {
	return c.previewLength
}

// Classify returns the reply's classification. On extraction failure it
// returns a plain Reply holding the raw text truncated to the preview
// length, together with an *ExtractionError.
func (c *Classifier) Classify(raw string) (Reply, error) {
	trimmed := strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(trimmed, "{"):
		return c.artifact(trimmed, false, ""), nil

	case strings.HasPrefix(trimmed, fence) && strings.EqualFold(fenceTag(trimmed), "json"):
		payload, tag, err := ExtractFenced(trimmed)
		if err != nil {
			return Reply{Kind: KindPlain, Text: Truncate(trimmed, c.previewLength)}, err
		}
		return c.artifact(payload, true, strings.ToLower(tag)), nil

	default:
		return Reply{Kind: KindPlain, Text: raw}, nil
	}
}

func (c *Classifier) artifact(payload string, fenced bool, language string) Reply {
	return Reply{
		Kind: KindArtifact,
		Text: payload,
		Artifact: &types.BuildArtifact{
			Payload:  payload,
			Fenced:   fenced,
			Language: language,
			Preview:  Truncate(payload, c.previewLength),
		},
	}
}

// ExtractFenced returns the trimmed text between the first pair of code
// fences in s, along with the opener's language tag (possibly empty).
func ExtractFenced(s string) (payload, tag string, err error) {
	open := strings.Index(s, fence)
	if open < 0 {
		return "", "", &ExtractionError{Reason: "no opening fence"}
	}
	rest := s[open+len(fence):]
	tag = leadingTag(rest)
	body := rest[len(tag):]

	end := strings.Index(body, fence)
	if end < 0 {
		return "", tag, &ExtractionError{Reason: "no closing fence"}
	}
	payload = strings.TrimSpace(body[:end])
	if payload == "" {
		return "", tag, &ExtractionError{Reason: "empty fenced block"}
	}
	return payload, tag, nil
}

// fenceTag returns the language tag of the fence opening s.
func fenceTag(s string) string {
	return leadingTag(strings.TrimPrefix(s, fence))
}

// leadingTag returns the run of characters before the first space,
// backtick or opening bracket.
func leadingTag(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '`' || r == '{' || r == '['
	})
	if end < 0 {
		return s
	}
	return s[:end]
}

// Truncate returns the first n characters of s.
func Truncate(s string, n int) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

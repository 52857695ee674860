package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/1-kabir/cfm/pkg/backend"
)

// decode unmarshals a response body into v. Some backend builds serialise
// an already-encoded JSON document as a JSON string ("{\"id\": 5}"), so a
// string body is unwrapped once and decoded again.
func decode(body []byte, v any) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	err := json.Unmarshal(body, v)
	if err == nil {
		return nil
	}
	if body[0] != '"' {
		return fmt.Errorf("%w: %v", backend.ErrMalformedResponse, err)
	}
	var inner string
	if uerr := json.Unmarshal(body, &inner); uerr != nil {
		return fmt.Errorf("%w: %v", backend.ErrMalformedResponse, uerr)
	}
	if uerr := json.Unmarshal([]byte(inner), v); uerr != nil {
		return fmt.Errorf("%w: %v", backend.ErrMalformedResponse, uerr)
	}
	return nil
}

// looseResponse recovers the reply text from a {"response": "..."} envelope
// whose value was concatenated without escaping, which leaves quotes and
// newlines raw and the document unparseable.
func looseResponse(body []byte) (string, bool) {
	s := strings.TrimSpace(string(body))
	var inner string
	if strings.HasPrefix(s, `"`) && json.Unmarshal([]byte(s), &inner) == nil {
		s = strings.TrimSpace(inner)
	}
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return "", false
	}
	key := strings.Index(s, `"response"`)
	if key < 0 {
		return "", false
	}
	rest := strings.TrimLeft(s[key+len(`"response"`):], " \t\r\n")
	if !strings.HasPrefix(rest, ":") {
		return "", false
	}
	rest = strings.TrimLeft(rest[1:], " \t\r\n")
	if !strings.HasPrefix(rest, `"`) {
		return "", false
	}
	rest = strings.TrimRight(strings.TrimSuffix(rest, "}"), " \t\r\n")
	if len(rest) < 2 || !strings.HasSuffix(rest, `"`) {
		return "", false
	}
	return rest[1 : len(rest)-1], true
}

package mail

import (
	"encoding/base64"
	"strings"

	"google.golang.org/api/gmail/v1"
)

// decodeBase64URL decodes Gmail's base64url payload encoding. The data
// arrives unpadded with the url-safe alphabet; normalize it to standard
// base64 before decoding. Malformed or empty input decodes to "".
func decodeBase64URL(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return ""
	}
	return string(data)
}

// ExtractPlainText walks a message's part tree and returns the best-effort
// plain-text body. Inline data on the node itself wins; otherwise the first
// immediate "text/plain" child is used; otherwise children that themselves
// have sub-parts are searched depth-first. Returns "" when nothing matches.
func ExtractPlainText(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if payload.Body != nil && payload.Body.Data != "" {
		return decodeBase64URL(payload.Body.Data)
	}
	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" {
			if part.Body == nil {
				return ""
			}
			return decodeBase64URL(part.Body.Data)
		}
	}
	for _, part := range payload.Parts {
		if len(part.Parts) > 0 {
			if body := ExtractPlainText(part); body != "" {
				return body
			}
		}
	}
	return ""
}

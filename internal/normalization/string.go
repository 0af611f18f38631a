package normalization

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const pathCutset = " \t\r\n/"

func ParseInputString(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

func ParseInputStringPtr(input *string) *string {
	if input == nil {
		return nil
	}
	normalized := ParseInputString(*input)
	return &normalized
}

// Path trims surrounding whitespace and slashes, applies Unicode NFC and lowercases.
// Every reserved-path comparison must go through this function on both sides.
func Path(input string) string {
	p := strings.Trim(input, pathCutset)
	if p == "" {
		return ""
	}
	p = norm.NFC.String(p)
	return strings.ToLower(p)
}

// FirstSegment returns the leading segment of a normalized path.
func FirstSegment(input string) string {
	p := Path(input)
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

// JoinPath joins dotted field paths, skipping empty parts.
func JoinPath(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), ".")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ".")
}

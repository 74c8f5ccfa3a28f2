// Package identity encodes and parses the frontmatter block that ties a note to
// one calendar event occurrence.
//
// The block is the deduplication key of a note: two notes carrying equal blocks
// in the same folder are the same logical note, whatever their filenames.
package identity

import (
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// KeyEventID holds the calendar event identifier.
	KeyEventID = "calendarEventId"
	// KeyEventStart holds the canonical start of the occurrence.
	KeyEventStart = "calendarEventStart"

	delimiter = "---"
)

// timestamp matches dates and RFC 3339 style instants, which stay unquoted.
var timestamp = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([T ]\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:?\d{2})?)?$`)

// Block identifies one event occurrence.
type Block struct {
	EventID string
	Start   string
}

// Encode renders the block as a frontmatter section terminated by a newline.
func Encode(b Block) string {
	var sb strings.Builder
	sb.WriteString(delimiter + "\n")
	sb.WriteString(KeyEventID + ": " + quote(b.EventID) + "\n")
	sb.WriteString(KeyEventStart + ": " + quote(b.Start) + "\n")
	sb.WriteString(delimiter + "\n")
	return sb.String()
}

// Decode parses the frontmatter block at the very start of text. It reports
// false when there is no block, the block is unterminated, or either key is
// missing.
func Decode(text string) (Block, bool) {
	lines := strings.Split(strings.TrimPrefix(text, "\ufeff"), "\n")
	if strings.TrimSpace(lines[0]) != delimiter {
		return Block{}, false
	}

	fields := make(map[string]string, 2)
	terminated := false
	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == delimiter {
			terminated = true
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, dup := fields[key]; dup {
			continue
		}
		fields[key] = unquote(strings.TrimSpace(value))
	}
	if !terminated {
		return Block{}, false
	}

	id, okID := fields[KeyEventID]
	start, okStart := fields[KeyEventStart]
	if !okID || !okStart {
		return Block{}, false
	}
	return Block{EventID: id, Start: start}, true
}

// Matches reports whether text carries exactly the given block. Comparison is
// textual: equivalent instants written differently do not match.
func Matches(text string, b Block) bool {
	got, ok := Decode(text)
	return ok && got == b
}

func quote(v string) string {
	if needsQuote(v) {
		return strconv.Quote(v)
	}
	return v
}

func needsQuote(v string) bool {
	if v == "" || v != strings.TrimSpace(v) || strings.ContainsAny(v, "\n\r") {
		return true
	}
	if v[0] == '\'' {
		return true
	}
	return strings.ContainsAny(v, `:"#`) && !timestamp.MatchString(v)
}

func unquote(v string) string {
	if len(v) < 2 {
		return v
	}
	first, last := v[0], v[len(v)-1]
	if first != last || (first != '"' && first != '\'') {
		return v
	}
	var s string
	if err := yaml.Unmarshal([]byte(v), &s); err == nil {
		return s
	}
	return v[1 : len(v)-1]
}

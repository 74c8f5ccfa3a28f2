// Package filename derives note filenames that are safe on common filesystems.
package filename

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// MaxLength bounds a generated filename, in bytes.
	MaxLength = 255
	// UntitledMeeting replaces a title that sanitizes to nothing.
	UntitledMeeting = "Untitled meeting"

	separator = " - "
	extension = ".md"
)

var illegal = strings.NewReplacer(
	"/", "", "\\", "", ":", "", "*", "", "?", "",
	"\"", "", "<", "", ">", "", "|", "",
)

// Sanitize removes characters illegal on common filesystems, collapses
// whitespace runs to a single space and trims the result.
func Sanitize(text string) string {
	return strings.Join(strings.Fields(illegal.Replace(text)), " ")
}

// Generate returns "{date} - {title}.md".
func Generate(date, title string) string {
	return compose(date, title, "")
}

// GenerateWithSuffix returns "{date} - {title} ({n}).md", used to place a note
// next to an existing one.
func GenerateWithSuffix(date, title string, n int) string {
	return compose(date, title, " ("+strconv.Itoa(n)+")")
}

// compose truncates only the title so the date prefix, the suffix and the
// extension always survive. When they leave no room for any of the title, the
// name falls back to the untitled placeholder and may exceed MaxLength.
func compose(date, title, suffix string) string {
	t := Sanitize(title)
	if t == "" {
		t = UntitledMeeting
	}
	fixed := len(date) + len(separator) + len(suffix) + len(extension)
	if fixed+len(t) > MaxLength {
		t = strings.TrimRight(truncate(t, MaxLength-fixed), " ")
		if t == "" {
			t = UntitledMeeting
		}
	}
	return date + separator + t + suffix + extension
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

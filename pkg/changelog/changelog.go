// Package changelog writes the dated audit entry that records which fixes
// were applied to a document.
package changelog

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/walteh/docpatch/pkg/fix"
)

const (
	// Heading is the section heading entries are placed under
	Heading = "## Changelog"

	// Marker identifies entries written by docpatch
	Marker = "AI Update"

	separator = "---"
)

var (
	changelogHeading = regexp.MustCompile(`(?im)^##[ \t]+changelog[ \t\r]*$`)
	supportHeading   = regexp.MustCompile(`(?im)^##[ \t]+support\b`)
)

// Entry renders a single changelog entry without a trailing newline
func Entry(applied []fix.Applied, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "### %s - %s\n\n", now.Format("2006-01-02"), Marker)

	noun := "fixes"
	if len(applied) == 1 {
		noun = "fix"
	}
	fmt.Fprintf(&b, "Applied %d %s:\n\n", len(applied), noun)

	for i, a := range applied {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s: %s", a.Category, a.Rationale)
	}

	return b.String()
}

// Compose inserts one entry for applied into doc. An existing "## Changelog"
// section gets the entry directly under its heading. Otherwise a new section
// is placed before "## Support", or at the end of the document. Inserted
// lines use the document's line ending.
//
// Nothing changes when applied is empty.
func Compose(doc string, applied []fix.Applied, now time.Time) string {
	if len(applied) == 0 {
		return doc
	}

	nl := lineEnding(doc)
	entry := strings.ReplaceAll(Entry(applied, now), "\n", nl)

	if loc := changelogHeading.FindStringIndex(doc); loc != nil {
		end := loc[1]
		if end > 0 && doc[end-1] == '\r' {
			end--
		}
		lb, rest := cutLineBreak(doc[end:])
		// keep a blank line between the entry and whatever followed the heading
		if rest != "" && !startsWithLineBreak(rest) {
			lb += nl
		}
		return doc[:end] + nl + nl + entry + lb + rest
	}

	section := Heading + nl + nl + entry + nl

	if loc := supportHeading.FindStringIndex(doc); loc != nil {
		return doc[:loc[0]] + section + nl + separator + nl + nl + doc[loc[0]:]
	}

	body := strings.TrimRight(doc, "\r\n")
	if strings.TrimSpace(body) == "" {
		return section
	}
	return body + nl + nl + separator + nl + nl + section
}

// lineEnding reports "\r\n" for documents that use it and "\n" otherwise
func lineEnding(doc string) string {
	if strings.Contains(doc, "\r\n") {
		return "\r\n"
	}
	return "\n"
}

func startsWithLineBreak(s string) bool {
	return strings.HasPrefix(s, "\n") || strings.HasPrefix(s, "\r\n")
}

// cutLineBreak splits one leading line break off s
func cutLineBreak(s string) (string, string) {
	switch {
	case strings.HasPrefix(s, "\r\n"):
		return "\r\n", s[2:]
	case strings.HasPrefix(s, "\n"):
		return "\n", s[1:]
	default:
		return "", s
	}
}

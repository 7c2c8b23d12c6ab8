package veritas

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"
)

// TextEntityType identifies a formatted range style.
type TextEntityType string

const (
	// TextEntityBold marks a bold range.
	TextEntityBold TextEntityType = "bold"
)

// TextEntity marks a formatted range inside a message text. Offset and
// Length are measured in runes of the rendered text.
type TextEntity struct {
	Type   TextEntityType
	Offset int
	Length int
}

// ValidateTextEntities checks that every entity lies inside text and has a
// positive length.
func ValidateTextEntities(text string, entities []TextEntity) error {
	runes := utf8.RuneCountInString(text)
	for i, ent := range entities {
		if ent.Length <= 0 {
			return fmt.Errorf("entity %d: length must be positive", i)
		}
		if ent.Offset < 0 || ent.Offset+ent.Length > runes {
			return fmt.Errorf("entity %d: range [%d,%d) outside text of %d runes",
				i, ent.Offset, ent.Offset+ent.Length, runes)
		}
	}
	return nil
}

// RenderBoldMarkup converts a minimal HTML-flavored markup string into plain
// text plus bold entities. Only <b>...</b> pairs are interpreted; everything
// else is treated as literal text with HTML entities unescaped. Unbalanced
// tags are left in the output verbatim.
func RenderBoldMarkup(markup string) (string, []TextEntity) {
	var (
		out      strings.Builder
		entities []TextEntity
		runes    int
		rest     = markup
	)

	appendText := func(s string) {
		if s == "" {
			return
		}
		plain := html.UnescapeString(s)
		out.WriteString(plain)
		runes += utf8.RuneCountInString(plain)
	}

	for {
		open := strings.Index(rest, "<b>")
		if open < 0 {
			appendText(rest)
			break
		}
		close := strings.Index(rest[open+len("<b>"):], "</b>")
		if close < 0 {
			appendText(rest)
			break
		}

		appendText(rest[:open])

		inner := rest[open+len("<b>") : open+len("<b>")+close]
		start := runes
		appendText(inner)
		if runes > start {
			entities = append(entities, TextEntity{
				Type:   TextEntityBold,
				Offset: start,
				Length: runes - start,
			})
		}

		rest = rest[open+len("<b>")+close+len("</b>"):]
	}

	return out.String(), entities
}

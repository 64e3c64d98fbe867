// Package sheet fetches and parses published spreadsheet CSV exports.
//
// The parser deliberately tolerates malformed quoting instead of enforcing
// RFC 4180: published spreadsheet exports in the wild contain bare quotes
// and other irregularities that a validating parser would reject, and the
// directory and recipe sheets are maintained by hand.
package sheet

import "strings"

// Parse converts raw CSV text into rows of string cells. Fields may be
// quoted, quoted fields may span multiple physical lines, and a doubled
// quote inside a quoted field emits a literal quote. Line endings are
// normalized before scanning. Malformed input never fails; an unterminated
// quote simply runs to the end of the text.
func Parse(text string) [][]string {
	var rows [][]string
	var row []string
	var field strings.Builder
	inQuotes := false

	// Normalize line endings and guarantee a trailing newline so the final
	// field and row are flushed by the scan itself.
	normalized := strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n") + "\n"

	for i := 0; i < len(normalized); i++ {
		ch := normalized[i]

		if inQuotes {
			if ch == '"' {
				if i+1 < len(normalized) && normalized[i+1] == '"' {
					field.WriteByte('"')
					i++ // skip the second quote of the pair
				} else {
					inQuotes = false
				}
			} else {
				field.WriteByte(ch)
			}
			continue
		}

		switch ch {
		case '"':
			inQuotes = true
		case ',':
			row = append(row, field.String())
			field.Reset()
		case '\n':
			row = append(row, field.String())
			field.Reset()
			// A lone empty field is a trailing blank line, not a row.
			if len(row) > 1 || row[0] != "" {
				rows = append(rows, row)
			}
			row = nil
		default:
			field.WriteByte(ch)
		}
	}

	return rows
}

// Cell returns the trimmed cell at index i, or the empty string when the row
// is too short. Short rows are common in hand-maintained sheets and are not
// an error.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

package smtp

import "strings"

// ParsedFields holds the message fields extracted from header lines.
// Each field stays empty until its header is seen.
type ParsedFields struct {
	From    string
	To      string
	Subject string
}

// Complete reports whether all three fields have been found.
func (f ParsedFields) Complete() bool {
	return f.From != "" && f.To != "" && f.Subject != ""
}

// ExtractResult reports the outcome of feeding one header line to ExtractHeader.
type ExtractResult int

const (
	// ExtractIncomplete means more header lines are needed.
	ExtractIncomplete ExtractResult = iota
	// ExtractComplete means all three fields are now non-empty.
	ExtractComplete
	// ExtractInvalid means the header/body separator arrived before all
	// fields were found.
	ExtractInvalid
)

// ExtractHeader classifies one trimmed header line and updates at most one
// field. Field names match case-insensitively; the first occurrence of a
// field wins and later duplicates are ignored. Callers stop feeding lines
// once ExtractComplete or ExtractInvalid is returned.
func ExtractHeader(line string, fields *ParsedFields) ExtractResult {
	if strings.TrimSpace(line) == "" {
		return ExtractInvalid
	}

	lower := strings.ToLower(line)
	switch {
	case strings.HasPrefix(lower, "from:"):
		if fields.From == "" {
			fields.From = strings.TrimSpace(line[len("from:"):])
		}
	case strings.HasPrefix(lower, "to:"):
		if fields.To == "" {
			fields.To = strings.TrimSpace(line[len("to:"):])
		}
	case strings.HasPrefix(lower, "subject:"):
		if fields.Subject == "" {
			fields.Subject = strings.TrimSpace(line[len("subject:"):])
		}
	}

	if fields.Complete() {
		return ExtractComplete
	}
	return ExtractIncomplete
}

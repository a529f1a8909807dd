package smtp

import "testing"

func TestExtractHeader(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		want     ExtractResult
		expected ParsedFields
	}{
		{"from header", "From: alice@example.com", ExtractIncomplete, ParsedFields{From: "alice@example.com"}},
		{"to header", "To: bot@example.org", ExtractIncomplete, ParsedFields{To: "bot@example.org"}},
		{"subject header", "Subject: Hello", ExtractIncomplete, ParsedFields{Subject: "Hello"}},
		{"lowercase name", "subject: Hello", ExtractIncomplete, ParsedFields{Subject: "Hello"}},
		{"uppercase name", "SUBJECT: Hello", ExtractIncomplete, ParsedFields{Subject: "Hello"}},
		{"value whitespace trimmed", "Subject:   spaced out  ", ExtractIncomplete, ParsedFields{Subject: "spaced out"}},
		{"empty value", "Subject:", ExtractIncomplete, ParsedFields{}},
		{"unrelated header ignored", "Received: from somewhere", ExtractIncomplete, ParsedFields{}},
		{"display name kept", "From: Alice <alice@example.com>", ExtractIncomplete, ParsedFields{From: "Alice <alice@example.com>"}},
		{"blank line", "", ExtractInvalid, ParsedFields{}},
		{"whitespace only line", "   ", ExtractInvalid, ParsedFields{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fields ParsedFields
			got := ExtractHeader(tt.line, &fields)
			if got != tt.want {
				t.Errorf("ExtractHeader(%q) = %v, want %v", tt.line, got, tt.want)
			}
			if fields != tt.expected {
				t.Errorf("fields = %+v, want %+v", fields, tt.expected)
			}
		})
	}
}

func TestExtractHeaderFirstOccurrenceWins(t *testing.T) {
	var fields ParsedFields

	ExtractHeader("Subject: first", &fields)
	ExtractHeader("Subject: second", &fields)

	if fields.Subject != "first" {
		t.Errorf("Subject = %q, want first", fields.Subject)
	}
}

func TestExtractHeaderCompletion(t *testing.T) {
	var fields ParsedFields

	if got := ExtractHeader("From: a@example.com", &fields); got != ExtractIncomplete {
		t.Errorf("after From: result = %v, want ExtractIncomplete", got)
	}
	if got := ExtractHeader("To: b@example.com", &fields); got != ExtractIncomplete {
		t.Errorf("after To: result = %v, want ExtractIncomplete", got)
	}
	if got := ExtractHeader("Subject: done", &fields); got != ExtractComplete {
		t.Errorf("after Subject: result = %v, want ExtractComplete", got)
	}
}

func TestParsedFieldsComplete(t *testing.T) {
	tests := []struct {
		name   string
		fields ParsedFields
		want   bool
	}{
		{"empty", ParsedFields{}, false},
		{"from only", ParsedFields{From: "a"}, false},
		{"missing subject", ParsedFields{From: "a", To: "b"}, false},
		{"all set", ParsedFields{From: "a", To: "b", Subject: "c"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fields.Complete(); got != tt.want {
				t.Errorf("Complete() = %v, want %v", got, tt.want)
			}
		})
	}
}

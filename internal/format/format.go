package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Formatter abstracts output formatting.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter writes one JSON document per payload.
type JSONFormatter struct {
	Indent bool
}

// Write writes JSON payload to a writer.
func (f JSONFormatter) Write(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(payload)
}

// Field is one line of plain output.
type Field struct {
	Key   string
	Value any
}

// Fields is an ordered list of key/value pairs.
type Fields []Field

// PlainFormatter writes Fields as "key: value" lines and anything else with
// its default formatting.
type PlainFormatter struct{}

// Write writes payload to a writer.
func (PlainFormatter) Write(w io.Writer, payload any) error {
	fields, ok := payload.(Fields)
	if !ok {
		_, err := fmt.Fprintf(w, "%v\n", payload)
		return err
	}
	var b strings.Builder
	for _, field := range fields {
		if field.Value == nil {
			continue
		}
		if s, ok := field.Value.(string); ok && s == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %v\n", field.Key, field.Value)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

package metrics

import "fmt"

// MalformedInputError reports a document that cannot be normalized.
// Doc is the zero-based position of the offending document.
type MalformedInputError struct {
	Doc    int
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed input document %d: %s", e.Doc, e.Reason)
	}
	return fmt.Sprintf("malformed input document %d: field %q: %s", e.Doc, e.Field, e.Reason)
}

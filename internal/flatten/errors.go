package flatten

import "fmt"

// SchemaError reports a raw record that is not usable at the structural
// level (not a JSON object at all). Records that merely lack optional
// sub-keys never produce a SchemaError.
type SchemaError struct {
	Index  int
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("record %d: %s", e.Index, e.Reason)
}

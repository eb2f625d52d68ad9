package audit

import "github.com/aretw0/audittrail/pkg/core"

// Change describes one content field whose value differs between two
// versions of a record.
type Change struct {
	FieldID     core.ID
	Name        string
	DisplayName string
	OldValue    string
	NewValue    string
}

// Diff compares newVersion against oldVersion field by field.
//
// A field is reported only when the old version carries a field of the same
// name, with the same field ID, and a textually different value. System
// fields are skipped. The result follows the field order of newVersion.
// The caller is responsible for materializing newVersion beforehand.
func Diff(newVersion, oldVersion *core.Record) []Change {
	if newVersion == nil || oldVersion == nil {
		return nil
	}

	var changes []Change
	seen := make(map[string]bool, len(newVersion.Fields))
	for _, nf := range newVersion.Fields {
		if nf.IsSystem() || seen[nf.Name] {
			continue
		}
		seen[nf.Name] = true

		of, ok := oldVersion.Field(nf.Name)
		if !ok || of.Value == nf.Value {
			continue
		}
		// Same name bound to another field: the schema changed, not the content.
		if of.ID != nf.ID {
			continue
		}

		changes = append(changes, Change{
			FieldID:     nf.ID,
			Name:        nf.Name,
			DisplayName: nf.Title(),
			OldValue:    of.Value,
			NewValue:    nf.Value,
		})
	}
	return changes
}

package audit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/audittrail/pkg/core"
)

// The Format functions render one audit line each. They never fail: a missing
// record renders as blank segments.

var lineBreaks = strings.NewReplacer("\r\n", `\n`, "\n", `\n`, "\r", `\n`)

// oneLine escapes line breaks so a value cannot split an audit line.
func oneLine(s string) string {
	return lineBreaks.Replace(s)
}

func storeOf(r *core.Record) string {
	if r == nil {
		return ""
	}
	return r.Store
}

func pathOf(r *core.Record) string {
	if r == nil {
		return ""
	}
	return r.Path
}

func nameOf(r *core.Record) string {
	if r == nil {
		return ""
	}
	return r.Name
}

// FormatIdentity renders the stable identity embedded in DELETE, SAVE and
// PUBLISH lines.
func FormatIdentity(r *core.Record) string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%s:%s, name: %s, language: %s, version: %d, id: %s",
		r.Store, r.Path, r.Name, r.Language, r.Version, r.ID)
}

// FormatCreate renders a creation under parent.
func FormatCreate(parent *core.Record, name string, id core.ID, templateName string) string {
	return fmt.Sprintf("CREATE: %s:%s/%s, id: %s, template: %s",
		storeOf(parent), pathOf(parent), name, id, templateName)
}

// FormatDelete renders a deletion.
func FormatDelete(r *core.Record) string {
	return "DELETE: " + FormatIdentity(r)
}

// FormatSave renders the SAVE summary line.
func FormatSave(r *core.Record) string {
	return "SAVE: " + FormatIdentity(r)
}

// FormatFieldChange renders one changed field of a save. A blank old value
// renders as empty.
func FormatFieldChange(r *core.Record, c Change) string {
	old := c.OldValue
	if strings.TrimSpace(old) == "" {
		old = ""
	}
	return fmt.Sprintf("SAVE: %s, ** [%s]: new: %s, old: %s",
		FormatIdentity(r), c.DisplayName, oneLine(c.NewValue), oneLine(old))
}

// CopyLine holds what a COPY or DUPLICATE line reports.
type CopyLine struct {
	Duplicate   bool
	Source      *core.Record
	Destination *core.Record
	Name        string
	ID          core.ID
	// Annotate appends the recursive flag; set when the source has children.
	Annotate  bool
	Recursive bool
}

// FormatCopy renders a copy or a duplicate.
func FormatCopy(l CopyLine) string {
	op := "COPY"
	if l.Duplicate {
		op = "DUPLICATE"
	}
	suffix := ""
	if l.Annotate {
		suffix = " recursive: " + strconv.FormatBool(l.Recursive)
	}
	return fmt.Sprintf("%s: %s:%s, destination: %s/%s, id: %s%s",
		op, storeOf(l.Source), pathOf(l.Source), pathOf(l.Destination), l.Name, l.ID, suffix)
}

// FormatMove renders a re-parenting.
func FormatMove(name string, oldParent, newParent *core.Record) string {
	return fmt.Sprintf("MOVE: [%s] from: %s:%s to: %s:%s",
		name, storeOf(oldParent), pathOf(oldParent), storeOf(newParent), pathOf(newParent))
}

// FormatRename renders a rename.
func FormatRename(r *core.Record, previousName string) string {
	return fmt.Sprintf("RENAME: %s:%s/%s, as: %s",
		storeOf(r), r.ParentPath(), previousName, nameOf(r))
}

// FormatSort renders a sort order change with raw values.
func FormatSort(r *core.Record, previous string) string {
	sortOrder := ""
	if r != nil {
		sortOrder = r.SortOrder
	}
	return fmt.Sprintf("SORT: %s:%s, new: %s, old: %s", storeOf(r), pathOf(r), sortOrder, previous)
}

// FormatTemplateChange renders a template swap.
func FormatTemplateChange(r *core.Record, target, source string) string {
	return fmt.Sprintf("TEMPLATE CHANGE: %s:%s, target: %s, source: %s", storeOf(r), pathOf(r), target, source)
}

// FormatTemplateFieldChange renders one structural change of a template swap.
func FormatTemplateFieldChange(action core.TemplateChangeAction, fieldName string) string {
	return fmt.Sprintf("** %s: %s", action, fieldName)
}

// FormatPublish renders a publish outcome for a resolved record.
func FormatPublish(op core.PublishOperation, r *core.Record) string {
	return fmt.Sprintf("PUBLISH [%s]: %s", op, FormatIdentity(r))
}

// FormatPublishID renders a publish outcome for a record known only by ID.
func FormatPublishID(op core.PublishOperation, id core.ID) string {
	return fmt.Sprintf("PUBLISH [%s]: %s", op, id)
}

// FormatPublishUnresolved renders a publish outcome whose source record is
// gone, with the explanation inline.
func FormatPublishUnresolved(op core.PublishOperation, id core.ID, explanation string) string {
	return fmt.Sprintf("PUBLISH [%s]: %s, msg: %s", op, id, oneLine(explanation))
}

// FormatExplanation renders a follow-up explanation line.
func FormatExplanation(explanation string) string {
	return "** " + oneLine(explanation)
}

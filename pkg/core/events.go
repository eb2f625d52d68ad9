package core

import (
	"context"
	"fmt"
)

// EventKind is the name under which an event is raised on the bus.
type EventKind string

const (
	KindCreating         EventKind = "record:creating"
	KindSaving           EventKind = "record:saving"
	KindDeleting         EventKind = "record:deleting"
	KindCopying          EventKind = "record:copying"
	KindMoving           EventKind = "record:moving"
	KindRenamed          EventKind = "record:renamed"
	KindSortOrderChanged EventKind = "record:sortorderchanged"
	KindTemplateChanged  EventKind = "record:templatechanged"
	KindPublishProcessed EventKind = "publish:recordprocessed"
)

// Kinds lists every event kind in registration order.
func Kinds() []EventKind {
	return []EventKind{
		KindCreating,
		KindSaving,
		KindDeleting,
		KindCopying,
		KindMoving,
		KindRenamed,
		KindSortOrderChanged,
		KindTemplateChanged,
		KindPublishProcessed,
	}
}

// Event is a mutation notification. The set of variants is closed: every
// implementation lives in this file.
type Event interface {
	Kind() EventKind
	String() string
	isEvent()
}

// Handler reacts to a raised event.
type Handler func(ctx context.Context, actor Actor, ev Event) error

// Subscriber registers handlers by event kind.
// The returned function removes the subscription.
type Subscriber interface {
	Subscribe(kind EventKind, h Handler) (unsubscribe func())
}

// Raiser delivers an event synchronously to the handlers subscribed to its kind.
type Raiser interface {
	Raise(ctx context.Context, actor Actor, ev Event) error
}

// CreatingEvent is raised before a record is materialized. Handlers may veto
// the creation by setting Cancel.
type CreatingEvent struct {
	Parent     *Record
	Name       string
	ID         ID
	TemplateID ID
	Cancel     bool
	Rejection  string
}

// SavingEvent carries the new version of a record about to be persisted.
type SavingEvent struct {
	Record *Record
}

// DeletingEvent carries the record about to be removed.
type DeletingEvent struct {
	Record *Record
}

// CopyingEvent is raised before Source is copied under Destination.
type CopyingEvent struct {
	Source      *Record
	Destination *Record
	Name        string
	NewID       ID
	Recursive   bool
}

// MovingEvent is raised before Record is re-parented.
type MovingEvent struct {
	Record      *Record
	OldParentID ID
	NewParentID ID
}

// RenamedEvent is raised after Record received its current name.
type RenamedEvent struct {
	Record       *Record
	PreviousName string
}

// SortOrderChangedEvent is raised after the sort order of Record changed.
type SortOrderChangedEvent struct {
	Record            *Record
	PreviousSortOrder string
}

// TemplateChangedEvent is raised after Record was bound to another template.
type TemplateChangedEvent struct {
	Record  *Record
	Changes *TemplateChangeList
}

// PublishProcessedEvent is raised by the publishing pipeline for every record
// it visited.
type PublishProcessedEvent struct {
	Context *PublishContext
}

func (*CreatingEvent) Kind() EventKind         { return KindCreating }
func (*SavingEvent) Kind() EventKind           { return KindSaving }
func (*DeletingEvent) Kind() EventKind         { return KindDeleting }
func (*CopyingEvent) Kind() EventKind          { return KindCopying }
func (*MovingEvent) Kind() EventKind           { return KindMoving }
func (*RenamedEvent) Kind() EventKind          { return KindRenamed }
func (*SortOrderChangedEvent) Kind() EventKind { return KindSortOrderChanged }
func (*TemplateChangedEvent) Kind() EventKind  { return KindTemplateChanged }
func (*PublishProcessedEvent) Kind() EventKind { return KindPublishProcessed }

func (*CreatingEvent) isEvent()         {}
func (*SavingEvent) isEvent()           {}
func (*DeletingEvent) isEvent()         {}
func (*CopyingEvent) isEvent()          {}
func (*MovingEvent) isEvent()           {}
func (*RenamedEvent) isEvent()          {}
func (*SortOrderChangedEvent) isEvent() {}
func (*TemplateChangedEvent) isEvent()  {}
func (*PublishProcessedEvent) isEvent() {}

func (e *CreatingEvent) String() string {
	return fmt.Sprintf("%s %s/%s", KindCreating, e.Parent.location(), e.Name)
}

func (e *SavingEvent) String() string {
	return fmt.Sprintf("%s %s", KindSaving, e.Record.location())
}

func (e *DeletingEvent) String() string {
	return fmt.Sprintf("%s %s", KindDeleting, e.Record.location())
}

func (e *CopyingEvent) String() string {
	return fmt.Sprintf("%s %s -> %s/%s", KindCopying, e.Source.location(), e.Destination.location(), e.Name)
}

func (e *MovingEvent) String() string {
	return fmt.Sprintf("%s %s", KindMoving, e.Record.location())
}

func (e *RenamedEvent) String() string {
	return fmt.Sprintf("%s %s", KindRenamed, e.Record.location())
}

func (e *SortOrderChangedEvent) String() string {
	return fmt.Sprintf("%s %s", KindSortOrderChanged, e.Record.location())
}

func (e *TemplateChangedEvent) String() string {
	return fmt.Sprintf("%s %s", KindTemplateChanged, e.Record.location())
}

func (e *PublishProcessedEvent) String() string {
	if e.Context == nil {
		return string(KindPublishProcessed)
	}
	return fmt.Sprintf("%s %s [%s]", KindPublishProcessed, e.Context.RecordID, e.Context.Result.Operation)
}

func (r *Record) location() string {
	if r == nil {
		return "<nil>"
	}
	return r.Store + ":" + r.Path
}

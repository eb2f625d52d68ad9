package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/audittrail/pkg/core"
)

func (e *Engine) onCreating(ctx context.Context, actor core.Actor, ev *core.CreatingEvent) error {
	assertf(ev != nil, "creating event is nil")
	assertf(ev.Parent != nil, "creating event for %q has no parent", ev.Name)

	if e.guardsDuplicates(actor) {
		vetoed, err := e.vetoDuplicate(ctx, actor, ev)
		if err != nil || vetoed {
			return err
		}
	}

	if !e.audited(core.KindCreating, ev.Parent) {
		return nil
	}

	templateName, err := e.templateName(core.WithLanguage(ctx, ev.Parent.Language), ev.Parent.Store, ev.TemplateID)
	if err != nil {
		return err
	}
	return e.emit(ctx, actor, core.KindCreating, FormatCreate(ev.Parent, ev.Name, ev.ID, templateName))
}

// templateName resolves a template record to its name, falling back to the
// raw identifier when the template is unknown.
func (e *Engine) templateName(ctx context.Context, store string, id core.ID) (string, error) {
	if id.IsZero() {
		return "", nil
	}
	tpl, err := e.store.Get(ctx, core.Ref{Store: store, ID: id})
	if errors.Is(err, core.ErrNotFound) {
		return id.String(), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve template %s: %w", id, err)
	}
	return tpl.Name, nil
}

func (e *Engine) onDeleting(ctx context.Context, actor core.Actor, ev *core.DeletingEvent) error {
	assertf(ev != nil && ev.Record != nil, "deleting event has no record")

	if !e.audited(core.KindDeleting, ev.Record) {
		return nil
	}
	return e.emit(ctx, actor, core.KindDeleting, FormatDelete(ev.Record))
}

func (e *Engine) onSaving(ctx context.Context, actor core.Actor, ev *core.SavingEvent) error {
	assertf(ev != nil && ev.Record != nil, "saving event has no record")

	rec := ev.Record
	if !e.audited(core.KindSaving, rec) {
		return nil
	}

	baseline, err := e.store.Get(ctx, core.Ref{
		Store:    rec.Store,
		ID:       rec.ID,
		Language: rec.Language,
		Version:  rec.Version,
	})
	if errors.Is(err, core.ErrNotFound) {
		e.logger.Debug("save without persisted baseline", "record", rec.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load baseline of %s: %w", rec.ID, err)
	}

	if err := e.store.ReadAll(ctx, rec); err != nil {
		return fmt.Errorf("failed to read fields of %s: %w", rec.ID, err)
	}

	changes := Diff(rec, baseline)
	if len(changes) == 0 {
		return nil
	}

	if ShouldEmitHeader(rec.Statistics.Created, baseline.Statistics.Updated, rec.Statistics.Updated, e.config.HeaderThreshold) {
		if err := e.emit(ctx, actor, core.KindSaving, FormatSave(rec)); err != nil {
			return err
		}
	}
	for _, c := range changes {
		if err := e.emit(ctx, actor, core.KindSaving, FormatFieldChange(rec, c)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) onCopying(ctx context.Context, actor core.Actor, ev *core.CopyingEvent) error {
	assertf(ev != nil && ev.Source != nil, "copying event has no source")

	src := ev.Source
	if !e.audited(core.KindCopying, src) {
		return nil
	}

	children, err := e.store.Children(core.WithLanguage(ctx, src.Language), src.Store, src.ID)
	if err != nil {
		return fmt.Errorf("failed to list children of %s: %w", src.ID, err)
	}

	line := CopyLine{
		Duplicate:   ev.Destination != nil && src.ParentPath() == ev.Destination.Path && src.Name != ev.Name,
		Source:      src,
		Destination: ev.Destination,
		Name:        ev.Name,
		ID:          ev.NewID,
		Annotate:    len(children) > 0,
		Recursive:   ev.Recursive,
	}
	return e.emit(ctx, actor, core.KindCopying, FormatCopy(line))
}

func (e *Engine) onMoving(ctx context.Context, actor core.Actor, ev *core.MovingEvent) error {
	assertf(ev != nil && ev.Record != nil, "moving event has no record")

	rec := ev.Record
	if !e.audited(core.KindMoving, rec) {
		return nil
	}

	ctx = core.WithLanguage(ctx, rec.Language)
	oldParent, err := e.lookup(ctx, rec.Store, ev.OldParentID)
	if err != nil {
		return err
	}
	newParent, err := e.lookup(ctx, rec.Store, ev.NewParentID)
	if err != nil {
		return err
	}
	if oldParent == nil || newParent == nil || oldParent.ID == newParent.ID {
		return nil
	}
	return e.emit(ctx, actor, core.KindMoving, FormatMove(rec.Name, oldParent, newParent))
}

// lookup returns nil without error when the record does not exist.
func (e *Engine) lookup(ctx context.Context, store string, id core.ID) (*core.Record, error) {
	if id.IsZero() {
		return nil, nil
	}
	rec, err := e.store.Get(ctx, core.Ref{Store: store, ID: id})
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", id, err)
	}
	return rec, nil
}

func (e *Engine) onRenamed(ctx context.Context, actor core.Actor, ev *core.RenamedEvent) error {
	assertf(ev != nil && ev.Record != nil, "renamed event has no record")

	if ev.PreviousName == ev.Record.Name || !e.audited(core.KindRenamed, ev.Record) {
		return nil
	}
	return e.emit(ctx, actor, core.KindRenamed, FormatRename(ev.Record, ev.PreviousName))
}

func (e *Engine) onSortOrderChanged(ctx context.Context, actor core.Actor, ev *core.SortOrderChangedEvent) error {
	assertf(ev != nil && ev.Record != nil, "sort order event has no record")

	if !e.audited(core.KindSortOrderChanged, ev.Record) {
		return nil
	}
	return e.emit(ctx, actor, core.KindSortOrderChanged, FormatSort(ev.Record, ev.PreviousSortOrder))
}

func (e *Engine) onTemplateChanged(ctx context.Context, actor core.Actor, ev *core.TemplateChangedEvent) error {
	assertf(ev != nil && ev.Record != nil, "template event has no record")
	assertf(ev.Changes != nil, "template event for %s has no change list", ev.Record.ID)

	changes := ev.Changes
	if !e.audited(core.KindTemplateChanged, ev.Record) || changes.Source.ID == changes.Target.ID {
		return nil
	}

	if err := e.emit(ctx, actor, core.KindTemplateChanged,
		FormatTemplateChange(ev.Record, changes.Target.Name, changes.Source.Name)); err != nil {
		return err
	}
	for _, c := range changes.Changes {
		if c.Action != core.ActionDeleteField {
			continue
		}
		if err := e.emit(ctx, actor, core.KindTemplateChanged, FormatTemplateFieldChange(c.Action, c.SourceField.Name)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) onPublishProcessed(ctx context.Context, actor core.Actor, ev *core.PublishProcessedEvent) error {
	assertf(ev != nil && ev.Context != nil, "publish event has no context")

	pc := ev.Context
	op := pc.Result.Operation

	if op == core.PublishSkipped {
		// Only explicit republish attempts of this very record are reported.
		if pc.Options.CompareRevisions || pc.Options.RootID != pc.RecordID {
			return nil
		}
		line := FormatPublishID(op, pc.RecordID)
		if src, err := resolveSource(ctx, pc); err == nil {
			line = FormatPublish(op, src)
		} else if !errors.Is(err, core.ErrNotFound) {
			e.logger.Debug("publish source unavailable for skipped record", "record", pc.RecordID, "error", err)
		}
		if err := e.emit(ctx, actor, core.KindPublishProcessed, line); err != nil {
			return err
		}
		return e.emit(ctx, actor, core.KindPublishProcessed, FormatExplanation(pc.Result.Explanation))
	}

	src, err := resolveSource(ctx, pc)
	if errors.Is(err, core.ErrNotFound) {
		return e.emit(ctx, actor, core.KindPublishProcessed, FormatPublishUnresolved(op, pc.RecordID, pc.Result.Explanation))
	}
	if err != nil {
		return fmt.Errorf("failed to resolve publish source %s: %w", pc.RecordID, err)
	}
	return e.emit(ctx, actor, core.KindPublishProcessed, FormatPublish(op, src))
}

func resolveSource(ctx context.Context, pc *core.PublishContext) (*core.Record, error) {
	if pc.Source == nil {
		return nil, core.ErrNotFound
	}
	return pc.Source.SourceRecord(ctx, pc.RecordID)
}

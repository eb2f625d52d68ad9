package audit

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/aretw0/audittrail/pkg/core"
)

// NormalizeName returns the form under which sibling names collide: spaces
// become dashes, then the name is NFC-normalized and case-folded.
// A Caser is stateful, so each call gets its own.
func NormalizeName(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.ReplaceAll(name, " ", "-")))
}

func (e *Engine) guardsDuplicates(actor core.Actor) bool {
	return e.config.PreventDuplicateItemNames && equalFold(actor.Site, e.config.InteractiveSite)
}

// vetoDuplicate cancels the creation when another child of the parent already
// carries the proposed name.
func (e *Engine) vetoDuplicate(ctx context.Context, actor core.Actor, ev *core.CreatingEvent) (bool, error) {
	children, err := e.store.Children(core.WithLanguage(ctx, ev.Parent.Language), ev.Parent.Store, ev.Parent.ID)
	if err != nil {
		return false, fmt.Errorf("failed to list children of %s: %w", ev.Parent.ID, err)
	}

	proposed := NormalizeName(ev.Name)
	for _, child := range children {
		if child.ID == ev.ID || NormalizeName(child.Name) != proposed {
			continue
		}
		ev.Cancel = true
		ev.Rejection = fmt.Sprintf("Name %q is already in use. Please use another name for the item.", child.Name)
		e.metrics.Vetoes.Inc()
		e.logger.Warn("creation vetoed: duplicate name",
			"parent", ev.Parent.Path, "name", ev.Name, "existing", child.ID, "user", actor.Name())
		if e.notifier != nil {
			e.notifier.Alert(ctx, actor, ev.Rejection)
		}
		return true, nil
	}
	return false, nil
}

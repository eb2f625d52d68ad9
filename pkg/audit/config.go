package audit

import (
	"time"

	"golang.org/x/text/cases"

	"github.com/aretw0/audittrail/pkg/core"
)

// Config holds the switches read once at startup. YAML keys match the
// setting names.
type Config struct {
	// Enabled is the master switch. When false, Configure subscribes nothing.
	Enabled bool `yaml:"Enabled"`

	ItemCreating         bool `yaml:"ItemCreating"`
	ItemSaving           bool `yaml:"ItemSaving"`
	ItemDeleting         bool `yaml:"ItemDeleting"`
	ItemCopying          bool `yaml:"ItemCopying"`
	ItemMoving           bool `yaml:"ItemMoving"`
	ItemRenamed          bool `yaml:"ItemRenamed"`
	ItemSortOrderChanged bool `yaml:"ItemSortOrderChanged"`
	ItemTemplateChanged  bool `yaml:"ItemTemplateChanged"`
	ItemPublished        bool `yaml:"ItemPublished"`

	// PreventDuplicateItemNames enables the duplicate-name guard on creation.
	PreventDuplicateItemNames bool `yaml:"PreventDuplicateItemNames"`

	// LegacyTemplateGate additionally gates template changes by ItemDeleting,
	// for compatibility with deployments that relied on it.
	LegacyTemplateGate bool `yaml:"LegacyTemplateGate"`

	// PrimaryStore is the authoring store; only its records are audited.
	PrimaryStore string `yaml:"PrimaryStore"`

	// WebsiteStore is the store the public site reads from. The process runs
	// in an authoring environment iff it equals PrimaryStore.
	WebsiteStore string `yaml:"WebsiteStore"`

	// InteractiveSite is the site name of the editing UI, where the
	// duplicate-name guard applies.
	InteractiveSite string `yaml:"InteractiveSite"`

	// HeaderThreshold is the quiet period used to suppress SAVE summary lines.
	HeaderThreshold time.Duration `yaml:"HeaderThreshold"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:                   true,
		ItemCreating:              true,
		ItemSaving:                true,
		ItemDeleting:              true,
		ItemCopying:               true,
		ItemMoving:                true,
		ItemRenamed:               true,
		ItemSortOrderChanged:      false,
		ItemTemplateChanged:       true,
		ItemPublished:             false,
		PreventDuplicateItemNames: false,
		PrimaryStore:              "master",
		WebsiteStore:              "web",
		InteractiveSite:           "shell",
		HeaderThreshold:           2 * time.Second,
	}
}

// Switches returns the enable flag of every event kind.
func (c Config) Switches() map[core.EventKind]bool {
	template := c.ItemTemplateChanged
	if c.LegacyTemplateGate {
		template = template && c.ItemDeleting
	}
	return map[core.EventKind]bool{
		core.KindCreating:         c.ItemCreating,
		core.KindSaving:           c.ItemSaving,
		core.KindDeleting:         c.ItemDeleting,
		core.KindCopying:          c.ItemCopying,
		core.KindMoving:           c.ItemMoving,
		core.KindRenamed:          c.ItemRenamed,
		core.KindSortOrderChanged: c.ItemSortOrderChanged,
		core.KindTemplateChanged:  template,
		core.KindPublishProcessed: c.ItemPublished,
	}
}

// ShouldAudit reports whether mutations on rec are audited: only records of
// the primary store are.
func (c Config) ShouldAudit(rec *core.Record) bool {
	if rec == nil {
		return false
	}
	return equalFold(rec.Store, c.PrimaryStore)
}

// IsAuthoring reports whether the website reads from the primary store.
func (c Config) IsAuthoring() bool {
	return equalFold(c.WebsiteStore, c.PrimaryStore)
}

func equalFold(a, b string) bool {
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}

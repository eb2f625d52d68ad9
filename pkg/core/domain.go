// Record is the central entity of the domain.
package core

import (
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SystemFieldPrefix marks fields reserved for platform bookkeeping.
// Fields whose name starts with it are never treated as content.
const SystemFieldPrefix = "__"

// ID is the stable identifier of a record, a field or a template.
type ID string

// NewID returns a fresh random identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string { return string(id) }

// IsZero reports whether the identifier is empty.
func (id ID) IsZero() bool { return id == "" }

// Field is a single named value scoped to one record version.
// Two fields are the same field across versions iff their IDs match.
type Field struct {
	ID          ID     `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	DisplayName string `yaml:"displayName,omitempty" json:"displayName,omitempty"`
	Value       string `yaml:"value" json:"value"`
}

// IsSystem reports whether the field lives in the reserved system namespace.
func (f Field) IsSystem() bool {
	return strings.HasPrefix(f.Name, SystemFieldPrefix)
}

// Title returns the display name, falling back to the field name.
func (f Field) Title() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}
	return f.Name
}

// Statistics holds the bookkeeping timestamps of a record version.
type Statistics struct {
	Created time.Time `yaml:"created" json:"created"`
	Updated time.Time `yaml:"updated" json:"updated"`
}

// Record is a versioned content entity with identity, location, fields and
// membership in a named store ("master" for authoring, "web" for delivery).
type Record struct {
	ID         ID         `yaml:"id" json:"id"`
	Store      string     `yaml:"store" json:"store"`
	Path       string     `yaml:"path" json:"path"`
	Name       string     `yaml:"name" json:"name"`
	Language   string     `yaml:"language,omitempty" json:"language,omitempty"`
	Version    int        `yaml:"version,omitempty" json:"version,omitempty"`
	ParentID   ID         `yaml:"parent,omitempty" json:"parent,omitempty"`
	TemplateID ID         `yaml:"template,omitempty" json:"template,omitempty"`
	SortOrder  string     `yaml:"sortOrder,omitempty" json:"sortOrder,omitempty"`
	Fields     []Field    `yaml:"fields,omitempty" json:"fields,omitempty"`
	Statistics Statistics `yaml:"statistics" json:"statistics"`
}

// ParentPath returns the hierarchical location of the record's parent.
func (r *Record) ParentPath() string {
	if r == nil || r.Path == "" {
		return ""
	}
	return path.Dir(r.Path)
}

// Field returns the first field with the given name.
func (r *Record) Field(name string) (Field, bool) {
	if r == nil {
		return Field{}, false
	}
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Value returns the value of the named field, or "" when it is absent.
func (r *Record) Value(name string) string {
	f, _ := r.Field(name)
	return f.Value
}

// SetValue updates the named field, appending it when absent.
func (r *Record) SetValue(name, value string) {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			r.Fields[i].Value = value
			return
		}
	}
	r.Fields = append(r.Fields, Field{ID: NewID(), Name: name, Value: value})
}

// Ref returns the lookup key of this exact version.
func (r *Record) Ref() Ref {
	return Ref{Store: r.Store, ID: r.ID, Language: r.Language, Version: r.Version}
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Fields = append([]Field(nil), r.Fields...)
	return &c
}

// Ref addresses a record inside a store.
// A zero Language or Version matches any language or the latest version.
type Ref struct {
	Store    string
	ID       ID
	Language string
	Version  int
}

// Actor identifies who triggered a mutation and from which site.
type Actor struct {
	User string
	Site string
}

// AnonymousUser is reported when a mutation carries no acting user.
const AnonymousUser = "anonymous"

// Name returns the acting user, or AnonymousUser.
func (a Actor) Name() string {
	if a.User == "" {
		return AnonymousUser
	}
	return a.User
}

// Materialize appends the fields defined by template that the record does not
// carry yet, with empty values. Fields are matched by ID.
func (r *Record) Materialize(template *Record) {
	if r == nil || template == nil {
		return
	}
	for _, tf := range template.Fields {
		if _, ok := fieldByID(r.Fields, tf.ID); ok {
			continue
		}
		r.Fields = append(r.Fields, Field{ID: tf.ID, Name: tf.Name, DisplayName: tf.DisplayName})
	}
}

// SortRecords orders records by sort order, then by name, then by id.
// Numeric sort orders compare numerically; anything else compares as text.
func SortRecords(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.SortOrder != b.SortOrder {
			ai, errA := strconv.Atoi(a.SortOrder)
			bi, errB := strconv.Atoi(b.SortOrder)
			if errA == nil && errB == nil {
				return ai < bi
			}
			return a.SortOrder < b.SortOrder
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID.String() < b.ID.String()
	})
}

// Prefer reports whether candidate should replace current among the records
// matching one lookup. The higher version wins, then the preferred language,
// then the lowest language.
func Prefer(candidate, current *Record, language string) bool {
	if current == nil {
		return true
	}
	if candidate.Version != current.Version {
		return candidate.Version > current.Version
	}
	if language != "" && (candidate.Language == language) != (current.Language == language) {
		return candidate.Language == language
	}
	return candidate.Language < current.Language
}

package core

import "context"

// RecordStore is the read side of the content repository.
// Adhering to this interface keeps the audit engine independent of the
// underlying storage mechanism (memory, filesystem, SQL).
type RecordStore interface {
	// Get retrieves a record version. It returns ErrNotFound when nothing matches.
	Get(ctx context.Context, ref Ref) (*Record, error)

	// Children returns the direct children of a record, ordered by sort order then name.
	Children(ctx context.Context, store string, id ID) ([]*Record, error)

	// ReadAll materializes every field of the record, including fields that
	// were lazily omitted when it was loaded.
	ReadAll(ctx context.Context, rec *Record) error
}

// MutableStore extends RecordStore with persistence.
type MutableStore interface {
	RecordStore

	// Put persists a record version, replacing an existing one with the same Ref.
	Put(ctx context.Context, rec *Record) error

	// Remove deletes every version of a record.
	Remove(ctx context.Context, store string, id ID) error
}

// Watchable is implemented by stores that observe external edits and report
// them as events.
type Watchable interface {
	Watch(ctx context.Context, pattern string) (<-chan Event, error)
}

type securityKey struct{}

// DisableSecurity returns a context under which stores skip authorization
// checks. The parent context is left untouched, so the override ends as soon
// as the derived context goes out of scope.
func DisableSecurity(ctx context.Context) context.Context {
	return context.WithValue(ctx, securityKey{}, true)
}

// SecurityDisabled reports whether authorization checks are bypassed for ctx.
func SecurityDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(securityKey{}).(bool)
	return v
}

type languageKey struct{}

// WithLanguage returns a context under which stores resolve a record stored in
// several languages to the given one. Records missing in that language still
// resolve to another one.
func WithLanguage(ctx context.Context, language string) context.Context {
	return context.WithValue(ctx, languageKey{}, language)
}

// PreferredLanguage returns the language set with WithLanguage, if any.
func PreferredLanguage(ctx context.Context) string {
	v, _ := ctx.Value(languageKey{}).(string)
	return v
}

package core

import (
	"context"
	"errors"
)

// TemplateChangeAction classifies a structural change between two templates.
type TemplateChangeAction string

const (
	ActionChangeFieldID      TemplateChangeAction = "ChangeFieldID"
	ActionDeleteField        TemplateChangeAction = "DeleteField"
	ActionChangeFieldSharing TemplateChangeAction = "ChangeFieldSharing"
)

// Template identifies the schema a record is bound to.
type Template struct {
	ID   ID     `yaml:"id"`
	Name string `yaml:"name"`
}

// TemplateChange is one structural change applied to a record when its
// template is swapped.
type TemplateChange struct {
	Action      TemplateChangeAction `yaml:"action"`
	SourceField Field                `yaml:"sourceField"`
	TargetField Field                `yaml:"targetField,omitempty"`
}

// TemplateChangeList describes a template swap.
type TemplateChangeList struct {
	Source  Template         `yaml:"source"`
	Target  Template         `yaml:"target"`
	Changes []TemplateChange `yaml:"changes,omitempty"`
}

// PublishOperation is the outcome of publishing one record.
type PublishOperation string

const (
	PublishNone    PublishOperation = "None"
	PublishCreated PublishOperation = "Created"
	PublishUpdated PublishOperation = "Updated"
	PublishDeleted PublishOperation = "Deleted"
	PublishSkipped PublishOperation = "Skipped"
)

// PublishOptions mirrors the request that started a publish run.
type PublishOptions struct {
	CompareRevisions bool   `yaml:"compareRevisions"`
	RootID           ID     `yaml:"root"`
	SourceStore      string `yaml:"sourceStore"`
	TargetStore      string `yaml:"targetStore"`
	Language         string `yaml:"language,omitempty"`
}

// PublishResult is what the pipeline decided for a record.
type PublishResult struct {
	Operation   PublishOperation `yaml:"operation"`
	Explanation string           `yaml:"explanation,omitempty"`
}

// SourceResolver resolves records on the publishing source side.
// It returns ErrNotFound when the record no longer exists.
type SourceResolver interface {
	SourceRecord(ctx context.Context, id ID) (*Record, error)
}

// PublishContext is the per-record state handed out by the publishing pipeline.
type PublishContext struct {
	RecordID ID
	Options  PublishOptions
	Result   PublishResult
	Source   SourceResolver
}

// StoreSource resolves publish sources from a record store.
func StoreSource(store RecordStore, storeName, language string) SourceResolver {
	return &storeSource{store: store, storeName: storeName, language: language}
}

type storeSource struct {
	store     RecordStore
	storeName string
	language  string
}

func (s *storeSource) SourceRecord(ctx context.Context, id ID) (*Record, error) {
	if s.store == nil {
		return nil, errors.New("publish source has no record store")
	}
	return s.store.Get(ctx, Ref{Store: s.storeName, ID: id, Language: s.language})
}

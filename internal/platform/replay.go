package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/audittrail/pkg/core"
)

// Script is a sequence of mutations applied through the runtime service, the
// way an editor would perform them. Each step raises the same events the
// content repository raises, so the audit lines it produces are the ones a
// live system would write.
type Script struct {
	// Start is the clock value of the first step. Defaults to the current time.
	Start time.Time `yaml:"start,omitempty"`
	// Actor performs every step that does not name its own user.
	Actor ActorSpec `yaml:"actor"`
	Steps []Step    `yaml:"steps"`
}

// ActorSpec is the YAML form of core.Actor.
type ActorSpec struct {
	User string `yaml:"user"`
	Site string `yaml:"site,omitempty"`
}

// Step is one mutation. Op selects which of the other keys apply:
//
//	seed      record                     stores a record without raising events
//	create    parent, name, template
//	save      ref, fields
//	delete    ref
//	copy      ref, parent, name, deep
//	move      ref, parent
//	rename    ref, name
//	sort      ref, sortOrder
//	template  ref, template
//	publish   ref, publish
type Step struct {
	Op        string            `yaml:"op"`
	User      string            `yaml:"user,omitempty"`
	Site      string            `yaml:"site,omitempty"`
	After     time.Duration     `yaml:"after,omitempty"`
	Record    *core.Record      `yaml:"record,omitempty"`
	Ref       core.Ref          `yaml:"ref,omitempty"`
	Parent    core.Ref          `yaml:"parent,omitempty"`
	Name      string            `yaml:"name,omitempty"`
	Template  core.ID           `yaml:"template,omitempty"`
	Fields    map[string]string `yaml:"fields,omitempty"`
	SortOrder string            `yaml:"sortOrder,omitempty"`
	Deep      bool              `yaml:"deep,omitempty"`
	Publish   *PublishStep      `yaml:"publish,omitempty"`
}

// PublishStep describes the outcome the publishing pipeline reports.
type PublishStep struct {
	Options core.PublishOptions `yaml:"options"`
	Result  core.PublishResult  `yaml:"result"`
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Applied  int
	Rejected []string
}

// ReadScript decodes a script. Unknown keys are rejected.
func ReadScript(r io.Reader) (*Script, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var script Script
	if err := decoder.Decode(&script); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("invalid script: empty document")
		}
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	for i, step := range script.Steps {
		if _, ok := stepOps[step.Op]; !ok {
			return nil, fmt.Errorf("step %d: unknown op %q", i+1, step.Op)
		}
	}
	return &script, nil
}

type stepFunc func(ctx context.Context, rt *Runtime, actor core.Actor, step Step) error

var stepOps = map[string]stepFunc{
	"seed":     seedStep,
	"create":   createStep,
	"save":     saveStep,
	"delete":   deleteStep,
	"copy":     copyStep,
	"move":     moveStep,
	"rename":   renameStep,
	"sort":     sortStep,
	"template": templateStep,
	"publish":  publishStep,
}

// Replay applies script step by step. A creation vetoed by a handler is
// recorded and the replay continues; any other failure stops it.
func (rt *Runtime) Replay(ctx context.Context, script *Script) (ReplayResult, error) {
	var result ReplayResult

	now := script.Start
	if now.IsZero() {
		now = time.Now()
	}
	rt.clock = func() time.Time { return now }
	rt.Service.SetClock(rt.now)

	for i, step := range script.Steps {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		now = now.Add(step.After)

		actor := core.Actor{User: script.Actor.User, Site: script.Actor.Site}
		if step.User != "" {
			actor.User = step.User
		}
		if step.Site != "" {
			actor.Site = step.Site
		}

		fn, ok := stepOps[step.Op]
		if !ok {
			return result, fmt.Errorf("step %d: unknown op %q", i+1, step.Op)
		}
		err := fn(ctx, rt, actor, step)
		var rejected *core.RejectedError
		switch {
		case errors.As(err, &rejected):
			rt.logger.Info("step rejected", "step", i+1, "op", step.Op, "reason", rejected.Reason)
			result.Rejected = append(result.Rejected, rejected.Error())
		case err != nil:
			return result, fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		default:
			result.Applied++
		}
	}
	return result, nil
}

func seedStep(ctx context.Context, rt *Runtime, _ core.Actor, step Step) error {
	if step.Record == nil {
		return errors.New("seed needs a record")
	}
	rec := step.Record.Clone()
	if rec.ID.IsZero() {
		rec.ID = core.NewID()
	}
	if rec.Statistics.Created.IsZero() {
		rec.Statistics.Created = rt.now()
	}
	if rec.Statistics.Updated.IsZero() {
		rec.Statistics.Updated = rec.Statistics.Created
	}
	return rt.Store.Put(ctx, rec)
}

func createStep(ctx context.Context, rt *Runtime, actor core.Actor, step Step) error {
	_, err := rt.Service.Create(ctx, actor, step.Parent, step.Name, step.Template)
	return err
}

func saveStep(ctx context.Context, rt *Runtime, actor core.Actor, step Step) error {
	rec, err := rt.Store.Get(ctx, step.Ref)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", step.Ref.ID, err)
	}
	if err := rt.Store.ReadAll(ctx, rec); err != nil {
		return err
	}

	names := make([]string, 0, len(step.Fields))
	for name := range step.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rec.SetValue(name, step.Fields[name])
	}
	return rt.Service.Save(ctx, actor, rec)
}

func deleteStep(ctx context.Context, rt *Runtime, actor core.Actor, step Step) error {
	return rt.Service.Delete(ctx, actor, step.Ref)
}

func copyStep(ctx context.Context, rt *Runtime, actor core.Actor, step Step) error {
	_, err := rt.Service.Copy(ctx, actor, step.Ref, step.Parent, step.Name, step.Deep)
	return err
}

func moveStep(ctx context.Context, rt *Runtime, actor core.Actor, step Step) error {
	return rt.Service.Move(ctx, actor, step.Ref, step.Parent)
}

func renameStep(ctx context.Context, rt *Runtime, actor core.Actor, step Step) error {
	return rt.Service.Rename(ctx, actor, step.Ref, step.Name)
}

func sortStep(ctx context.Context, rt *Runtime, actor core.Actor, step Step) error {
	return rt.Service.SetSortOrder(ctx, actor, step.Ref, step.SortOrder)
}

func templateStep(ctx context.Context, rt *Runtime, actor core.Actor, step Step) error {
	return rt.Service.ChangeTemplate(ctx, actor, step.Ref, step.Template)
}

// publishStep reports a publish outcome for step.Ref the way the publishing
// pipeline does once it has processed the record.
func publishStep(ctx context.Context, rt *Runtime, actor core.Actor, step Step) error {
	if step.Publish == nil {
		return errors.New("publish needs a publish block")
	}
	opts := step.Publish.Options
	if opts.SourceStore == "" {
		opts.SourceStore = rt.settings.Audit.PrimaryStore
	}
	if opts.Language == "" {
		opts.Language = step.Ref.Language
	}

	pc := &core.PublishContext{
		RecordID: step.Ref.ID,
		Options:  opts,
		Result:   step.Publish.Result,
		Source:   core.StoreSource(rt.Store, opts.SourceStore, opts.Language),
	}
	return rt.Bus.Raise(ctx, actor, &core.PublishProcessedEvent{Context: pc})
}

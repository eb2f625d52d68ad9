// Package audittrail is the Composition Root of the audit trail.
//
// It connects the change observation engine (pkg/audit) with a record store,
// an event bus and the sinks audit lines are written to, using the Hexagonal
// Architecture pattern: the engine only depends on the ports in pkg/core.
//
// Every mutation of a record in the primary (authoring) store produces one or
// more lines such as:
//
//	(editor): SAVE: master:/home/page, name: page, language: en, version: 1, id: page, ** [Title]: new: New, old: Old
//
// Features:
//
//   - **Field-level diffs**: saves report each changed content field with its old and new value.
//   - **Noise suppression**: auto-save bursts only get their field lines.
//   - **Duplicate-name guard**: creations in the editing UI can be vetoed.
//   - **Stores**: in-memory, or a directory of YAML/JSON record files watched for external edits.
//   - **Sinks**: text writer, slog, Redis streams, or any combination.
//
// Usage:
//
//	rt, err := audittrail.New(ctx, audittrail.DefaultSettings(),
//		audittrail.WithLogger(logger),
//	)
//	defer rt.Close()
//
//	// Mutations performed through the service are audited.
//	rec, err := rt.Service.Create(ctx, actor, parentRef, "news", templateID)
package audittrail

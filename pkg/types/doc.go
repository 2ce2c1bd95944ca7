// Package types defines the core data model of the noirgraph pipeline.
//
// Data flows one way: Document -> Chunk -> Statement -> Entity. Each type
// carries the natural key used for idempotent upserts into the graph:
//   - Document: id
//   - Chunk: "{document_id}_{index}"
//   - Statement: "{document_id}_{id}"
//   - Entity: "{document_id}_{id}"
//
// # Embedding views
//
// Statements and entities expose NameString and ProfileString. The name view
// is the short identifying text, the profile view is the full record. Both are
// embedded in separate batched calls.
//
// # Drafts
//
// StatementDraft and EntityDraft are the untrusted shapes returned by the
// language model. They are converted into Statement and Entity only after
// validation and ID assignment.
package types

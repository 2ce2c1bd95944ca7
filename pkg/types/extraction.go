package types

import (
	"strings"
)

// StatementDraft is the shape the extraction collaborator returns for one statement.
type StatementDraft struct {
	Subject     string   `json:"subject" jsonschema:"description=Short canonical noun phrase for the subject, never a bare pronoun when resolvable"`
	Predicate   string   `json:"predicate" jsonschema:"description=Root verb with preposition, without auxiliaries or negation"`
	Object      string   `json:"object" jsonschema:"description=Short canonical noun phrase or quoted speech for the object"`
	Modality    []string `json:"modality" jsonschema:"description=One or more of assertion negation possibility speculation question hypothetical contradiction future past present"`
	Sentence    string   `json:"sentence" jsonschema:"description=Verbatim source sentence"`
	Explanation string   `json:"explanation" jsonschema:"description=Why subject predicate object and modality were chosen"`
}

// Empty reports whether the draft lacks a subject or predicate. Intransitive
// statements have no object and are not empty.
func (d *StatementDraft) Empty() bool {
	return strings.TrimSpace(d.Subject) == "" ||
		strings.TrimSpace(d.Predicate) == ""
}

// EntityDraft is the shape the resolution collaborator returns for one entity.
type EntityDraft struct {
	Name                string         `json:"name" jsonschema:"description=Most specific pronoun-free canonical name"`
	Aliases             []string       `json:"aliases" jsonschema:"description=Every surface form used for the entity including pronouns"`
	Type                string         `json:"type" jsonschema:"description=Free-form label such as person or place"`
	Category            string         `json:"category" jsonschema:"description=One of the registered category names"`
	Description         string         `json:"description" jsonschema:"description=Who or what the entity is according to the statements"`
	Explanation         string         `json:"explanation" jsonschema:"description=How the entity was identified and why the name and aliases were chosen"`
	Attributes          map[string]any `json:"attributes" jsonschema:"description=Category specific fields"`
	SubjectStatementIDs []int          `json:"subject_statement_ids" jsonschema:"description=IDs of statements where the entity is the subject"`
	ObjectStatementIDs  []int          `json:"object_statement_ids" jsonschema:"description=IDs of statements where the entity is the object"`
}

// ExtractionResult is what one extraction call over a chunk produces.
type ExtractionResult struct {
	ChunkIndex int          `json:"chunk_index"`
	Statements []*Statement `json:"statements"`
	// Discarded counts drafts dropped for missing subject, predicate or object.
	Discarded int `json:"discarded"`
}

// ResolutionResult is what one resolution call over a chunk produces.
type ResolutionResult struct {
	ChunkIndex int       `json:"chunk_index"`
	Entities   []*Entity `json:"entities"`
	// DroppedReferences counts statement IDs claimed by the collaborator that
	// were not part of the batch.
	DroppedReferences int `json:"dropped_references"`
	// Rejected counts entities discarded for pronoun names or no grounding.
	Rejected int `json:"rejected"`
}

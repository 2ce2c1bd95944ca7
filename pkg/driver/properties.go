package driver

import (
	"fmt"
	"maps"
	"slices"

	"github.com/soundprediction/noirgraph/pkg/types"
)

// Core node properties. Dynamic attributes never overwrite these.
var (
	statementCoreProps = []string{
		"statement_id", "id", "document_id", "chunk_id", "chunk_index", "subject", "predicate",
		"object", "modality", "sentence", "explanation", "name_embedding", "profile_embedding",
		"attribute_keys",
	}
	entityCoreProps = []string{
		"entity_id", "id", "document_id", "chunk_index", "name", "aliases", "type", "category", "description",
		"explanation", "name_embedding", "profile_embedding", "subject_statement_ids",
		"object_statement_ids", "attribute_keys", "attributes",
	}
)

func documentProps(d *types.Document) map[string]any {
	return map[string]any{
		"document_id": d.ID,
		"title":       d.Title,
	}
}

func chunkProps(c *types.Chunk) map[string]any {
	return map[string]any{
		"chunk_id":    c.ChunkID(),
		"document_id": c.DocumentID,
		"index":       int64(c.Index),
		"content":     c.Content,
		"embedding":   vectorParam(c.Embedding),
	}
}

func chunkFromProps(props map[string]any) *types.Chunk {
	return &types.Chunk{
		Index:      propInt(props, "index"),
		DocumentID: propString(props, "document_id"),
		Content:    propString(props, "content"),
		Embedding:  propVector(props, "embedding"),
	}
}

// statementProps flattens the attributes onto the node and records their
// names in attribute_keys so they can be read back.
func statementProps(s *types.Statement) map[string]any {
	props := make(map[string]any, len(statementCoreProps)+len(s.Attributes))
	keys := make([]string, 0, len(s.Attributes))
	for k, v := range s.Attributes {
		if k == "" || slices.Contains(statementCoreProps, k) {
			continue
		}
		props[k] = v
		keys = append(keys, k)
	}
	slices.Sort(keys)

	modality := s.Modality
	if modality == nil {
		modality = []string{}
	}
	props["statement_id"] = s.Key()
	props["id"] = int64(s.ID)
	props["document_id"] = s.DocumentID
	props["chunk_id"] = s.ChunkID()
	props["chunk_index"] = int64(s.ChunkIndex)
	props["subject"] = s.Subject
	props["predicate"] = s.Predicate
	props["object"] = s.Object
	props["modality"] = modality
	props["sentence"] = s.Sentence
	props["explanation"] = s.Explanation
	props["name_embedding"] = vectorParam(s.NameEmbedding)
	props["profile_embedding"] = vectorParam(s.ProfileEmbedding)
	props["attribute_keys"] = keys
	return props
}

func statementFromProps(props map[string]any) *types.Statement {
	s := &types.Statement{
		ID:               propInt(props, "id"),
		DocumentID:       propString(props, "document_id"),
		ChunkIndex:       propInt(props, "chunk_index"),
		Subject:          propString(props, "subject"),
		Predicate:        propString(props, "predicate"),
		Object:           propString(props, "object"),
		Modality:         propStrings(props, "modality"),
		Sentence:         propString(props, "sentence"),
		Explanation:      propString(props, "explanation"),
		NameEmbedding:    propVector(props, "name_embedding"),
		ProfileEmbedding: propVector(props, "profile_embedding"),
	}
	if keys := propStrings(props, "attribute_keys"); len(keys) > 0 {
		s.Attributes = make(map[string]string, len(keys))
		for _, k := range keys {
			if v, ok := props[k]; ok && v != nil {
				s.Attributes[k] = fmt.Sprint(v)
			}
		}
	}
	return s
}

func entityProps(e *types.Entity) map[string]any {
	props := make(map[string]any, len(entityCoreProps)+len(e.Attributes))
	keys := make([]string, 0, len(e.Attributes))
	for _, k := range slices.Sorted(maps.Keys(e.Attributes)) {
		if k == "" || slices.Contains(entityCoreProps, k) {
			continue
		}
		v := toPropertyValue(e.Attributes[k])
		if v == nil {
			continue
		}
		props[k] = v
		keys = append(keys, k)
	}

	aliases := e.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	props["entity_id"] = e.Key()
	props["id"] = int64(e.ID)
	props["document_id"] = e.DocumentID
	props["chunk_index"] = int64(e.ChunkIndex)
	props["name"] = e.Name
	props["aliases"] = aliases
	props["type"] = e.Type
	props["category"] = e.Category
	props["description"] = e.Description
	props["explanation"] = e.Explanation
	props["name_embedding"] = vectorParam(e.NameEmbedding)
	props["profile_embedding"] = vectorParam(e.ProfileEmbedding)
	props["subject_statement_ids"] = toInt64s(e.SubjectStatementIDs)
	props["object_statement_ids"] = toInt64s(e.ObjectStatementIDs)
	props["attribute_keys"] = keys
	return props
}

func entityFromProps(props map[string]any) *types.Entity {
	e := &types.Entity{
		ID:                  propInt(props, "id"),
		DocumentID:          propString(props, "document_id"),
		ChunkIndex:          propInt(props, "chunk_index"),
		Name:                propString(props, "name"),
		Aliases:             propStrings(props, "aliases"),
		Type:                propString(props, "type"),
		Category:            propString(props, "category"),
		Description:         propString(props, "description"),
		Explanation:         propString(props, "explanation"),
		NameEmbedding:       propVector(props, "name_embedding"),
		ProfileEmbedding:    propVector(props, "profile_embedding"),
		SubjectStatementIDs: propInts(props, "subject_statement_ids"),
		ObjectStatementIDs:  propInts(props, "object_statement_ids"),
	}
	if keys := propStrings(props, "attribute_keys"); len(keys) > 0 {
		e.Attributes = make(map[string]any, len(keys))
		for _, k := range keys {
			if v, ok := props[k]; ok && v != nil {
				e.Attributes[k] = v
			}
		}
	}
	return e
}

// statementKeys maps per-document statement IDs to graph keys.
func statementKeys(documentID string, ids []int) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = types.StatementKey(documentID, id)
	}
	return keys
}

func toInt64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

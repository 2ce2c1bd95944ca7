// Package driver persists documents, chunks, statements and entities to a
// property graph.
//
// Every write is an upsert keyed by a natural key: Document by document_id,
// Chunk by chunk_id ("{document_id}_{index}"), Statement by statement_id and
// Entity by entity_id. Re-running an upsert overwrites properties without
// duplicating the node or its HAS_CHUNK, HAS_STATEMENT, HAS_SUBJECT and
// HAS_OBJECT edges.
//
// # Supported Databases
//
//   - Neo4j 5.x: vector indexes, full-text index and uniqueness constraints
//   - Memory: an in-process store with the same merge semantics, used by
//     tests and dry runs
//
// # Usage
//
//	store, err := driver.New(driver.Config{
//	    URI:      "bolt://localhost:7687",
//	    Username: "neo4j",
//	    Password: password,
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	err = store.CreateSchema(ctx)
//
// # Type Helpers
//
// type_helpers.go converts Bolt values (lists come back as []any, integers
// as int64) to Go types without panicking on type assertion failures.
package driver

// Package noirgraph turns detective fiction into a knowledge graph of
// statements and entities stored in Neo4j.
//
// A document is split into paragraph-aligned chunks. Extraction asks a
// language model for the subject-predicate-object statements of each chunk;
// resolution asks it for the entities those statements are about. Every
// artifact is embedded and upserted into the graph before the call that
// produced it returns.
//
// # Basic Usage
//
// Create a client from a graph store, the chat models and an embedder:
//
//	store, err := driver.New(driver.Config{
//		URI:        "bolt://localhost:7687",
//		Username:   "neo4j",
//		Password:   "password",
//		Dimensions: 1536,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	small, err := nlp.NewOpenAIClient(apiKey, nlp.Config{Model: "gpt-5-nano"})
//	large, err := nlp.NewOpenAIClient(apiKey, nlp.Config{Model: "gpt-5-mini"})
//	emb := embedder.NewOpenAIEmbedder(apiKey, embedder.Config{Model: "text-embedding-3-small"})
//
//	client, err := noirgraph.NewClient(store,
//		noirgraph.LanguageModels{Extraction: small, Resolution: large},
//		emb, &noirgraph.Config{Concurrency: 3}, logger)
//
// # Stages
//
// Each stage has a start, a per-chunk step and an end:
//
//	chunks, err := client.LoadDocument(ctx, doc)
//	err = client.StartExtraction(ctx)
//	for _, chunk := range chunks {
//		statements, err := client.DoExtraction(ctx, chunk)
//		...
//	}
//	all := client.EndExtraction()
//
// ExtractAll and ResolveAll run a whole stage with bounded concurrency and
// return a StageResult with a Markdown report.
//
// # Identifiers
//
// Statement and entity IDs are integers allocated per document by an
// IdAllocator. They start at 1, are strictly increasing, and are reserved
// only once the model reply for a chunk is in. Graph keys have the form
// "{document_id}_{id}".
//
// # Errors
//
// Failures inside a stage are StageError values. Missing schema
// constraints, embedding dimension mismatches and corrupted ID counters
// are fatal and stop the stage; anything else is recorded and the stage
// continues with the next chunk.
//
// # Sessions
//
// With a checkpoint.Store configured, the document, chunks, statements,
// entities and ID counters are mirrored to a session folder so a later
// process can Resume without re-extracting.
package noirgraph

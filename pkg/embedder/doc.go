// Package embedder turns text into vectors for similarity search.
//
// OpenAIEmbedder calls the OpenAI embeddings API (or a compatible service) in
// batches. HashEmbedder is a deterministic offline stand-in. CachedClient
// wraps either one with a Badger store so identical texts are embedded once.
//
// Statements and entities carry two embeddings each, one for the name view
// and one for the profile view. EmbedStatements and EmbedEntities compute
// both views of a batch concurrently with exactly one Embed call per view.
package embedder

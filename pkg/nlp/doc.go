// Package nlp provides the language model client used for statement
// extraction and entity resolution.
//
// Client is implemented by OpenAIClient, which talks to OpenAI or any
// service that speaks the same chat completions API. Structured calls ask
// for a JSON Schema constrained reply when the schema is available and fall
// back to JSON mode otherwise.
//
// # Client Wrappers
//
//   - RetryClient: retries rate limits, server errors, empty replies and
//     per-call deadlines with exponential backoff
//   - CircuitBreakerClient: stops calling a failing backend for a while
//   - TokenTrackingClient: records token usage to Parquet files
//
// Wrappers compose:
//
//	base, err := nlp.NewOpenAIClient(apiKey, nlp.Config{Model: nlp.DefaultLargeModel, Timeout: nlp.DefaultTimeout})
//	client := nlp.NewRetryClient(base, nlp.DefaultRetryConfig(), logger)
//
// Replies are decoded with UnmarshalFlexible, which repairs the malformed
// JSON models sometimes produce.
package nlp

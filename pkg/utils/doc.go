// Package utils provides helpers shared by the noirgraph packages.
//
// This package contains:
//   - Vector math and top-k selection for in-memory similarity search (vector.go)
//   - A bounded worker pool whose results are keyed by input index (concurrent.go)
//   - Panic recovery helpers (recovery.go)
//   - Parquet export of chunks, statements and entities (parquet_writer.go)
package utils

package nlp

import "slices"

// TaskCapability represents a specific NLP task that a model can perform.
type TaskCapability string

const (
	// TaskEmbedding represents text embedding generation.
	TaskEmbedding TaskCapability = "embedding"
	// TaskStatementExtraction represents subject-predicate-object extraction.
	TaskStatementExtraction TaskCapability = "statement_extraction"
	// TaskEntityResolution represents coreference resolution and classification.
	TaskEntityResolution TaskCapability = "entity_resolution"
	// TaskTextGeneration represents open-ended text generation (chat/completion).
	TaskTextGeneration TaskCapability = "text_generation"
)

// chatCapabilities is what any instruction-following chat model can do here.
var chatCapabilities = []TaskCapability{
	TaskTextGeneration,
	TaskStatementExtraction,
	TaskEntityResolution,
}

// Supports reports whether the client advertises the capability.
func Supports(c Client, capability TaskCapability) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.GetCapabilities(), capability)
}

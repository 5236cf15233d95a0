package models

import "fmt"

// EmbeddingModelTag identifies the vector space a record was embedded into, e.g.
// "openai/text-embedding-3-small@1536". Stores only compare vectors carrying the same tag.
type EmbeddingModelTag string

// NewEmbeddingModelTag builds the tag for a provider, model and output dimension.
func NewEmbeddingModelTag(provider, model string, dimensions int) EmbeddingModelTag {
	return EmbeddingModelTag(fmt.Sprintf("%s/%s@%d", provider, model, dimensions))
}

// String returns the tag value.
func (t EmbeddingModelTag) String() string { return string(t) }

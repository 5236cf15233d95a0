package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_CreateEmbedding(t *testing.T) {
	client := NewMockClientWithDimensions(64)
	ctx := context.Background()

	first, err := client.CreateEmbedding(ctx, "great lecturer, tough exams")
	require.NoError(t, err)
	require.Len(t, first, 64)

	again, err := client.CreateEmbedding(ctx, "  great lecturer, tough exams ")
	require.NoError(t, err)
	assert.Equal(t, first, again, "same text must yield the same vector")

	other, err := client.CreateEmbedding(ctx, "never answers email")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	var sum float64
	for _, v := range first {
		sum += float64(v) * float64(v)
	}

	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockClient_EmptyInput(t *testing.T) {
	_, err := NewMockClient().CreateEmbedding(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestMockClient_ModelTag(t *testing.T) {
	assert.Equal(t, "mock/sha256@1536", NewMockClient().ModelTag().String())
	assert.Equal(t, "mock/sha256@1536", NewMockClientWithDimensions(0).ModelTag().String())
}

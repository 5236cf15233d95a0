package googleai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/rmpassist/rmp-assistant/internal/models"
)

func textResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: genai.RoleModel, Parts: parts}}},
	}
}

func TestToGenAIContents(t *testing.T) {
	system, contents := toGenAIContents([]models.Message{
		{Role: models.RoleSystem, Content: "You recommend professors."},
		{Role: models.RoleAssistant, Content: "Hi!"},
		{Role: models.RoleUser, Content: "Who teaches physics?"},
	})

	require.NotNil(t, system)
	require.Len(t, system.Parts, 1)
	assert.Equal(t, "You recommend professors.", system.Parts[0].Text)

	require.Len(t, contents, 2)
	assert.Equal(t, genai.RoleModel, contents[0].Role)
	assert.Equal(t, "Hi!", contents[0].Parts[0].Text)
	assert.Equal(t, genai.RoleUser, contents[1].Role)
	assert.Equal(t, "Who teaches physics?", contents[1].Parts[0].Text)
}

func TestToGenAIContents_NoSystem(t *testing.T) {
	system, contents := toGenAIContents([]models.Message{{Role: models.RoleUser, Content: "hi"}})
	assert.Nil(t, system)
	assert.Len(t, contents, 1)
}

func TestResponseText(t *testing.T) {
	assert.Equal(t, "", responseText(nil))
	assert.Equal(t, "", responseText(&genai.GenerateContentResponse{}))
	assert.Equal(t, "ab", responseText(textResponse(
		&genai.Part{Text: "a"},
		&genai.Part{Text: "thinking...", Thought: true},
		&genai.Part{Text: "b"},
	)))
}

func TestStream_DeliversFragmentsThenError(t *testing.T) {
	boom := errors.New("quota exceeded")
	stopped := false

	seq := func(yield func(*genai.GenerateContentResponse, error) bool) {
		defer func() { stopped = true }()

		if !yield(textResponse(&genai.Part{Text: "Prof. "}), nil) {
			return
		}

		if !yield(textResponse(), nil) {
			return
		}

		if !yield(textResponse(&genai.Part{Text: "Lee"}), nil) {
			return
		}

		yield(nil, boom)
	}

	stream := newStream(seq)

	var got []string
	for stream.Next() {
		got = append(got, stream.Current())
	}

	assert.Equal(t, []string{"Prof. ", "Lee"}, got)
	require.ErrorIs(t, stream.Err(), boom)
	assert.True(t, stopped)
	assert.NoError(t, stream.Close())
	assert.False(t, stream.Next())
}

func TestStream_CloseEarlyStopsIterator(t *testing.T) {
	produced := 0

	seq := func(yield func(*genai.GenerateContentResponse, error) bool) {
		for {
			produced++
			if !yield(textResponse(&genai.Part{Text: "x"}), nil) {
				return
			}
		}
	}

	stream := newStream(seq)
	require.True(t, stream.Next())
	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())

	assert.False(t, stream.Next())
	assert.NoError(t, stream.Err())
	assert.Equal(t, 1, produced)
}

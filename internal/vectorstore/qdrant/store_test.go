package qdrant

import (
	"testing"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmpassist/rmp-assistant/internal/models"
)

var testModel = models.NewEmbeddingModelTag("openai", "text-embedding-3-small", 1536)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		host    string
		port    int
		tls     bool
		wantErr bool
	}{
		{name: "plain http with port", raw: "http://localhost:6334", host: "localhost", port: 6334},
		{name: "https default port", raw: "https://xyz.cloud.qdrant.io", host: "xyz.cloud.qdrant.io", port: 6334, tls: true},
		{name: "no scheme uses tls", raw: "qdrant.internal:7000", host: "qdrant.internal", port: 7000, tls: true},
		{name: "bad port", raw: "http://localhost:abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, useTLS, err := parseAddress(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
			assert.Equal(t, tt.tls, useTLS)
		})
	}
}

func TestPointID(t *testing.T) {
	id := pointID("ns1", "Dr. A", testModel)

	_, err := uuid.Parse(id)
	require.NoError(t, err)

	assert.Equal(t, id, pointID("ns1", "Dr. A", testModel), "same professor maps to the same point")
	assert.NotEqual(t, id, pointID("ns2", "Dr. A", testModel))
	assert.NotEqual(t, id, pointID("ns1", "Dr. B", testModel))
	assert.NotEqual(t, id, pointID("ns1", "Dr. A", models.NewEmbeddingModelTag("google", "gemini-embedding-001", 1536)))
}

func TestRecordPayloadRoundTripsThroughMatch(t *testing.T) {
	rec := &models.ProfessorRecord{
		ID: "Dr. A",
		Metadata: models.ProfessorMetadata{
			Review: "Great", Subject: "Physics", Stars: "5", Sentiment: "positive",
		},
		Document: "Great",
	}

	payload := recordPayload("ns1", testModel, rec)
	assert.Equal(t, "ns1", payload[payloadNamespace].GetStringValue())
	assert.Equal(t, testModel.String(), payload[payloadModel].GetStringValue())
	assert.Equal(t, "Great", payload[payloadDocument].GetStringValue())

	match := matchFromPayload(payload, 0.87, true)
	assert.Equal(t, "Dr. A", match.ID)
	assert.InDelta(t, 0.87, match.Score, 1e-9)
	assert.Equal(t, rec.Metadata, match.Metadata)

	bare := matchFromPayload(payload, 0.87, false)
	assert.Equal(t, models.ProfessorMetadata{}, bare.Metadata)
}

func TestNamespaceFilter(t *testing.T) {
	filter := namespaceFilter("ns1", testModel)
	require.Len(t, filter.GetMust(), 2)

	keys := map[string]string{}
	for _, cond := range filter.GetMust() {
		field := cond.GetField()
		keys[field.GetKey()] = field.GetMatch().GetKeyword()
	}

	assert.Equal(t, map[string]string{payloadNamespace: "ns1", payloadModel: testModel.String()}, keys)
}

func TestMatchFromPayload_MissingKeys(t *testing.T) {
	match := matchFromPayload(map[string]*qdrant.Value{}, 0.5, true)
	assert.Empty(t, match.ID)
	assert.Equal(t, models.ProfessorMetadata{}, match.Metadata)
}

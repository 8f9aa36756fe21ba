package json

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chunkDoc struct {
	ChunkKey string  `json:"chunk_key"`
	Page     int     `json:"page"`
	Score    float64 `json:"score"`
}

func TestMarshalUnmarshal(t *testing.T) {
	in := chunkDoc{ChunkKey: "f1:2:0", Page: 2, Score: 0.87}

	data, err := Marshal(in)
	require.NoError(t, err)

	var out chunkDoc
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(chunkDoc{ChunkKey: "f1:0:0"}))

	var out chunkDoc
	require.NoError(t, NewDecoder(strings.NewReader(buf.String())).Decode(&out))
	assert.Equal(t, "f1:0:0", out.ChunkKey)
}

func TestStreamingDecoderMultipleValues(t *testing.T) {
	// JSON-lines style payloads come back from streaming LLM endpoints.
	dec := NewDecoder(strings.NewReader(`{"page":1}` + "\n" + `{"page":2}`))

	var first, second chunkDoc
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 2, second.Page)
}

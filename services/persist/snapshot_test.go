package persist

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)
	snapshot := testSnapshot()

	payload, err := codec.Encode(snapshot)
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	decoded, err := codec.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, snapshot, decoded)
}

func TestCodec_CompressesHeightGrids(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)

	snapshot := testSnapshot()
	snapshot.Heights = make([]float64, 32*32)
	for i := range snapshot.Heights {
		snapshot.Heights[i] = 2.0 + float64(i%7)
	}

	payload, err := codec.Encode(snapshot)
	require.NoError(t, err)

	raw, err := json.Marshal(snapshot)
	require.NoError(t, err)
	assert.Less(t, len(payload), len(raw), "height grids must compress below their JSON size")
}

func TestCodec_DecodeRejectsGarbage(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)

	_, err = codec.Decode([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.Error(t, err)
}

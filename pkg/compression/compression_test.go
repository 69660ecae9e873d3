package compression

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, algo Algorithm) {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, algo, 0)
	require.NoError(t, err)
	_, err = w.Write([]byte("@read1\nACGT\n+\nIIII\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewReader(&buf, algo)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "@read1\nACGT\n+\nIIII\n", string(data))
}

func TestRoundTripNone(t *testing.T) { roundTrip(t, None) }
func TestRoundTripGzip(t *testing.T) { roundTrip(t, Gzip) }
func TestRoundTripZstd(t *testing.T) { roundTrip(t, Zstd) }

func TestParseAlgorithmInvalid(t *testing.T) {
	_, err := ParseAlgorithm("bzip2")
	require.Error(t, err)
}

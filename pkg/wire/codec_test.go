package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteString(&buf, "/broadcast hello"))

	payload, err := ReadFrame(&buf, MaxFrameSize)
	require.NoError(t, err)
	assert.Equal(t, "/broadcast hello", string(payload))
}

func TestFrameWireLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteString(&buf, "alice"))

	raw := buf.Bytes()
	require.Len(t, raw, 4+5)
	assert.Equal(t, uint32(5), binary.BigEndian.Uint32(raw[:4]))
	assert.Equal(t, "alice", string(raw[4:]))
}

func TestReadFrameZeroLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})
	buf.WriteString("trailing")

	payload, err := ReadFrame(&buf, MaxFrameSize)
	require.NoError(t, err)
	assert.Nil(t, payload, "zero-length frame is an empty ping")

	// The decoder must not have consumed bytes past the prefix.
	assert.Equal(t, "trailing", buf.String())
}

func TestReadFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], MaxFrameSize)
	buf.Write(prefix[:])

	_, err := ReadFrame(&buf, MaxFrameSize)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameEOFOnClose(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go client.Close()

	_, err := ReadFrame(server, MaxFrameSize)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], 10)
	buf.Write(prefix[:])
	buf.WriteString("short")

	_, err := ReadFrame(&buf, MaxFrameSize)
	assert.Error(t, err)
}

func TestBulkRoundTrip(t *testing.T) {
	payload := make([]byte, 3*ChunkSize+17)
	for i := range payload {
		payload[i] = byte(i)
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBulk(&buf, payload))

	got, err := ReadBulk(&buf, MaxBulkSize)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestBulkSizeLimit(t *testing.T) {
	t.Run("ExactLimitAccepted", func(t *testing.T) {
		payload := make([]byte, MaxBulkSize)
		var buf bytes.Buffer
		require.NoError(t, WriteBulk(&buf, payload))

		got, err := ReadBulk(&buf, MaxBulkSize)
		require.NoError(t, err)
		assert.Len(t, got, MaxBulkSize)
	})

	t.Run("OneOverLimitRejected", func(t *testing.T) {
		var buf bytes.Buffer
		var prefix [4]byte
		binary.BigEndian.PutUint32(prefix[:], MaxBulkSize+1)
		buf.Write(prefix[:])

		_, err := ReadBulk(&buf, MaxBulkSize)
		assert.ErrorIs(t, err, ErrBulkTooLarge)
	})
}

func TestBulkEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBulk(&buf, nil))

	got, err := ReadBulk(&buf, MaxBulkSize)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFrameOverPipe(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		_ = WriteString(client, "/whisper bob hi")
	}()

	payload, err := ReadFrame(server, MaxFrameSize)
	require.NoError(t, err)
	assert.Equal(t, "/whisper bob hi", string(payload))
}

package native

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFrame_LittleEndianPrefix(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte(`{"type":"RESET"}`)))

	raw := buf.Bytes()
	require.Len(t, raw, 4+16)
	assert.Equal(t, []byte{16, 0, 0, 0}, raw[:4])
	assert.Equal(t, `{"type":"RESET"}`, string(raw[4:]))
}

func TestReadFrame_Sequence(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte(`{"status":"ready"}`)))
	require.NoError(t, WriteFrame(&buf, []byte{}))
	require.NoError(t, WriteFrame(&buf, []byte(`{"output":"x"}`)))

	first, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, `{"status":"ready"}`, string(first))

	empty, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, empty)

	third, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, `{"output":"x"}`, string(third))

	_, err = ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrame_Truncated(t *testing.T) {
	var buf bytes.Buffer
	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, 10)
	buf.Write(header)
	buf.WriteString("abc")

	_, err := ReadFrame(&buf)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFrameSizeLimit(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, MaxFrameSize+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Zero(t, buf.Len())

	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, MaxFrameSize+1)
	_, err = ReadFrame(bytes.NewReader(header))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestEncodeRequests(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		want string
	}{
		{"activate", Init("example.com"), `{"type":"ACTIVATE","domain":"example.com"}`},
		{"hello", Hello(), `{"type":"INIT"}`},
		{"char", Char('q'), `{"charCode":113}`},
		{"reset", Reset(), `{"type":"RESET"}`},
		{"finalize", Finalize(), `{"type":"FINALIZE"}`},
		{"preview", ActivatePreview("a.io"), `{"type":"ACTIVATE_PREVIEW","domain":"a.io"}`},
		{"commit", CommitIncrement("a.io"), `{"type":"COMMIT_INCREMENT","domain":"a.io"}`},
		{"cancel", CancelPreview(), `{"type":"CANCEL_PREVIEW"}`},
		{"set counter zero", SetCounterRequest("a.io", 0), `{"type":"SET_COUNTER","domain":"a.io","counter":0}`},
		{"get counter", GetCounterRequest("a.io"), `{"type":"GET_COUNTER","domain":"a.io"}`},
		{"set rules", SetRulesRequest("a.io", 0, 127), `{"type":"SET_RULES","domain":"a.io","max_length":0,"char_types":127}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Encode(tc.req)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(got))
		})
	}
}

func TestExpectsReply(t *testing.T) {
	assert.False(t, Char('a').ExpectsReply())
	assert.False(t, Finalize().ExpectsReply())
	assert.True(t, Init("a.io").ExpectsReply())
	assert.True(t, Reset().ExpectsReply())
	assert.True(t, CancelPreview().ExpectsReply())
}

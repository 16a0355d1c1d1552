package native

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u16(n uint16) *uint16 { return &n }

func TestDecode(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Message
	}{
		{
			name: "ready with counters",
			in:   `{"saved_counter":3,"active_counter":3,"max_length":12,"char_types":5,"status":"ready"}`,
			want: Ready{SavedCounter: 3, ActiveCounter: 3, MaxLength: 12, CharTypes: 5},
		},
		{
			name: "bare ready from INIT",
			in:   `{"status":"ready"}`,
			want: Ready{CharTypes: 127},
		},
		{
			name: "preview",
			in:   `{"saved_counter":3,"active_counter":4,"max_length":0,"char_types":127,"status":"preview"}`,
			want: Preview{SavedCounter: 3, ActiveCounter: 4, CharTypes: 127},
		},
		{name: "committed", in: `{"counter":5,"status":"committed"}`, want: Committed{Counter: 5}},
		{name: "cancelled", in: `{"counter":2,"status":"cancelled"}`, want: Cancelled{Counter: 2}},
		{name: "success", in: `{"status":"success"}`, want: Success{}},
		{name: "reset", in: `{"status":"reset"}`, want: ResetAck{}},
		{name: "counter value", in: `{"counter":7}`, want: CounterValue{Counter: u16(7)}},
		{name: "counter null", in: `{"counter":null}`, want: CounterValue{}},
		{name: "output", in: `{"output":"pä$$"}`, want: Output{Text: "pä$$"}},
		{name: "empty output", in: `{"output":""}`, want: Output{}},
		{name: "error", in: `{"error":"Missing domain"}`, want: Error{Message: "Missing domain"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode([]byte(tc.in))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecode_Unknown(t *testing.T) {
	for _, in := range []string{
		`{}`,
		`{"status":"dancing"}`,
		`{"status":"committed"}`,
		`{"counter":70000}`,
		`{"max_length":16,"char_types":3}`,
		`not json`,
	} {
		_, err := Decode([]byte(in))
		assert.ErrorIs(t, err, ErrUnknownMessage, in)
	}
}

func TestIsResponse(t *testing.T) {
	assert.False(t, IsResponse(Output{Text: "x"}))
	assert.True(t, IsResponse(Error{}))
	assert.True(t, IsResponse(Ready{}))
	assert.True(t, IsResponse(ResetAck{}))
}

func TestMessagePolicies(t *testing.T) {
	assert.False(t, Ready{CharTypes: 127}.Policy().Enabled)

	p := Preview{MaxLength: 10, CharTypes: 127}.Policy()
	require.NotNil(t, p.MaxLength)
	assert.True(t, p.Enabled)
	assert.Equal(t, 10, *p.MaxLength)

	assert.Len(t, Ready{CharTypes: 1 | 2}.Policy().AllowedClasses, 2)
}

func TestKindHidesPayload(t *testing.T) {
	assert.Equal(t, "output", Kind(Output{Text: "secret"}))
	assert.Equal(t, "committed", Kind(Committed{Counter: 1}))
}

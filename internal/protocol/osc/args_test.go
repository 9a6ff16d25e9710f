package osc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckPayload(t *testing.T) {
	ok := MustMessage("/pvc_aerophone/play", Int(36), Int(100))
	require.NoError(t, ok.CheckPayload())

	strs := MustMessage("/NoticeMe", String("pvc_aerophone"), String("192.168.2.14"))
	require.NoError(t, strs.CheckPayload())

	trailing := &Message{Address: "/a", TypeTag: ",i", Payload: make([]byte, 8)}
	require.ErrorIs(t, trailing.CheckPayload(), ErrFormat)

	short := &Message{Address: "/a", TypeTag: ",ii", Payload: make([]byte, 4)}
	require.ErrorIs(t, short.CheckPayload(), ErrFormat)

	unknown := &Message{Address: "/a", TypeTag: ",b", Payload: make([]byte, 4)}
	require.ErrorIs(t, unknown.CheckPayload(), ErrUnknownTag)
}

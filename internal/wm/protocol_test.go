package wm

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"success":true}`)
	require.NoError(t, writeFrame(&buf, TypeRunCommand, payload))

	fr, err := readFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, TypeRunCommand, fr.msgType)
	require.Equal(t, payload, fr.payload)
}

func TestReadFrame_BadMagic(t *testing.T) {
	buf := bytes.NewBufferString("not-i3-ipc-magic-and-more-bytes")
	_, err := readFrame(bufio.NewReader(buf))
	require.Error(t, err)
}

func TestDecodeCommandReplies(t *testing.T) {
	replies, err := decodeCommandReplies([]byte(`[{"success":true},{"success":false,"error":"boom"}]`))
	require.NoError(t, err)
	require.Len(t, replies, 2)
	require.True(t, replies[0].Success)
	require.False(t, replies[1].Success)
	require.Equal(t, "boom", replies[1].Error)
}

func TestNodeWalk(t *testing.T) {
	leaf := &Node{ID: 2}
	root := &Node{ID: 1, Nodes: []*Node{leaf}}
	var seen []int64
	root.Walk(func(n *Node) { seen = append(seen, n.ID) })
	require.Equal(t, []int64{1, 2}, seen)
}

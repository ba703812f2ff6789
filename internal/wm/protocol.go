// Package wm implements the i3/Sway IPC client: the raw wire protocol, a
// reconnecting client with a background health probe, and the event/reply
// types the rest of the daemon consumes.
package wm

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

const magic = "i3-ipc"

// MessageType is the i3 IPC message type field (shared by requests and
// the event bit for subscribed payloads).
type MessageType uint32

const (
	TypeRunCommand     MessageType = 0
	TypeGetWorkspaces  MessageType = 1
	TypeSubscribe      MessageType = 2
	TypeGetOutputs     MessageType = 3
	TypeGetTree        MessageType = 4
	TypeGetMarks       MessageType = 5
	TypeGetBarConfig   MessageType = 6
	TypeGetVersion     MessageType = 7

	// eventBit is set on the type field of messages that are unsolicited
	// events rather than replies to a request.
	eventBit MessageType = 1 << 31
)

// EventKind names a subscribable i3 event.
type EventKind string

const (
	EventWindow    EventKind = "window"
	EventWorkspace EventKind = "workspace"
	EventOutput    EventKind = "output"
	EventTick      EventKind = "tick"
	EventMark      EventKind = "mark" // reported as "mark::added"/"mark::removed" by the daemon layer
)

// eventTypeCode maps an i3 IPC event message type to its EventKind.
var eventTypeCode = map[MessageType]EventKind{
	eventBit | 3: EventWindow,
	eventBit | 0: EventWorkspace,
	eventBit | 1: EventOutput,
	eventBit | 7: EventTick,
}

// frame is one decoded i3-ipc message: header + raw JSON payload.
type frame struct {
	msgType MessageType
	payload []byte
}

// writeFrame encodes a request as the 14-byte-header i3-ipc wire format:
// 6-byte magic, uint32 length (little-endian), uint32 type, then the raw
// JSON payload.
func writeFrame(w io.Writer, msgType MessageType, payload []byte) error {
	if _, err := io.WriteString(w, magic); err != nil {
		return err
	}
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[4:8], uint32(msgType))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFrame decodes one i3-ipc message from r.
func readFrame(r *bufio.Reader) (frame, error) {
	magicBuf := make([]byte, len(magic))
	if _, err := io.ReadFull(r, magicBuf); err != nil {
		return frame{}, err
	}
	if string(magicBuf) != magic {
		return frame{}, fmt.Errorf("wm: bad magic %q", magicBuf)
	}
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return frame{}, err
	}
	length := binary.LittleEndian.Uint32(header[0:4])
	msgType := MessageType(binary.LittleEndian.Uint32(header[4:8]))

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return frame{}, err
	}
	return frame{msgType: msgType, payload: payload}, nil
}

// CommandReply is one element of the array i3 returns for RUN_COMMAND.
type CommandReply struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func decodeCommandReplies(payload []byte) ([]CommandReply, error) {
	var replies []CommandReply
	if err := json.Unmarshal(payload, &replies); err != nil {
		return nil, fmt.Errorf("wm: decoding command reply: %w", err)
	}
	return replies, nil
}

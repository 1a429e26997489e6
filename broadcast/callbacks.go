package broadcast

import (
	"github.com/google/uuid"

	"github.com/rhizomatica/hermes-broadcast/frame"
)

// DropReason names why an inbound or outbound frame was not delivered.
type DropReason string

const (
	DropCRCMismatch     DropReason = "crc_mismatch"
	DropLengthMismatch  DropReason = "length_mismatch"
	DropSideInformation DropReason = "side_information" // RQ_PAYLOAD, logged and skipped
	DropUnknownPacket   DropReason = "unknown_packet"
	DropCompletedMemo   DropReason = "completed_memo"
)

// SessionStats summarises a TX or RX session at the moment a callback
// fires, used for OnSessionOpen/OnSessionComplete.
type SessionStats struct {
	ID            uuid.UUID
	Path          string
	OTI           frame.OTIPair
	FramesSent    uint64 // TX only
	BlocksDecoded int    // RX only
	TotalBlocks   int    // RX only
}

// Callbacks lets a caller observe daemon activity without threading extra
// return values through every loop iteration. Any field left nil is a
// no-op, merged in by mergeCallbacks.
type Callbacks struct {
	OnFrameSent       func(oti frame.OTIPair, tag frame.Tag)
	OnFrameDropped    func(reason DropReason)
	OnSessionOpen     func(stats SessionStats)
	OnProgress        func(stats SessionStats)
	OnSessionComplete func(stats SessionStats)
	OnError           func(err error)
}

func defaultCallbacks() *Callbacks {
	return &Callbacks{
		OnFrameSent:       func(frame.OTIPair, frame.Tag) {},
		OnFrameDropped:    func(DropReason) {},
		OnSessionOpen:     func(SessionStats) {},
		OnProgress:        func(SessionStats) {},
		OnSessionComplete: func(SessionStats) {},
		OnError:           func(error) {},
	}
}

// mergeCallbacks fills any nil field of user with the no-op default,
// leaving every field set by user untouched. A nil user returns all
// defaults.
func mergeCallbacks(user *Callbacks) *Callbacks {
	merged := defaultCallbacks()
	if user == nil {
		return merged
	}
	if user.OnFrameSent != nil {
		merged.OnFrameSent = user.OnFrameSent
	}
	if user.OnFrameDropped != nil {
		merged.OnFrameDropped = user.OnFrameDropped
	}
	if user.OnSessionOpen != nil {
		merged.OnSessionOpen = user.OnSessionOpen
	}
	if user.OnProgress != nil {
		merged.OnProgress = user.OnProgress
	}
	if user.OnSessionComplete != nil {
		merged.OnSessionComplete = user.OnSessionComplete
	}
	if user.OnError != nil {
		merged.OnError = user.OnError
	}
	return merged
}

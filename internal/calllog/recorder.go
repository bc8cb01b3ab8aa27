// Package calllog keeps the optional audit trail of calls. Recording is
// fire-and-forget from the relay's point of view: a failing recorder must
// never affect signaling delivery.
package calllog

import (
	"context"
	"time"

	"github.com/dechrm/callrelay/internal/domain"
)

type Recorder interface {
	// RecordStart opens the audit record for a room.
	RecordStart(ctx context.Context, session domain.CallSession) error
	// RecordEnd closes the open record for the room, if any.
	RecordEnd(ctx context.Context, roomID domain.RoomID, endedAt time.Time) error
}

// Noop is the recorder for deployments that keep no call history.
type Noop struct{}

func (Noop) RecordStart(context.Context, domain.CallSession) error { return nil }

func (Noop) RecordEnd(context.Context, domain.RoomID, time.Time) error { return nil }

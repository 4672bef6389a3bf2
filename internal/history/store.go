// Package history keeps the bounded list of recent messages of each channel.
//
// Store is the only type the broadcast engine depends on. MemoryStore keeps
// history in process; RedisStore keeps it in Redis so that it survives
// restarts and is shared by every relay pointing at the same instance ID.
package history

import (
	"context"
	"errors"

	"github.com/Tyrowin/gischat/internal/protocol"
)

// ErrNotStorable is returned when appending a variant that history does not
// retain.
var ErrNotStorable = errors.New("message kind is not kept in history")

// Store is a per-channel FIFO bounded by a fixed capacity.
type Store interface {
	// Append inserts m at the tail of the channel's list, evicting the
	// oldest entries beyond capacity.
	Append(ctx context.Context, channel string, m protocol.Message) error
	// List returns the channel's entries in insertion order.
	List(ctx context.Context, channel string) ([]protocol.Message, error)
}

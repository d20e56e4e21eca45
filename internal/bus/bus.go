package bus

import "context"

// Channel names shared by intake, executor and broadcaster.
const (
	ChannelOrderSubmit = "order.submit"
	ChannelOrderCancel = "order.cancel"
	ChannelOrderStatus = "order.status"
)

// Bus is a broadcast publish/subscribe transport with at-most-once
// delivery. Messages published while nobody listens are lost; there is no
// persistence, replay or consumer-group partitioning.
type Bus interface {
	// Publish marshals msg to JSON and sends it on the channel.
	Publish(ctx context.Context, channel string, msg any) error

	// Subscribe registers a handler for a channel. The handler runs on the
	// subscription's goroutine until ctx is cancelled or the bus closes.
	Subscribe(ctx context.Context, channel string, handler func(data []byte)) error

	Close() error
}

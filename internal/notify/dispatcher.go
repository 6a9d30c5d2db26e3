package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Channel is one delivery target. Each channel declares its own
// byte/character budget in UTF-8 bytes; the dispatcher chunks the body
// to fit before calling Send, once per chunk.
type Channel interface {
	Name() string
	Budget() int
	Send(ctx context.Context, chunk string, index, total int) error
}

// interChunkDelay is how long the dispatcher sleeps between chunks sent
// to the same channel, to respect upstream per-message rate limits.
const interChunkDelay = 1500 * time.Millisecond

// Result records the outcome of one dispatch across all configured
// channels.
type Result struct {
	Sent    []string
	Failed  map[string]string
	AnySent bool
}

// Dispatcher fans a markdown report out to every configured Channel,
// chunking per-channel to its own byte budget. A channel failing never
// blocks its peers; overall success is "at least one channel
// succeeded".
type Dispatcher struct {
	channels []Channel
	log      zerolog.Logger
}

// NewDispatcher builds a Dispatcher over the given channels. A nil or
// empty channel list is valid; Dispatch then reports no channels sent.
func NewDispatcher(channels []Channel, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		log:      log.With().Str("component", "notification-dispatcher").Logger(),
	}
}

// Dispatch sends body to every configured channel, chunked to that
// channel's own budget.
func (d *Dispatcher) Dispatch(ctx context.Context, body string) Result {
	res := Result{Failed: map[string]string{}}

	for _, ch := range d.channels {
		if err := d.sendToChannel(ctx, ch, body); err != nil {
			res.Failed[ch.Name()] = err.Error()
			d.log.Error().Err(err).Str("channel", ch.Name()).Msg("notification channel failed")
			continue
		}
		res.Sent = append(res.Sent, ch.Name())
		res.AnySent = true
	}

	if len(res.Failed) == 0 {
		res.Failed = nil
	}
	return res
}

func (d *Dispatcher) sendToChannel(ctx context.Context, ch Channel, body string) error {
	chunks := Chunk(body, ch.Budget())
	for i, c := range chunks {
		if err := ch.Send(ctx, c, i+1, len(chunks)); err != nil {
			return fmt.Errorf("%s: %w", ch.Name(), err)
		}
		if i < len(chunks)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interChunkDelay):
			}
		}
	}
	return nil
}

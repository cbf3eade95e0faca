package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	pulseclient "github.com/mandubian/ccos-sub004/features/stream/pulse/clients/pulse"
	"goa.design/pulse/streaming"
)

// envelope is the wire shape of one event published to the distributed
// stream; it round-trips through JSON rather than the in-process Event
// struct directly so cross-process subscribers don't need this package.
type envelope struct {
	Type     EventType `json:"type"`
	IntentID string    `json:"intent_id,omitempty"`
	Text     string    `json:"text,omitempty"`
	Result   any       `json:"result,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// distributedBus broadcasts events over a Pulse/Redis stream so multiple
// processes can observe the same session, falling back to local in-process
// fan-out for commands (still single-writer per session).
type distributedBus struct {
	inProc *inProcBus
	stream pulseclient.Stream
	sinkMu sync.Mutex
	sinks  []pulseclient.Sink
}

// NewDistributed returns a Bus that publishes events to a Pulse stream named
// streamName (typically "session/<id>") in addition to in-process delivery,
// for deployments where the orchestrator and observers live in separate
// processes.
func NewDistributed(client pulseclient.Client, streamName string) (Bus, error) {
	stream, err := client.Stream(streamName)
	if err != nil {
		return nil, fmt.Errorf("open pulse stream %q: %w", streamName, err)
	}
	return &distributedBus{
		inProc: &inProcBus{commands: make(chan Command, 64)},
		stream: stream,
	}, nil
}

func (b *distributedBus) Register(sub Subscriber) (Subscription, error) {
	return b.inProc.Register(sub)
}

func (b *distributedBus) Publish(ctx context.Context, evt Event) error {
	if err := b.inProc.Publish(ctx, evt); err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{
		Type:     evt.Type,
		IntentID: evt.IntentID,
		Text:     evt.Text,
		Result:   evt.Result,
		Message:  evt.Message,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}
	_, err = b.stream.Add(ctx, string(evt.Type), payload)
	return err
}

func (b *distributedBus) Submit(ctx context.Context, cmd Command) error {
	return b.inProc.Submit(ctx, cmd)
}

func (b *distributedBus) Commands() <-chan Command { return b.inProc.Commands() }

// Consume starts a Pulse consumer group on the underlying stream and
// forwards every decoded event to every locally-registered subscriber,
// letting a separate process observe events published by the orchestrator.
func (b *distributedBus) Consume(ctx context.Context, consumerName string) error {
	sink, err := b.stream.NewSink(ctx, consumerName)
	if err != nil {
		return fmt.Errorf("create pulse sink %q: %w", consumerName, err)
	}
	b.sinkMu.Lock()
	b.sinks = append(b.sinks, sink)
	b.sinkMu.Unlock()
	go b.drain(ctx, sink)
	return nil
}

func (b *distributedBus) drain(ctx context.Context, sink pulseclient.Sink) {
	defer sink.Close(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sink.Subscribe():
			if !ok {
				return
			}
			b.deliverRemote(ctx, sink, ev)
		}
	}
}

func (b *distributedBus) deliverRemote(ctx context.Context, sink pulseclient.Sink, ev *streaming.Event) {
	var env envelope
	if err := json.Unmarshal(ev.Payload, &env); err != nil {
		return
	}
	_ = b.inProc.Publish(ctx, Event{
		Type:     env.Type,
		IntentID: env.IntentID,
		Text:     env.Text,
		Result:   env.Result,
		Message:  env.Message,
	})
	_ = sink.Ack(ctx, ev)
}

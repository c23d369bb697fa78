package notify

import (
	"context"
	"errors"

	"github.com/zeromicro/go-zero/core/logx"
)

type Kind string

const (
	KindPositions   Kind = "positions"
	KindLeaderboard Kind = "leaderboard"
	KindPrompt      Kind = "prompt"
	KindCountdown   Kind = "countdown"
	KindDeadline    Kind = "deadline"
	KindLiquidation Kind = "liquidation"
	KindSession     Kind = "session"
)

// Message is one or more text pages addressed to a room.
type Message struct {
	Kind  Kind     `json:"kind"`
	Pages []string `json:"pages"`
}

func Text(kind Kind, pages ...string) Message {
	return Message{Kind: kind, Pages: pages}
}

// Sink delivers rendered pages to a room.
type Sink interface {
	Deliver(ctx context.Context, roomID string, msg Message) error
}

// Multi fans a message out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Deliver(ctx context.Context, roomID string, msg Message) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Deliver(ctx, roomID, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Go delivers msgs in order on a background goroutine and only logs
// failures. Price rounds never wait on chat delivery.
func Go(sink Sink, roomID string, msgs ...Message) {
	if sink == nil {
		return
	}
	go func() {
		for _, msg := range msgs {
			if len(msg.Pages) == 0 {
				continue
			}
			if err := sink.Deliver(context.Background(), roomID, msg); err != nil {
				logx.Errorf("⚠️ Failed to deliver %s to room %s: %v", msg.Kind, roomID, err)
			}
		}
	}()
}

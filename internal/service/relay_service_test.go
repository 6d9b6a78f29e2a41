package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestRelayPublishReachesSubscriber(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	relay := NewRelayService(env.rdb, zerolog.Nop())
	quizID := uuid.New()

	sub, err := relay.Subscribe(ctx, quizID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	sent := RoomMessage{
		SenderID: "conn-1",
		UserID:   uuid.New(),
		Event:    "answer_submitted",
		Data:     json.RawMessage(`{"question_index":1}`),
	}
	relay.Publish(ctx, quizID, sent)

	select {
	case msg := <-sub.Channel():
		got, err := relay.Decode(msg.Payload)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.SenderID != sent.SenderID || got.UserID != sent.UserID || got.Event != sent.Event {
			t.Fatalf("unexpected message: %+v", got)
		}
		if string(got.Data) != `{"question_index":1}` {
			t.Fatalf("unexpected data: %s", got.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for room message")
	}
}

func TestRelayRoomsAreIsolated(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	relay := NewRelayService(env.rdb, zerolog.Nop())

	sub, err := relay.Subscribe(ctx, uuid.New())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	relay.Publish(ctx, uuid.New(), RoomMessage{Event: "answer_submitted"})

	select {
	case msg := <-sub.Channel():
		t.Fatalf("unexpected message from another room: %s", msg.Payload)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRelayDecodeRejectsGarbage(t *testing.T) {
	relay := NewRelayService(nil, zerolog.Nop())
	if _, err := relay.Decode("{"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestRoomPublisherDeliversInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv(t)
	relay := NewRelayService(env.rdb, zerolog.Nop())
	quizID := uuid.New()

	sub, err := relay.Subscribe(ctx, quizID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	pub := relay.NewPublisher(ctx, quizID)
	defer pub.Close()
	for _, sender := range []string{"first", "second", "third"} {
		if !pub.Send(RoomMessage{SenderID: sender, Event: "answer_submitted"}) {
			t.Fatalf("send %s rejected", sender)
		}
	}

	for _, want := range []string{"first", "second", "third"} {
		select {
		case msg := <-sub.Channel():
			got, err := relay.Decode(msg.Payload)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.SenderID != want {
				t.Fatalf("expected %s, got %s", want, got.SenderID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestRoomPublisherSendNeverBlocks(t *testing.T) {
	relay := NewRelayService(nil, zerolog.Nop())
	// Not started, so nothing drains the queue.
	pub := newRoomPublisher(relay, uuid.New(), 2)

	done := make(chan []bool, 1)
	go func() {
		done <- []bool{
			pub.Send(RoomMessage{SenderID: "a"}),
			pub.Send(RoomMessage{SenderID: "b"}),
			pub.Send(RoomMessage{SenderID: "c"}),
		}
	}()

	select {
	case accepted := <-done:
		if !accepted[0] || !accepted[1] || accepted[2] {
			t.Fatalf("expected two accepted and one dropped, got %v", accepted)
		}
	case <-time.After(time.Second):
		t.Fatalf("send blocked on a full queue")
	}
}

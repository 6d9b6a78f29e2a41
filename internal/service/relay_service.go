package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/quizcraft/quizcraft-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// publishTimeout bounds a single fire-and-forget publish.
const publishTimeout = 2 * time.Second

// roomQueueSize bounds the messages one connection may have waiting to publish.
const roomQueueSize = 32

// RoomMessage is what travels over a quiz room channel.
type RoomMessage struct {
	SenderID string          `json:"sender_id"`
	UserID   uuid.UUID       `json:"user_id"`
	Event    string          `json:"event"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// RelayService fans quiz room events out across server instances via Redis PubSub.
type RelayService struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRelayService creates a new RelayService.
func NewRelayService(rdb *redis.Client, log zerolog.Logger) *RelayService {
	return &RelayService{
		rdb: rdb,
		log: log.With().Str("component", "relay_service").Logger(),
	}
}

// Publish broadcasts msg to everyone in the quiz room. Delivery is best effort:
// failures are logged and never returned.
func (s *RelayService) Publish(ctx context.Context, quizID uuid.UUID, msg RoomMessage) {
	raw, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to marshal room message")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := s.rdb.Publish(ctx, config.CacheKey.QuizRoomChannel(quizID.String()), raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("Room publish failed")
	}
}

// Subscribe joins the quiz room channel. The caller must Close the subscription.
func (s *RelayService) Subscribe(ctx context.Context, quizID uuid.UUID) (*redis.PubSub, error) {
	sub := s.rdb.Subscribe(ctx, config.CacheKey.QuizRoomChannel(quizID.String()))
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	return sub, nil
}

// Decode parses a raw channel payload.
func (s *RelayService) Decode(payload string) (*RoomMessage, error) {
	var msg RoomMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RoomPublisher publishes one connection's room messages in order on a
// background goroutine, so a slow Redis never stalls the sender.
type RoomPublisher struct {
	relay  *RelayService
	quizID uuid.UUID
	queue  chan RoomMessage
}

// NewPublisher starts a publisher for quizID. It stops when ctx is done or
// Close is called.
func (s *RelayService) NewPublisher(ctx context.Context, quizID uuid.UUID) *RoomPublisher {
	p := newRoomPublisher(s, quizID, roomQueueSize)
	go p.run(ctx)
	return p
}

func newRoomPublisher(s *RelayService, quizID uuid.UUID, size int) *RoomPublisher {
	return &RoomPublisher{
		relay:  s,
		quizID: quizID,
		queue:  make(chan RoomMessage, size),
	}
}

func (p *RoomPublisher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-p.queue:
			if !ok || ctx.Err() != nil {
				return
			}
			p.relay.Publish(ctx, p.quizID, msg)
		}
	}
}

// Send queues msg without blocking. It reports false and drops msg when the
// queue is full. Send must not be called after Close.
func (p *RoomPublisher) Send(msg RoomMessage) bool {
	select {
	case p.queue <- msg:
		return true
	default:
		p.relay.log.Warn().Str("quiz_id", p.quizID.String()).Msg("Room publish queue full, dropping message")
		return false
	}
}

// Close stops accepting messages. Queued messages are still published unless
// the publisher's context ends first.
func (p *RoomPublisher) Close() {
	close(p.queue)
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/presencechat/internal/model"
	"github.com/mcoot/presencechat/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
//
// Participants live in one sorted set (member = name, score = last-seen unix millis),
// so ZADD NX gives the uniqueness constraint. Messages are JSON entries in a list and
// their Seq is the list position reported by RPUSH.
type Storage struct {
	client *redis.Client
	cfg    Config
	log    *slog.Logger
}

// New creates a new Redis storage instance
func New(cfg Config, log *slog.Logger) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg, log), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, log *slog.Logger) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
		log:    log,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection
func (s *Storage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return storage.Unavailable("redis ping", err)
	}
	return nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Participant operations

func (s *Storage) InsertParticipant(ctx context.Context, p *model.Participant) error {
	added, err := s.client.ZAddNX(ctx, participantsKey(s.cfg.KeyPrefix), redis.Z{
		Score:  float64(p.LastSeen.UnixMilli()),
		Member: p.Name,
	}).Result()
	if err != nil {
		return storage.Unavailable("redis insert participant", err)
	}
	if added == 0 {
		return model.ErrParticipantExists
	}
	return nil
}

func (s *Storage) GetParticipant(ctx context.Context, name string) (*model.Participant, error) {
	score, err := s.client.ZScore(ctx, participantsKey(s.cfg.KeyPrefix), name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrParticipantNotFound
		}
		return nil, storage.Unavailable("redis get participant", err)
	}
	return &model.Participant{Name: name, LastSeen: fromScore(score)}, nil
}

func (s *Storage) ListParticipants(ctx context.Context) ([]*model.Participant, error) {
	members, err := s.client.ZRangeWithScores(ctx, participantsKey(s.cfg.KeyPrefix), 0, -1).Result()
	if err != nil {
		return nil, storage.Unavailable("redis list participants", err)
	}

	participants := make([]*model.Participant, 0, len(members))
	for _, z := range members {
		name, ok := z.Member.(string)
		if !ok {
			continue
		}
		participants = append(participants, &model.Participant{Name: name, LastSeen: fromScore(z.Score)})
	}
	return participants, nil
}

func (s *Storage) TouchParticipant(ctx context.Context, name string, seen time.Time) error {
	updated, err := touchScript.Run(ctx, s.client,
		[]string{participantsKey(s.cfg.KeyPrefix)},
		name, seen.UnixMilli(),
	).Int()
	if err != nil {
		return storage.Unavailable("redis touch participant", err)
	}
	if updated == 0 {
		return model.ErrParticipantNotFound
	}
	return nil
}

func (s *Storage) DeleteParticipants(ctx context.Context, names []string, seenBefore time.Time) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(names)+1)
	args = append(args, seenBefore.UnixMilli())
	for _, name := range names {
		args = append(args, name)
	}

	removed, err := deleteStaleScript.Run(ctx, s.client,
		[]string{participantsKey(s.cfg.KeyPrefix)},
		args...,
	).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, storage.Unavailable("redis delete participants", err)
	}
	return removed, nil
}

// Message operations

func (s *Storage) AppendMessage(ctx context.Context, m *model.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	length, err := s.client.RPush(ctx, messagesKey(s.cfg.KeyPrefix), data).Result()
	if err != nil {
		return storage.Unavailable("redis append message", err)
	}
	m.Seq = length
	return nil
}

func (s *Storage) ListMessages(ctx context.Context) ([]*model.Message, error) {
	values, err := s.client.LRange(ctx, messagesKey(s.cfg.KeyPrefix), 0, -1).Result()
	if err != nil {
		return nil, storage.Unavailable("redis list messages", err)
	}

	messages := make([]*model.Message, 0, len(values))
	for i, val := range values {
		var m model.Message
		if err := json.Unmarshal([]byte(val), &m); err != nil {
			s.log.Warn("skipping undecodable message",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		m.Seq = int64(i) + 1
		messages = append(messages, &m)
	}
	return messages, nil
}

func fromScore(score float64) time.Time {
	return time.UnixMilli(int64(score)).UTC()
}

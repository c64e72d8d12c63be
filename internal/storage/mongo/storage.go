package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mcoot/presencechat/internal/model"
	"github.com/mcoot/presencechat/internal/storage"
)

// Storage is a MongoDB implementation of the storage interface.
// A unique index on participants.name enforces name uniqueness; message order comes
// from a counter document incremented atomically per append.
type Storage struct {
	client       *mongo.Client
	participants *mongo.Collection
	messages     *mongo.Collection
	counters     *mongo.Collection
}

// New connects to MongoDB and ensures the indexes exist
func New(ctx context.Context, cfg Config) (*Storage, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := NewWithClient(client, cfg.Database)
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// NewWithClient creates a Mongo storage over an existing client (for testing)
func NewWithClient(client *mongo.Client, database string) *Storage {
	db := client.Database(database)
	return &Storage{
		client:       client,
		participants: db.Collection(participantsCollection),
		messages:     db.Collection(messagesCollection),
		counters:     db.Collection(countersCollection),
	}
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	_, err := s.participants.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo participants index: %w", err)
	}
	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "seq", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo messages index: %w", err)
	}
	return nil
}

// Close disconnects the client
func (s *Storage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks the server connection
func (s *Storage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return storage.Unavailable("mongo ping", err)
	}
	return nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Participant operations

func (s *Storage) InsertParticipant(ctx context.Context, p *model.Participant) error {
	_, err := s.participants.InsertOne(ctx, p)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrParticipantExists
		}
		return storage.Unavailable("mongo insert participant", err)
	}
	return nil
}

func (s *Storage) GetParticipant(ctx context.Context, name string) (*model.Participant, error) {
	var p model.Participant
	err := s.participants.FindOne(ctx, bson.M{"name": name}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrParticipantNotFound
		}
		return nil, storage.Unavailable("mongo get participant", err)
	}
	return &p, nil
}

func (s *Storage) ListParticipants(ctx context.Context) ([]*model.Participant, error) {
	participants, err := s.findParticipants(ctx, bson.M{})
	if err != nil {
		return nil, storage.Unavailable("mongo list participants", err)
	}
	return participants, nil
}

func (s *Storage) TouchParticipant(ctx context.Context, name string, seen time.Time) error {
	res, err := s.participants.UpdateOne(ctx,
		bson.M{"name": name},
		bson.M{"$set": bson.M{"lastSeen": seen}},
	)
	if err != nil {
		return storage.Unavailable("mongo touch participant", err)
	}
	if res.MatchedCount == 0 {
		return model.ErrParticipantNotFound
	}
	return nil
}

// DeleteParticipants issues a single DeleteMany guarded by lastSeen.
// The removed names are the candidates matching the guard before the delete, minus any
// that still exist afterwards.
func (s *Storage) DeleteParticipants(ctx context.Context, names []string, seenBefore time.Time) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}

	filter := bson.M{
		"name":     bson.M{"$in": names},
		"lastSeen": bson.M{"$lte": seenBefore},
	}
	candidates, err := s.findParticipants(ctx, filter)
	if err != nil {
		return nil, storage.Unavailable("mongo find stale participants", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	candidateNames := make([]string, len(candidates))
	for i, p := range candidates {
		candidateNames[i] = p.Name
	}

	res, err := s.participants.DeleteMany(ctx, bson.M{
		"name":     bson.M{"$in": candidateNames},
		"lastSeen": bson.M{"$lte": seenBefore},
	})
	if err != nil {
		return nil, storage.Unavailable("mongo delete participants", err)
	}
	if int(res.DeletedCount) == len(candidateNames) {
		return candidateNames, nil
	}

	remaining, err := s.findParticipants(ctx, bson.M{"name": bson.M{"$in": candidateNames}})
	if err != nil {
		return nil, storage.Unavailable("mongo find remaining participants", err)
	}
	kept := make(map[string]bool, len(remaining))
	for _, p := range remaining {
		kept[p.Name] = true
	}
	deleted := make([]string, 0, len(candidateNames))
	for _, name := range candidateNames {
		if !kept[name] {
			deleted = append(deleted, name)
		}
	}
	return deleted, nil
}

func (s *Storage) findParticipants(ctx context.Context, filter any) ([]*model.Participant, error) {
	cursor, err := s.participants.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	participants := []*model.Participant{}
	if err := cursor.All(ctx, &participants); err != nil {
		return nil, err
	}
	return participants, nil
}

// Message operations

func (s *Storage) AppendMessage(ctx context.Context, m *model.Message) error {
	seq, err := s.nextSeq(ctx)
	if err != nil {
		return storage.Unavailable("mongo next sequence", err)
	}
	m.Seq = seq

	if _, err := s.messages.InsertOne(ctx, m); err != nil {
		return storage.Unavailable("mongo append message", err)
	}
	return nil
}

func (s *Storage) ListMessages(ctx context.Context) ([]*model.Message, error) {
	cursor, err := s.messages.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, storage.Unavailable("mongo list messages", err)
	}
	messages := []*model.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, storage.Unavailable("mongo decode messages", err)
	}
	return messages, nil
}

func (s *Storage) nextSeq(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": messagesCollection},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultDatabase = "quickchat"

// Store wraps the MongoDB client and exposes the collection helpers used by
// the server. Messages live in "messages", users in "users".
type Store struct {
	client   *mongo.Client
	messages *mongo.Collection
	users    *mongo.Collection
}

// Message is a persisted chat message. FileURL and FileType are nil for plain
// text messages; JSON encodes them as null so clients see an explicit absence.
type Message struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Sender    string             `bson:"sender" json:"sender"`
	Content   string             `bson:"content" json:"content"`
	FileURL   *string            `bson:"fileUrl,omitempty" json:"fileUrl"`
	FileType  *string            `bson:"fileType,omitempty" json:"fileType"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// User is a registered chat identity. SocketID is present only while a
// connection is live; an unset field means offline.
type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username string             `bson:"username" json:"username"`
	SocketID *string            `bson:"socketId,omitempty" json:"socketId,omitempty"`
	JoinedAt time.Time          `bson:"joinedAt" json:"joinedAt"`
}

// NewStore connects to MongoDB at the given URI. The driver connects lazily,
// so this succeeds even when the server is unreachable; call Ping to verify.
func NewStore(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	if database == "" {
		database = defaultDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	db := client.Database(database)
	return &Store{
		client:   client,
		messages: db.Collection("messages"),
		users:    db.Collection("users"),
	}, nil
}

// Ping verifies the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique username index that makes registration
// upserts atomic per user.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// UpsertUser binds a live socket ID to the user with the given username,
// creating the record (with joinedAt) on first registration. The upsert is
// atomic, so concurrent registrations of the same name cannot produce
// duplicate records.
func (s *Store) UpsertUser(ctx context.Context, username, socketID string) error {
	res := s.users.FindOneAndUpdate(ctx,
		bson.M{"username": username},
		bson.M{
			"$set":         bson.M{"socketId": socketID},
			"$setOnInsert": bson.M{"joinedAt": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	return res.Err()
}

// DetachSocket unsets the socket ID on whichever user currently holds it and
// returns that user's username. A socket that never registered matches no
// record and returns "" with no error.
func (s *Store) DetachSocket(ctx context.Context, socketID string) (string, error) {
	var user User
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"socketId": socketID},
		bson.M{"$unset": bson.M{"socketId": ""}},
	).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// OnlineUsernames lists the usernames of users whose socketId field is
// present, projected down to just the username.
func (s *Store) OnlineUsernames(ctx context.Context) ([]string, error) {
	cursor, err := s.users.Find(ctx,
		bson.M{"socketId": bson.M{"$exists": true}},
		options.Find().SetProjection(bson.M{"username": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	names := make([]string, 0)
	for cursor.Next(ctx) {
		var user User
		if err := cursor.Decode(&user); err != nil {
			return nil, err
		}
		names = append(names, user.Username)
	}
	return names, cursor.Err()
}

// InsertMessage persists a message and fills in its assigned id and the
// server timestamp.
func (s *Store) InsertMessage(ctx context.Context, message *Message) error {
	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	_, err := s.messages.InsertOne(ctx, message)
	return err
}

// ListMessages returns every persisted message in natural (insertion) order.
func (s *Store) ListMessages(ctx context.Context) ([]Message, error) {
	cursor, err := s.messages.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := make([]Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// DeleteAllMessages removes every message unconditionally.
func (s *Store) DeleteAllMessages(ctx context.Context) error {
	_, err := s.messages.DeleteMany(ctx, bson.M{})
	return err
}

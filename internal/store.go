package internal

import (
	"context"

	"quickchat/internal/storage"
)

// Store is the slice of the persistence layer the hub and HTTP handlers use.
// *storage.Store satisfies it; tests substitute an in-memory implementation.
type Store interface {
	UpsertUser(ctx context.Context, username, socketID string) error
	DetachSocket(ctx context.Context, socketID string) (string, error)
	OnlineUsernames(ctx context.Context) ([]string, error)
	InsertMessage(ctx context.Context, message *storage.Message) error
	ListMessages(ctx context.Context) ([]storage.Message, error)
	DeleteAllMessages(ctx context.Context) error
}

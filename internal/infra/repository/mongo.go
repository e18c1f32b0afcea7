package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
	"voice-relay/internal/domain/entities"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const conversationDocumentID = "conversation"

type conversationDocument struct {
	ID        string             `bson:"_id"`
	Messages  []entities.Message `bson:"messages"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// MongoRepository keeps the conversation as a single document in a collection.
type MongoRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoRepository(client *mongo.Client, database, collection string) *MongoRepository {
	return &MongoRepository{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}
}

func (r *MongoRepository) Read(ctx context.Context) ([]entities.Message, error) {
	var doc conversationDocument
	filter := bson.M{"_id": conversationDocumentID}

	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation document: %w", err)
	}
	return doc.Messages, nil
}

func (r *MongoRepository) Write(ctx context.Context, messages []entities.Message) error {
	if messages == nil {
		messages = []entities.Message{}
	}
	doc := conversationDocument{
		ID:        conversationDocumentID,
		Messages:  messages,
		UpdatedAt: time.Now().UTC(),
	}
	filter := bson.M{"_id": conversationDocumentID}

	// Upsert so the first turn creates the document.
	_, err := r.collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to replace conversation document: %w", err)
	}
	return nil
}

func (r *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

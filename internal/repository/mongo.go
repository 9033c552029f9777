package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/readoai/readoai-go/internal/model"
)

const userCollection = "users"

// userDocument is the BSON shape of a user in the users collection.
type userDocument struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (d *userDocument) toModel() *model.User {
	return &model.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
	}
}

// MongoUserStore handles user persistence in a MongoDB collection.
type MongoUserStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoUserStore connects to uri, ensures the unique email index exists
// and returns a store bound to database.
func NewMongoUserStore(ctx context.Context, uri, database string) (*MongoUserStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	collection := client.Database(database).Collection(userCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("creating user indexes: %w", err)
	}

	return &MongoUserStore{client: client, collection: collection}, nil
}

// Create inserts a new user document.
func (s *MongoUserStore) Create(ctx context.Context, user *model.User) error {
	doc := userDocument{
		ID:           uuid.NewString(),
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	user.ID = doc.ID
	user.CreatedAt = doc.CreatedAt
	return nil
}

// FindByEmail retrieves a user by their email address.
func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// FindByID retrieves a user by ID, projecting away the password hash.
func (s *MongoUserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	opts := options.FindOne().SetProjection(bson.M{"password_hash": 0})
	return s.findOne(ctx, bson.M{"_id": id}, opts)
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOneOptions]) (*model.User, error) {
	var doc userDocument
	if err := s.collection.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

// Close disconnects the underlying client.
func (s *MongoUserStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

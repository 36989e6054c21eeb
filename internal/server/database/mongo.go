package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const usersCollection = "users"

// mongoUser is the document layout of the users collection.
type mongoUser struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	Role      string             `bson:"role"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// MongoStore keeps users in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
}

// NewMongoStore connects, pings the primary and ensures the unique email index.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	users := client.Database(database).Collection(usersCollection)
	_, err = users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create email index: %w", err)
	}

	slog.Info("connected to database", "driver", "mongodb", "database", database)
	return &MongoStore{client: client, users: users}, nil
}

// FindByEmail looks a user up by exact email.
func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	var doc mongoUser
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &User{
		ID:           doc.ID.Hex(),
		Name:         doc.Name,
		Email:        doc.Email,
		PasswordHash: doc.Password,
		Role:         doc.Role,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

// Create inserts a user and fills in its generated ID.
func (s *MongoStore) Create(ctx context.Context, user *User) error {
	res, err := s.users.InsertOne(ctx, mongoUser{
		Name:      user.Name,
		Email:     user.Email,
		Password:  user.PasswordHash,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = id.Hex()
	}
	return nil
}

// HealthCheck pings the primary.
func (s *MongoStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

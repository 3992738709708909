// Package data provides DB models and stores.
package data

import (
	"context" // Used for cancellation and timeouts
	"errors"  // Error handling
	"time"    // Timestamps

	"github.com/PaulBabatuyi/quotechat/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"  // MongoDB document queries
	"go.mongodb.org/mongo-driver/v2/mongo" // MongoDB driver
)

// UsersStore performs user DB operations.
type UsersStore struct {
	// coll is reference to "users" collection in MongoDB
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// CreateUser inserts a new user document with hashed password.
func (u *UsersStore) CreateUser(ctx context.Context, email, hashedPassword string) (*User, error) {
	now := time.Now()
	user := &User{
		Email:     normalize.Email(email), // unique index is on the normalized form
		Password:  hashedPassword,         // Already hashed by auth.HashPassword()
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := u.coll.InsertOne(ctx, user)
	if err != nil {
		// Unique index on email rejected the insert (concurrent registration)
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	// MongoDB auto-generates the _id field; it becomes the JWT user_id claim
	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

// GetUserByEmail finds a user by email.
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return u.findOne(ctx, bson.M{"email": normalize.Email(email)})
}

// GetUserByID finds a user by ObjectID.
func (u *UsersStore) GetUserByID(ctx context.Context, id bson.ObjectID) (*User, error) {
	return u.findOne(ctx, bson.M{"_id": id})
}

// UserExists checks if a user exists by email.
func (u *UsersStore) UserExists(ctx context.Context, email string) (bool, error) {
	// CountDocuments is cheaper than decoding a full document
	count, err := u.coll.CountDocuments(ctx, bson.M{"email": normalize.Email(email)})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (u *UsersStore) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Package mongo provides a MongoDB implementation of the identity repository.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/storefront-auth/internal/domain"
	"github.com/bissquit/storefront-auth/internal/identity"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CollectionName is the collection holding user documents.
const CollectionName = "users"

type userDocument struct {
	ID              string    `bson:"_id"`
	Email           string    `bson:"email"`
	PasswordHash    string    `bson:"password_hash"`
	Role            string    `bson:"role"`
	Name            string    `bson:"name,omitempty"`
	Image           string    `bson:"image,omitempty"`
	Age             *int      `bson:"age,omitempty"`
	Gender          string    `bson:"gender,omitempty"`
	IsEmailVerified bool      `bson:"is_email_verified"`
	IsActive        bool      `bson:"is_active"`
	IsDeleted       bool      `bson:"is_deleted"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

// Repository implements the identity.Repository interface on a Mongo collection.
type Repository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewRepository creates a repository on db.users.
func NewRepository(db *mongo.Database) *Repository {
	return &Repository{
		coll: db.Collection(CollectionName),
		now:  time.Now,
	}
}

// EnsureIndexes creates the unique email index. It is safe to call repeatedly.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_key"),
	})
	if err != nil {
		return fmt.Errorf("create email index: %w", err)
	}
	return nil
}

// CreateUser inserts a user document. The unique index rejects duplicate emails.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	now := r.now().UTC().Truncate(time.Millisecond)
	doc := toDocument(user)
	doc.ID = uuid.NewString()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return identity.ErrEmailExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	user.ID = doc.ID
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by normalized email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := r.findOne(ctx, bson.D{{Key: "email", Value: email}})
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// UpdateUserStatus applies the non-nil lifecycle flags and returns the updated document.
func (r *Repository) UpdateUserStatus(ctx context.Context, id string, update identity.StatusUpdate) (*domain.User, error) {
	set := bson.D{{Key: "updated_at", Value: r.now().UTC().Truncate(time.Millisecond)}}
	if update.IsActive != nil {
		set = append(set, bson.E{Key: "is_active", Value: *update.IsActive})
	}
	if update.IsDeleted != nil {
		set = append(set, bson.E{Key: "is_deleted", Value: *update.IsDeleted})
	}

	var doc userDocument
	err := r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("update user status: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *Repository) findOne(ctx context.Context, filter bson.D) (*domain.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, identity.ErrUserNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func toDocument(u *domain.User) userDocument {
	return userDocument{
		ID:              u.ID,
		Email:           u.Email,
		PasswordHash:    u.PasswordHash,
		Role:            string(u.Role),
		Name:            u.Name,
		Image:           u.Image,
		Age:             u.Age,
		Gender:          u.Gender,
		IsEmailVerified: u.IsEmailVerified,
		IsActive:        u.IsActive,
		IsDeleted:       u.IsDeleted,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func (d userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:              d.ID,
		Email:           d.Email,
		PasswordHash:    d.PasswordHash,
		Role:            domain.Role(d.Role),
		Name:            d.Name,
		Image:           d.Image,
		Age:             d.Age,
		Gender:          d.Gender,
		IsEmailVerified: d.IsEmailVerified,
		IsActive:        d.IsActive,
		IsDeleted:       d.IsDeleted,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

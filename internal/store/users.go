package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cv_builder_bot/internal/domain"
)

type userCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// UserRepository persists and retrieves CV reservations in MongoDB.
type UserRepository struct {
	collection userCollection
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(collection userCollection) *UserRepository {
	return &UserRepository{collection: collection}
}

// FindByEmail fetches the reservation for an exact email match. Returns
// domain.ErrNotFound when no record exists.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.UserRecord, error) {
	if r == nil || r.collection == nil {
		return domain.UserRecord{}, errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return domain.UserRecord{}, errors.New("context is required")
	}
	if email == "" {
		return domain.UserRecord{}, errors.New("email is required")
	}

	return r.decodeOne(r.collection.FindOne(ctx, bson.M{"email": email}))
}

// GetByID fetches a reservation by its hex document id. Returns
// domain.ErrNotFound for unknown or malformed ids.
func (r *UserRepository) GetByID(ctx context.Context, id string) (domain.UserRecord, error) {
	if r == nil || r.collection == nil {
		return domain.UserRecord{}, errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return domain.UserRecord{}, errors.New("context is required")
	}

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.UserRecord{}, domain.ErrNotFound
	}

	return r.decodeOne(r.collection.FindOne(ctx, bson.M{"_id": objectID}))
}

// InsertIfAbsent inserts a new reservation, relying on the unique email index
// to reject duplicates atomically. A duplicate-key failure is translated into
// domain.ErrDuplicateEmail so concurrent reservations surface the same way as
// a find-first rejection.
func (r *UserRepository) InsertIfAbsent(ctx context.Context, record domain.UserRecord) (domain.UserRecord, error) {
	if r == nil || r.collection == nil {
		return domain.UserRecord{}, errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return domain.UserRecord{}, errors.New("context is required")
	}
	if record.Email == "" {
		return domain.UserRecord{}, errors.New("email is required")
	}
	if record.PaymentStatus == "" {
		record.PaymentStatus = domain.StatusPending
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.UserRecord{}, domain.ErrDuplicateEmail
		}
		return domain.UserRecord{}, fmt.Errorf("insert user: %w", err)
	}

	if result != nil {
		if id, ok := result.InsertedID.(primitive.ObjectID); ok {
			record.ID = id
		}
	}

	return record, nil
}

// UpdateStatus sets the payment status for the record matching the email.
// Returns domain.ErrNotFound when no record matched.
func (r *UserRepository) UpdateStatus(ctx context.Context, email string, status domain.PaymentStatus) error {
	if r == nil || r.collection == nil {
		return errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if email == "" {
		return errors.New("email is required")
	}

	return r.setStatus(ctx, bson.M{"email": email}, status)
}

// UpdateStatusByID sets the payment status for the record matching the hex
// document id; used by the REST verification route.
func (r *UserRepository) UpdateStatusByID(ctx context.Context, id string, status domain.PaymentStatus) error {
	if r == nil || r.collection == nil {
		return errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrNotFound
	}

	return r.setStatus(ctx, bson.M{"_id": objectID}, status)
}

// AttachReceipt stores a payment receipt reference and moves the reservation to
// pending_verification. Only pending reservations transition; a later state is
// never overwritten. Returns domain.ErrNotFound for unknown ids and
// domain.ErrInvalidTransition when the record exists but already moved on.
func (r *UserRepository) AttachReceipt(ctx context.Context, id, receiptRef string) error {
	if r == nil || r.collection == nil {
		return errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if receiptRef == "" {
		return errors.New("receipt reference is required")
	}

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrNotFound
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "payment_status": domain.StatusPending},
		bson.M{"$set": bson.M{
			"payment_receipt": receiptRef,
			"payment_status":  domain.StatusPendingVerification,
			"updated_at":      time.Now().UTC().Truncate(time.Millisecond),
		}},
	)
	if err != nil {
		return fmt.Errorf("attach receipt: %w", err)
	}

	if result == nil || result.MatchedCount == 0 {
		if _, findErr := r.GetByID(ctx, id); findErr != nil {
			return findErr
		}
		return domain.ErrInvalidTransition
	}

	return nil
}

func (r *UserRepository) setStatus(ctx context.Context, filter bson.M, status domain.PaymentStatus) error {
	result, err := r.collection.UpdateOne(ctx,
		filter,
		bson.M{"$set": bson.M{
			"payment_status": status,
			"updated_at":     time.Now().UTC().Truncate(time.Millisecond),
		}},
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}

	if result == nil || result.MatchedCount == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *UserRepository) decodeOne(result *mongo.SingleResult) (domain.UserRecord, error) {
	if result == nil {
		return domain.UserRecord{}, errors.New("find user returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.UserRecord{}, domain.ErrNotFound
		}
		return domain.UserRecord{}, fmt.Errorf("find user: %w", err)
	}

	var record domain.UserRecord
	if err := result.Decode(&record); err != nil {
		return domain.UserRecord{}, fmt.Errorf("decode user: %w", err)
	}

	return record, nil
}

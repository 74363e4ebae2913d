package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserRecord represents a single CV reservation keyed by email.
type UserRecord struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name           string             `bson:"name,omitempty" json:"name,omitempty"`
	Email          string             `bson:"email" json:"email"`
	Experience     string             `bson:"experience,omitempty" json:"experience,omitempty"`
	CVModel        Tier               `bson:"cv_model" json:"cv_model"`
	PaymentStatus  PaymentStatus      `bson:"payment_status" json:"payment_status"`
	PaymentReceipt string             `bson:"payment_receipt,omitempty" json:"payment_receipt,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	UsersCollection        = "users"
	OTPsCollection         = "otps"
	OTPRequestsCollection  = "otp_requests"
	AppointmentsCollection = "appointments"

	// OTPLedgerRetention outlives a clinic day in any timezone.
	OTPLedgerRetention = 48 * time.Hour
)

// IndexOptions carries the tunable parts of the index set.
type IndexOptions struct {
	OTPRetention time.Duration
}

type collectionIndexes struct {
	collection string
	models     []mongo.IndexModel
}

func indexSet(opts IndexOptions) []collectionIndexes {
	return []collectionIndexes{
		{UsersCollection, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "phone", Value: 1}},
				Options: options.Index().SetName("phone_unique").SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("email_unique").SetUnique(true).
					SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string"}}),
			},
		}},
		{OTPsCollection, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "phone", Value: 1}, {Key: "purpose", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("phone_purpose_created"),
			},
			{
				Keys:    bson.D{{Key: "created_at", Value: 1}},
				Options: options.Index().SetName("created_at_ttl").SetExpireAfterSeconds(int32(opts.OTPRetention.Seconds())),
			},
		}},
		{OTPRequestsCollection, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "phone", Value: 1}, {Key: "created_at", Value: 1}},
				Options: options.Index().SetName("phone_created"),
			},
			{
				Keys:    bson.D{{Key: "created_at", Value: 1}},
				Options: options.Index().SetName("created_at_ttl").SetExpireAfterSeconds(int32(OTPLedgerRetention.Seconds())),
			},
		}},
		{AppointmentsCollection, []mongo.IndexModel{
			{
				// At most one active appointment per (date, slot).
				Keys: bson.D{{Key: "date", Value: 1}, {Key: "time_slot", Value: 1}},
				Options: options.Index().SetName("date_slot_active_unique").SetUnique(true).
					SetPartialFilterExpression(bson.M{"active": true}),
			},
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: -1}},
				Options: options.Index().SetName("user_date"),
			},
			{
				Keys:    bson.D{{Key: "status", Value: 1}, {Key: "date", Value: 1}},
				Options: options.Index().SetName("status_date"),
			},
		}},
	}
}

// EnsureIndexes creates every index the repositories rely on. An index that
// already exists with different options is logged and left in place.
func EnsureIndexes(ctx context.Context, db *mongo.Database, opts IndexOptions) error {
	if opts.OTPRetention <= 0 {
		opts.OTPRetention = 5 * time.Minute
	}
	for _, set := range indexSet(opts) {
		for _, model := range set.models {
			_, err := db.Collection(set.collection).Indexes().CreateOne(ctx, model)
			if err == nil {
				continue
			}
			if isIndexConflict(err) {
				log.Warn().Err(err).Str("collection", set.collection).Msg("Index exists with different options; leaving it")
				continue
			}
			return fmt.Errorf("create index on %s: %w", set.collection, err)
		}
	}
	return nil
}

func isIndexConflict(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		// IndexOptionsConflict, IndexKeySpecsConflict
		return cmdErr.Code == 85 || cmdErr.Code == 86
	}
	return false
}

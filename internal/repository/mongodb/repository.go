package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/mandi/internal/domain/models"
	"github.com/mamadbah2/mandi/internal/repository"
)

const (
	lotsCollection        = "lots"
	settlementsCollection = "daily_settlements"
)

// MongoDBRepository stores lots and daily settlements in MongoDB.
type MongoDBRepository struct {
	client *mongo.Client
	dbName string
}

var (
	_ repository.LotRepository        = (*MongoDBRepository)(nil)
	_ repository.SettlementRepository = (*MongoDBRepository)(nil)
)

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client: client,
		dbName: dbName,
	}, nil
}

// EnsureIndexes creates the indexes used by record listings and digests.
func (r *MongoDBRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection(lotsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "farmer_id", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "splits.trader_id", Value: 1}}},
		{Keys: bson.D{{Key: "splits.date", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create lot indexes: %w", err)
	}

	_, err = r.collection(settlementsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create settlement index: %w", err)
	}
	return nil
}

// InsertLot stores a new lot.
func (r *MongoDBRepository) InsertLot(ctx context.Context, lot models.Lot) error {
	if _, err := r.collection(lotsCollection).InsertOne(ctx, lot); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to insert lot: %w", err)
	}
	return nil
}

// FindLot loads one lot by id.
func (r *MongoDBRepository) FindLot(ctx context.Context, id string) (models.Lot, error) {
	var lot models.Lot
	err := r.collection(lotsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&lot)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Lot{}, repository.ErrNotFound
	}
	if err != nil {
		return models.Lot{}, fmt.Errorf("failed to load lot %s: %w", id, err)
	}
	return lot, nil
}

// ListLots returns lots matching the filter, newest first.
func (r *MongoDBRepository) ListLots(ctx context.Context, filter repository.LotFilter) ([]models.Lot, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection(lotsCollection).Find(ctx, lotQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer cursor.Close(ctx)

	lots := make([]models.Lot, 0)
	if err := cursor.All(ctx, &lots); err != nil {
		return nil, fmt.Errorf("failed to decode lots: %w", err)
	}
	return lots, nil
}

// ReplaceLot overwrites a lot if it is still at expectedVersion.
func (r *MongoDBRepository) ReplaceLot(ctx context.Context, lot models.Lot, expectedVersion int64) error {
	res, err := r.collection(lotsCollection).ReplaceOne(ctx, bson.M{"_id": lot.ID, "version": expectedVersion}, lot)
	if err != nil {
		return fmt.Errorf("failed to replace lot %s: %w", lot.ID, err)
	}
	if res.MatchedCount == 0 {
		return r.missOrConflict(ctx, lot.ID)
	}
	return nil
}

// DeleteLot removes a lot if it is still at expectedVersion.
func (r *MongoDBRepository) DeleteLot(ctx context.Context, id string, expectedVersion int64) error {
	res, err := r.collection(lotsCollection).DeleteOne(ctx, bson.M{"_id": id, "version": expectedVersion})
	if err != nil {
		return fmt.Errorf("failed to delete lot %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// SaveDailySettlement upserts the digest for its day so reruns overwrite it.
func (r *MongoDBRepository) SaveDailySettlement(ctx context.Context, settlement models.DailySettlement) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection(settlementsCollection).ReplaceOne(ctx, bson.M{"date": settlement.Date}, settlement, opts)
	if err != nil {
		return fmt.Errorf("failed to save daily settlement: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoDBRepository) collection(name string) *mongo.Collection {
	return r.client.Database(r.dbName).Collection(name)
}

func (r *MongoDBRepository) missOrConflict(ctx context.Context, id string) error {
	count, err := r.collection(lotsCollection).CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check lot %s: %w", id, err)
	}
	if count == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrVersionConflict
}

func lotQuery(filter repository.LotFilter) bson.M {
	query := bson.M{}
	if filter.FarmerID != "" {
		query["farmer_id"] = filter.FarmerID
	}
	if filter.TraderID != "" {
		query["$or"] = bson.A{
			bson.M{"trader_id": filter.TraderID},
			bson.M{"splits.trader_id": filter.TraderID},
		}
	}

	window := timeWindow(filter.From, filter.To)
	if len(window) > 0 {
		activity := bson.A{
			bson.M{"createdAt": window},
			bson.M{"sold_at": window},
			bson.M{"splits": bson.M{"$elemMatch": bson.M{"date": window}}},
		}
		if _, ok := query["$or"]; ok {
			query["$and"] = bson.A{bson.M{"$or": query["$or"]}, bson.M{"$or": activity}}
			delete(query, "$or")
		} else {
			query["$or"] = activity
		}
	}
	return query
}

func timeWindow(from, to time.Time) bson.M {
	window := bson.M{}
	if !from.IsZero() {
		window["$gte"] = from
	}
	if !to.IsZero() {
		window["$lt"] = to
	}
	return window
}

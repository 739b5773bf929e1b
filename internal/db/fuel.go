package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kpiconstruction/fleetrules/internal/models"
)

// MongoFuelCollection implements FuelCollection.
type MongoFuelCollection struct {
	Collection *mongo.Collection
}

// InsertFuelTransaction inserts a transaction and returns its ID.
func (c *MongoFuelCollection) InsertFuelTransaction(ctx context.Context, tx models.FuelTransaction) (string, error) {
	if c.Collection == nil {
		return "", fmt.Errorf("mongo collection is nil")
	}
	tx.CreatedAt = time.Now()
	res, err := c.Collection.InsertOne(ctx, tx)
	if err != nil {
		return "", err
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted ID type %T", res.InsertedID)
	}
	return id.Hex(), nil
}

// FindFuelByVehicle returns a vehicle's fuel transactions, newest first.
func (c *MongoFuelCollection) FindFuelByVehicle(ctx context.Context, vehicleID string) ([]models.FuelTransaction, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	cursor, err := c.Collection.Find(ctx, bson.M{"vehicle_id": vehicleID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var txs []models.FuelTransaction
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

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

// MongoWorkerStatusCollection implements WorkerStatusCollection. Statuses
// are keyed by the normalized worker name, one record per worker, upserted
// on every risk run and never deleted.
type MongoWorkerStatusCollection struct {
	Collection *mongo.Collection
}

// FindWorkerStatus returns the status for one worker key, or nil when the
// worker has not been sighted before.
func (c *MongoWorkerStatusCollection) FindWorkerStatus(ctx context.Context, workerKey string) (*models.WorkerRiskStatus, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	var status models.WorkerRiskStatus
	err := c.Collection.FindOne(ctx, bson.M{"worker_key": workerKey}).Decode(&status)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &status, nil
}

// FindWorkerStatuses queries status records.
func (c *MongoWorkerStatusCollection) FindWorkerStatuses(ctx context.Context, filter bson.M) ([]models.WorkerRiskStatus, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	cursor, err := c.Collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var statuses []models.WorkerRiskStatus
	if err := cursor.All(ctx, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// UpsertWorkerStatus writes a worker's status by key, creating the record
// on first sighting.
func (c *MongoWorkerStatusCollection) UpsertWorkerStatus(ctx context.Context, status models.WorkerRiskStatus) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	status.UpdatedAt = time.Now()
	status.ID = primitive.NilObjectID // the filter keys the write, not the object ID
	opts := options.Replace().SetUpsert(true)
	_, err := c.Collection.ReplaceOne(ctx, bson.M{"worker_key": status.WorkerKey}, status, opts)
	return err
}

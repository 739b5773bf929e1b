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

// MongoImportCollection implements ImportCollection over the batch and row
// collections.
type MongoImportCollection struct {
	Batches *mongo.Collection
	Rows    *mongo.Collection
}

// InsertBatch inserts a batch and returns its ID.
func (c *MongoImportCollection) InsertBatch(ctx context.Context, batch models.ImportBatch) (string, error) {
	if c.Batches == nil {
		return "", fmt.Errorf("mongo collection is nil")
	}
	batch.CreatedAt = time.Now()
	batch.UpdatedAt = time.Now()
	res, err := c.Batches.InsertOne(ctx, batch)
	if err != nil {
		return "", err
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted ID type %T", res.InsertedID)
	}
	return id.Hex(), nil
}

// FindBatchByID finds a batch by its ID.
func (c *MongoImportCollection) FindBatchByID(ctx context.Context, id string) (*models.ImportBatch, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid batch ID: %w", err)
	}
	var batch models.ImportBatch
	err = c.Batches.FindOne(ctx, bson.M{"_id": objectID}).Decode(&batch)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("batch not found")
		}
		return nil, err
	}
	return &batch, nil
}

// UpdateBatch updates a batch by its ID.
func (c *MongoImportCollection) UpdateBatch(ctx context.Context, id string, batch models.ImportBatch) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	batch.UpdatedAt = time.Now()
	_, err = c.Batches.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": batch})
	return err
}

// InsertRows bulk-inserts imported rows.
func (c *MongoImportCollection) InsertRows(ctx context.Context, rows []models.ImportedRow) error {
	if c.Rows == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	if len(rows) == 0 {
		return nil
	}
	docs := make([]interface{}, len(rows))
	for i := range rows {
		rows[i].UpdatedAt = time.Now()
		docs[i] = rows[i]
	}
	_, err := c.Rows.InsertMany(ctx, docs)
	return err
}

// FindRowsByBatch returns a batch's rows in file order.
func (c *MongoImportCollection) FindRowsByBatch(ctx context.Context, batchID string) ([]models.ImportedRow, error) {
	if c.Rows == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	opts := options.Find().SetSort(bson.D{{Key: "row_number", Value: 1}})
	cursor, err := c.Rows.Find(ctx, bson.M{"batch_id": batchID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var rows []models.ImportedRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateRow updates one row by its ID.
func (c *MongoImportCollection) UpdateRow(ctx context.Context, id string, row models.ImportedRow) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	row.UpdatedAt = time.Now()
	_, err = c.Rows.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": row})
	return err
}

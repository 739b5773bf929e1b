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

// MongoMaintenanceCollection implements the work order and service record
// collections.
type MongoMaintenanceCollection struct {
	WorkOrders     *mongo.Collection
	ServiceRecords *mongo.Collection
}

// InsertWorkOrder inserts a work order.
func (c *MongoMaintenanceCollection) InsertWorkOrder(ctx context.Context, wo models.MaintenanceWorkOrder) error {
	if c.WorkOrders == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	wo.CreatedAt = time.Now()
	wo.UpdatedAt = time.Now()
	_, err := c.WorkOrders.InsertOne(ctx, wo)
	return err
}

// FindWorkOrders queries work orders.
func (c *MongoMaintenanceCollection) FindWorkOrders(ctx context.Context, filter bson.M) ([]models.MaintenanceWorkOrder, error) {
	if c.WorkOrders == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	cursor, err := c.WorkOrders.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var orders []models.MaintenanceWorkOrder
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// InsertServiceRecord inserts a service record and returns its ID.
func (c *MongoMaintenanceCollection) InsertServiceRecord(ctx context.Context, rec models.ServiceRecord) (string, error) {
	if c.ServiceRecords == nil {
		return "", fmt.Errorf("mongo collection is nil")
	}
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = time.Now()
	res, err := c.ServiceRecords.InsertOne(ctx, rec)
	if err != nil {
		return "", err
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted ID type %T", res.InsertedID)
	}
	return id.Hex(), nil
}

// FindServiceRecords queries service records.
func (c *MongoMaintenanceCollection) FindServiceRecords(ctx context.Context, filter bson.M) ([]models.ServiceRecord, error) {
	if c.ServiceRecords == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	opts := options.Find().SetSort(bson.D{{Key: "service_date", Value: -1}})
	cursor, err := c.ServiceRecords.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var records []models.ServiceRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FindServiceRecordsByVehicle returns a vehicle's service history, newest
// first. Feeds the import duplicate check and the cost anomaly rules.
func (c *MongoMaintenanceCollection) FindServiceRecordsByVehicle(ctx context.Context, vehicleID string) ([]models.ServiceRecord, error) {
	return c.FindServiceRecords(ctx, bson.M{"vehicle_id": vehicleID})
}

// UpdateServiceRecord updates a service record by its ID.
func (c *MongoMaintenanceCollection) UpdateServiceRecord(ctx context.Context, id string, rec models.ServiceRecord) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	rec.UpdatedAt = time.Now()
	_, err = c.ServiceRecords.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": rec})
	return err
}

// MongoSafetyCollection implements the prestart defect and incident reads.
type MongoSafetyCollection struct {
	Defects   *mongo.Collection
	Incidents *mongo.Collection
}

// InsertDefect inserts a prestart defect.
func (c *MongoSafetyCollection) InsertDefect(ctx context.Context, defect models.PrestartDefect) error {
	if c.Defects == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	_, err := c.Defects.InsertOne(ctx, defect)
	return err
}

// FindDefects queries prestart defects.
func (c *MongoSafetyCollection) FindDefects(ctx context.Context, filter bson.M) ([]models.PrestartDefect, error) {
	if c.Defects == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	cursor, err := c.Defects.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var defects []models.PrestartDefect
	if err := cursor.All(ctx, &defects); err != nil {
		return nil, err
	}
	return defects, nil
}

// InsertIncident inserts an incident record.
func (c *MongoSafetyCollection) InsertIncident(ctx context.Context, incident models.IncidentRecord) error {
	if c.Incidents == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	_, err := c.Incidents.InsertOne(ctx, incident)
	return err
}

// FindIncidents queries incident records.
func (c *MongoSafetyCollection) FindIncidents(ctx context.Context, filter bson.M) ([]models.IncidentRecord, error) {
	if c.Incidents == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	cursor, err := c.Incidents.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var incidents []models.IncidentRecord
	if err := cursor.All(ctx, &incidents); err != nil {
		return nil, err
	}
	return incidents, nil
}

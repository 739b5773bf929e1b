package db

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kpiconstruction/fleetrules/internal/models"
)

// MongoFleetCollection implements the vehicle, template, and plan
// collections over their respective Mongo collections.
type MongoFleetCollection struct {
	Vehicles  *mongo.Collection
	Templates *mongo.Collection
	Plans     *mongo.Collection
}

// InsertVehicle inserts a vehicle record.
func (c *MongoFleetCollection) InsertVehicle(ctx context.Context, vehicle models.Vehicle) error {
	if c.Vehicles == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	vehicle.CreatedAt = time.Now()
	vehicle.UpdatedAt = time.Now()
	_, err := c.Vehicles.InsertOne(ctx, vehicle)
	return err
}

// FindVehicles queries vehicle records.
func (c *MongoFleetCollection) FindVehicles(ctx context.Context, filter bson.M) ([]models.Vehicle, error) {
	if c.Vehicles == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	cursor, err := c.Vehicles.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var vehicles []models.Vehicle
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, err
	}
	return vehicles, nil
}

// FindVehicleByID finds a vehicle by its ID.
func (c *MongoFleetCollection) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid vehicle ID: %w", err)
	}
	var vehicle models.Vehicle
	err = c.Vehicles.FindOne(ctx, bson.M{"_id": objectID}).Decode(&vehicle)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("vehicle not found")
		}
		return nil, err
	}
	return &vehicle, nil
}

// regoPattern builds an anchored pattern matching the registration
// literally, so regex metacharacters in the input cannot widen the match.
func regoPattern(rego string) string {
	return "^" + regexp.QuoteMeta(rego) + "$"
}

// FindVehicleByRego finds a vehicle by registration, case-insensitive
// exact match. This is the import pipeline's fallback lookup.
func (c *MongoFleetCollection) FindVehicleByRego(ctx context.Context, rego string) (*models.Vehicle, error) {
	if rego == "" {
		return nil, fmt.Errorf("rego is empty")
	}
	filter := bson.M{"rego": bson.M{"$regex": regoPattern(rego), "$options": "i"}}
	var vehicle models.Vehicle
	err := c.Vehicles.FindOne(ctx, filter).Decode(&vehicle)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("vehicle not found")
		}
		return nil, err
	}
	return &vehicle, nil
}

// UpdateVehicle updates a vehicle by its ID.
func (c *MongoFleetCollection) UpdateVehicle(ctx context.Context, id string, vehicle models.Vehicle) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid vehicle ID: %w", err)
	}
	vehicle.UpdatedAt = time.Now()
	result, err := c.Vehicles.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": vehicle})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("vehicle not found")
	}
	return nil
}

// InsertTemplate inserts a maintenance template.
func (c *MongoFleetCollection) InsertTemplate(ctx context.Context, tmpl models.MaintenanceTemplate) error {
	if c.Templates == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	_, err := c.Templates.InsertOne(ctx, tmpl)
	return err
}

// FindTemplates queries template records.
func (c *MongoFleetCollection) FindTemplates(ctx context.Context, filter bson.M) ([]models.MaintenanceTemplate, error) {
	if c.Templates == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	cursor, err := c.Templates.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var templates []models.MaintenanceTemplate
	if err := cursor.All(ctx, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

// InsertPlan inserts a maintenance plan.
func (c *MongoFleetCollection) InsertPlan(ctx context.Context, plan models.MaintenancePlan) error {
	if c.Plans == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	plan.CreatedAt = time.Now()
	plan.UpdatedAt = time.Now()
	_, err := c.Plans.InsertOne(ctx, plan)
	return err
}

// FindPlans queries plan records, sorted by creation for stable output.
func (c *MongoFleetCollection) FindPlans(ctx context.Context, filter bson.M) ([]models.MaintenancePlan, error) {
	if c.Plans == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := c.Plans.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var plans []models.MaintenancePlan
	if err := cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// UpdatePlan updates a plan by its ID.
func (c *MongoFleetCollection) UpdatePlan(ctx context.Context, id string, plan models.MaintenancePlan) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	plan.UpdatedAt = time.Now()
	_, err = c.Plans.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": plan})
	return err
}

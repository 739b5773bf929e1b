package db

import (
	"context"
	"os"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kpiconstruction/fleetrules/internal/models"
)

func TestConnectMongo_BadURI(t *testing.T) {
	t.Setenv("MONGO_URI", "not-a-valid-uri")
	client, err := ConnectMongo()
	if err == nil {
		t.Error("expected error for bad URI, got nil")
	}
	if client != nil {
		t.Error("expected nil client on error")
	}
}

func TestNilCollectionGuards(t *testing.T) {
	ctx := context.Background()

	fleet := &MongoFleetCollection{}
	if err := fleet.InsertVehicle(ctx, models.Vehicle{}); err == nil {
		t.Error("expected error inserting vehicle into nil collection")
	}
	if _, err := fleet.FindVehicles(ctx, bson.M{}); err == nil {
		t.Error("expected error finding vehicles on nil collection")
	}
	if _, err := fleet.FindTemplates(ctx, bson.M{}); err == nil {
		t.Error("expected error finding templates on nil collection")
	}
	if _, err := fleet.FindPlans(ctx, bson.M{}); err == nil {
		t.Error("expected error finding plans on nil collection")
	}

	maint := &MongoMaintenanceCollection{}
	if _, err := maint.FindWorkOrders(ctx, bson.M{}); err == nil {
		t.Error("expected error finding work orders on nil collection")
	}
	if _, err := maint.InsertServiceRecord(ctx, models.ServiceRecord{}); err == nil {
		t.Error("expected error inserting service record into nil collection")
	}

	safety := &MongoSafetyCollection{}
	if _, err := safety.FindDefects(ctx, bson.M{}); err == nil {
		t.Error("expected error finding defects on nil collection")
	}
	if _, err := safety.FindIncidents(ctx, bson.M{}); err == nil {
		t.Error("expected error finding incidents on nil collection")
	}

	worker := &MongoWorkerStatusCollection{}
	if _, err := worker.FindWorkerStatus(ctx, "dana cole"); err == nil {
		t.Error("expected error finding worker status on nil collection")
	}
	if err := worker.UpsertWorkerStatus(ctx, models.WorkerRiskStatus{}); err == nil {
		t.Error("expected error upserting worker status into nil collection")
	}

	fuel := &MongoFuelCollection{}
	if _, err := fuel.InsertFuelTransaction(ctx, models.FuelTransaction{}); err == nil {
		t.Error("expected error inserting fuel transaction into nil collection")
	}
	if _, err := fuel.FindFuelByVehicle(ctx, primitive.NewObjectID().Hex()); err == nil {
		t.Error("expected error finding fuel transactions on nil collection")
	}

	users := &MongoUserCollection{}
	if err := users.InsertUser(ctx, models.User{}); err == nil {
		t.Error("expected error inserting user into nil collection")
	}
	if _, err := users.FindUserByUsername(ctx, "fleetadmin"); err == nil {
		t.Error("expected error finding user on nil collection")
	}

	imports := &MongoImportCollection{}
	if _, err := imports.InsertBatch(ctx, models.ImportBatch{}); err == nil {
		t.Error("expected error inserting batch into nil collection")
	}
	if _, err := imports.FindRowsByBatch(ctx, primitive.NewObjectID().Hex()); err == nil {
		t.Error("expected error finding rows on nil collection")
	}
}

// Integration test (requires running MongoDB)
func TestRegoPattern(t *testing.T) {
	testCases := []struct {
		rego     string
		expected string
	}{
		{"ABC123", "^ABC123$"},
		{"AB.123", `^AB\.123$`},
		{"AB*", `^AB\*$`},
		{".*", `^\.\*$`},
	}
	for _, tc := range testCases {
		if got := regoPattern(tc.rego); got != tc.expected {
			t.Errorf("regoPattern(%q) = %q, want %q", tc.rego, got, tc.expected)
		}
	}
}

func TestStores_Integration(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping integration test")
	}
	client, err := ConnectMongo()
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	defer client.Disconnect(context.Background())

	database := client.Database("test_fleetrules")
	defer database.Drop(context.Background())
	stores := NewStores(database)

	vehicle := models.Vehicle{
		ID:        primitive.NewObjectID(),
		AssetCode: "T-001",
		Rego:      "ABC123",
		Ownership: models.OwnershipOwned,
		State:     "NSW",
		Status:    "active",
	}
	if err := stores.Vehicles.InsertVehicle(context.Background(), vehicle); err != nil {
		t.Fatalf("expected insert to succeed, got error: %v", err)
	}

	found, err := stores.Vehicles.FindVehicleByRego(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("expected case-insensitive rego lookup to succeed, got error: %v", err)
	}
	if found.AssetCode != vehicle.AssetCode {
		t.Errorf("expected asset code %s, got %s", vehicle.AssetCode, found.AssetCode)
	}
}

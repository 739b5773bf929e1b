package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FuelTransaction is one committed fuel purchase, produced by the fuel
// import pipeline. BatchID points back at the import batch that created it;
// ImportRowID identifies the exact source row so a re-run commit can find a
// record that already landed instead of writing it again.
type FuelTransaction struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VehicleID   string             `bson:"vehicle_id" json:"vehicle_id"`
	Date        time.Time          `bson:"date" json:"date"`
	Litres      float64            `bson:"litres" json:"litres"`
	CostExGST   float64            `bson:"cost_ex_gst" json:"cost_ex_gst"`
	OdometerKm  *float64           `bson:"odometer_km,omitempty" json:"odometer_km,omitempty"`
	ExternalRef string             `bson:"external_ref,omitempty" json:"external_ref,omitempty"`
	BatchID     string             `bson:"batch_id,omitempty" json:"batch_id,omitempty"`
	ImportRowID string             `bson:"import_row_id,omitempty" json:"import_row_id,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

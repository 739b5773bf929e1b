package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kpiconstruction/fleetrules/internal/db"
	"github.com/kpiconstruction/fleetrules/internal/models"
)

// Seeds a synthetic construction fleet straight into the database, then
// drives the engine API: periodic fuel import batches and worker risk runs.

var states = []string{"NSW", "VIC", "QLD", "WA"}

var depots = map[string][]string{
	"NSW": {"Eastern Creek", "Newcastle"},
	"VIC": {"Laverton", "Dandenong"},
	"QLD": {"Acacia Ridge"},
	"WA":  {"Welshpool"},
}

var hireProviders = []string{"Coates Hire", "Kennards", "Onsite Rental Group"}

var workerNames = []string{
	"Dana Cole", "Liam Harper", "Priya Nair", "Marcus Webb",
	"Sofia Reyes", "Jack OBrien", "Mei Lin", "Tom Ferris",
}

type assetSpec struct {
	assetType     string
	functionClass string
}

var assetSpecs = []assetSpec{
	{"Truck", "Tipper"},
	{"Truck", "Water Cart"},
	{"Truck", "Crane Borer"},
	{"Ute", "Light"},
	{"Loader", "Plant"},
}

func regoFor(i int) string {
	letters := "BCDFGHJKLMNPQRSTVWXYZ"
	return fmt.Sprintf("%c%c%c%03d",
		letters[i%len(letters)],
		letters[(i/3)%len(letters)],
		letters[(i/7)%len(letters)],
		100+i%900)
}

func randomVehicle(i int) models.Vehicle {
	spec := assetSpecs[rand.Intn(len(assetSpecs))]
	state := states[rand.Intn(len(states))]
	depotList := depots[state]

	v := models.Vehicle{
		ID:                primitive.NewObjectID(),
		AssetCode:         fmt.Sprintf("%s-%03d", spec.assetType[:1], i+1),
		Rego:              regoFor(i),
		VIN:               fmt.Sprintf("6FPAAA%011d", i),
		AssetType:         spec.assetType,
		FunctionClass:     spec.functionClass,
		Ownership:         models.OwnershipOwned,
		CurrentOdometerKm: 20000 + rand.Float64()*180000,
		State:             state,
		Depot:             depotList[rand.Intn(len(depotList))],
		Status:            "active",
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}

	// Roughly a third of the fleet is on hire.
	if rand.Intn(3) == 0 {
		v.Ownership = models.OwnershipContractHire
		v.HireProvider = hireProviders[rand.Intn(len(hireProviders))]
	}
	return v
}

func seedTemplates(ctx context.Context, stores *db.Stores) ([]models.MaintenanceTemplate, error) {
	templates := []models.MaintenanceTemplate{
		{
			ID:           primitive.NewObjectID(),
			Name:         "90 Day HVNL Inspection",
			Trigger:      models.TriggerTimeBased,
			IntervalDays: 90,
			Priority:     "critical",
			HVNLRelevant: true,
		},
		{
			ID:         primitive.NewObjectID(),
			Name:       "10000km Service",
			Trigger:    models.TriggerOdometerBased,
			IntervalKm: 10000,
			Priority:   "medium",
		},
		{
			ID:           primitive.NewObjectID(),
			Name:         "Annual Major Service",
			Trigger:      models.TriggerHybrid,
			IntervalDays: 365,
			IntervalKm:   40000,
			Priority:     "high",
			HVNLRelevant: true,
		},
	}
	for _, tmpl := range templates {
		if err := stores.Templates.InsertTemplate(ctx, tmpl); err != nil {
			return nil, err
		}
	}
	return templates, nil
}

func seedFleet(ctx context.Context, stores *db.Stores, fleetSize int) ([]models.Vehicle, error) {
	templates, err := seedTemplates(ctx, stores)
	if err != nil {
		return nil, fmt.Errorf("failed to seed templates: %w", err)
	}

	vehicles := make([]models.Vehicle, 0, fleetSize)
	for i := 0; i < fleetSize; i++ {
		v := randomVehicle(i)
		if err := stores.Vehicles.InsertVehicle(ctx, v); err != nil {
			return nil, fmt.Errorf("failed to insert vehicle: %w", err)
		}
		vehicles = append(vehicles, v)

		for _, tmpl := range templates {
			// Spread last completions so a share of the fleet is overdue.
			lastCompleted := time.Now().AddDate(0, 0, -rand.Intn(200))
			lastOdo := v.CurrentOdometerKm - rand.Float64()*15000
			plan := models.MaintenancePlan{
				ID:                      primitive.NewObjectID(),
				VehicleID:               v.ID.Hex(),
				TemplateID:              tmpl.ID.Hex(),
				LastCompletedDate:       &lastCompleted,
				LastCompletedOdometerKm: &lastOdo,
				Status:                  "active",
				CreatedAt:               time.Now(),
				UpdatedAt:               time.Now(),
			}
			if err := stores.Plans.InsertPlan(ctx, plan); err != nil {
				return nil, fmt.Errorf("failed to insert plan: %w", err)
			}
		}

		log.WithFields(log.Fields{
			"asset_code": v.AssetCode,
			"rego":       v.Rego,
			"state":      v.State,
			"ownership":  v.Ownership,
		}).Info("Seeded vehicle")
	}
	return vehicles, nil
}

func seedSafetyEvents(ctx context.Context, stores *db.Stores, vehicles []models.Vehicle) error {
	for i := 0; i < len(vehicles)*2; i++ {
		v := vehicles[rand.Intn(len(vehicles))]
		defect := models.PrestartDefect{
			ID:         primitive.NewObjectID(),
			VehicleID:  v.ID.Hex(),
			WorkerName: workerNames[rand.Intn(len(workerNames))],
			Severity:   []models.Severity{models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical}[rand.Intn(4)],
			Failed:     rand.Intn(3) == 0,
			Status:     "Open",
			RaisedAt:   time.Now().AddDate(0, 0, -rand.Intn(120)),
		}
		if err := stores.Safety.InsertDefect(ctx, defect); err != nil {
			return err
		}
	}

	for i := 0; i < len(vehicles)/2+1; i++ {
		v := vehicles[rand.Intn(len(vehicles))]
		incident := models.IncidentRecord{
			ID:                 primitive.NewObjectID(),
			VehicleID:          v.ID.Hex(),
			WorkerName:         workerNames[rand.Intn(len(workerNames))],
			Severity:           []models.Severity{models.SeverityMedium, models.SeverityHigh, models.SeverityCritical}[rand.Intn(3)],
			HVNLReportable:     rand.Intn(4) == 0,
			MaintenanceRelated: rand.Intn(3) == 0,
			AtFault:            rand.Intn(3) == 0,
			OccurredAt:         time.Now().AddDate(0, 0, -rand.Intn(360)),
		}
		if err := stores.Safety.InsertIncident(ctx, incident); err != nil {
			return err
		}
	}
	return nil
}

// --- API driving ---

var authToken string

func authorizedPost(url string, body *bytes.Buffer) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func fuelRow(rego string, day time.Time) map[string]string {
	row := map[string]string{
		"rego":   rego,
		"date":   day.Format("2006-01-02"),
		"litres": strconv.FormatFloat(60+rand.Float64()*180, 'f', 1, 64),
		"cost":   strconv.FormatFloat(100+rand.Float64()*350, 'f', 2, 64),
	}
	// Occasional dirty rows exercise the validation pipeline.
	switch rand.Intn(12) {
	case 0:
		row["rego"] = "ZZZ" + strconv.Itoa(rand.Intn(900)+100)
	case 1:
		delete(row, "litres")
	}
	return row
}

func uploadFuelBatch(apiURL string, vehicles []models.Vehicle, rows int) {
	day := time.Now().AddDate(0, 0, -rand.Intn(30))
	raws := make([]map[string]string, 0, rows)
	for i := 0; i < rows; i++ {
		v := vehicles[rand.Intn(len(vehicles))]
		raws = append(raws, fuelRow(v.Rego, day.AddDate(0, 0, -i)))
	}

	payload, err := json.Marshal(map[string]interface{}{
		"kind":      "fuel",
		"file_name": fmt.Sprintf("sim-fuel-%d.csv", time.Now().Unix()),
		"rows":      raws,
	})
	if err != nil {
		log.WithError(err).Error("Failed to marshal upload")
		return
	}

	resp, err := authorizedPost(apiURL+"/imports/upload", bytes.NewBuffer(payload))
	if err != nil {
		log.WithError(err).Error("Failed to upload fuel batch")
		return
	}
	defer resp.Body.Close()

	var uploaded struct {
		Batch struct {
			ID string `json:"id"`
		} `json:"batch"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil || uploaded.Batch.ID == "" {
		log.WithField("status", resp.Status).Error("Upload gave no batch ID")
		return
	}
	log.WithFields(log.Fields{"batch": uploaded.Batch.ID, "rows": rows}).Info("Uploaded fuel batch")

	step := func(path string) *http.Response {
		body, _ := json.Marshal(map[string]string{"batch_id": uploaded.Batch.ID})
		r, err := authorizedPost(apiURL+path, bytes.NewBuffer(body))
		if err != nil {
			log.WithError(err).WithField("path", path).Error("Import step failed")
			return nil
		}
		return r
	}

	if r := step("/imports/validate"); r != nil {
		r.Body.Close()
	}
	if r := step("/imports/commit"); r != nil {
		log.WithFields(log.Fields{"batch": uploaded.Batch.ID, "status": r.Status}).Info("Commit attempted")
		r.Body.Close()
	}
}

func runWorkerRisk(apiURL string) {
	resp, err := authorizedPost(apiURL+"/engine/risk/workers/run", bytes.NewBuffer(nil))
	if err != nil {
		log.WithError(err).Error("Failed to run worker risk")
		return
	}
	defer resp.Body.Close()
	log.WithField("status", resp.Status).Info("Worker risk run triggered")
}

func main() {
	authToken = os.Getenv("SIM_AUTH_TOKEN")

	fleetSize := 20
	if val := os.Getenv("FLEET_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			fleetSize = n
		}
	}

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	interval := 30 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"api_url":    apiURL,
		"interval":   interval,
	}).Info("Starting fleet simulation")

	client, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())
	stores := db.NewStores(db.Database(client))

	ctx := context.Background()
	vehicles, err := seedFleet(ctx, stores, fleetSize)
	if err != nil {
		log.WithError(err).Fatal("Failed to seed fleet")
	}
	if err := seedSafetyEvents(ctx, stores, vehicles); err != nil {
		log.WithError(err).Fatal("Failed to seed safety events")
	}
	log.WithField("vehicles", len(vehicles)).Info("Fleet seeding completed")

	tick := time.NewTicker(interval)
	defer tick.Stop()
	for range tick.C {
		uploadFuelBatch(apiURL, vehicles, 5+rand.Intn(10))
		if rand.Intn(4) == 0 {
			runWorkerRisk(apiURL)
		}
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/kpiconstruction/fleetrules/internal/alert"
	"github.com/kpiconstruction/fleetrules/internal/auth"
	"github.com/kpiconstruction/fleetrules/internal/compliance"
	"github.com/kpiconstruction/fleetrules/internal/db"
	"github.com/kpiconstruction/fleetrules/internal/handlers"
	"github.com/kpiconstruction/fleetrules/internal/importer"
	"github.com/kpiconstruction/fleetrules/internal/middleware"
	"github.com/kpiconstruction/fleetrules/internal/workerstate"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	log.SetFormatter(&log.JSONFormatter{})
	if os.Getenv("LOG_LEVEL") == "debug" {
		log.SetLevel(log.DebugLevel)
	}

	client, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())
	log.Info("Connected to MongoDB")

	stores := db.NewStores(db.Database(client))

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("Failed to create auth service")
	}

	// Alert delivery: MQTT when a broker is configured, logs otherwise.
	var sender alert.Sender
	if brokerURL := os.Getenv("MQTT_BROKER_URL"); brokerURL != "" {
		mqttSender, err := alert.NewMQTTSender(brokerURL, "fleetrules-engine", alertTopic())
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to MQTT broker")
		}
		defer mqttSender.Close()
		sender = mqttSender
		log.WithField("broker", brokerURL).Info("Worker risk alerts publishing to MQTT")
	} else {
		sender = &alert.LogSender{}
		log.Info("No MQTT broker configured, worker risk alerts will be logged")
	}

	aggregator := compliance.NewAggregator(compliance.NewTTLCache(cacheTTL(), nil))
	machine := workerstate.NewMachine(stores.WorkerStatus, sender, nil)

	imports := importer.NewService(stores.Imports, stores.Vehicles, stores.Fuel, stores.ServiceRecords, importer.DefaultTolerances, nil)
	committer := importer.NewCommitter(imports, 0)
	imports.AttachCommitter(committer)
	committer.Start(context.Background())

	authHandler := handlers.NewAuthHandler(authService, stores.Users)
	engineHandler := handlers.NewEngineHandler(stores, aggregator, imports, machine, nil)

	authMW := middleware.NewAuthMiddleware(authService)
	rateMW := middleware.NewRateLimitMiddleware()
	require := func(action string, h http.HandlerFunc) http.Handler {
		return authMW.RequirePermission(action)(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/register", authHandler.Register)
	mux.HandleFunc("/api/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			authHandler.UpdateProfile(w, r)
			return
		}
		authHandler.GetProfile(w, r)
	})
	mux.HandleFunc("/api/auth/change-password", authHandler.ChangePassword)

	mux.Handle("/api/engine/schedule", require("view_schedule", engineHandler.Schedule))
	mux.Handle("/api/engine/compliance", require("view_compliance", engineHandler.Compliance))
	mux.Handle("/api/engine/compliance/invalidate", require("recompute_costs", engineHandler.InvalidateCompliance))
	mux.Handle("/api/engine/risk/vehicles", require("view_risk", engineHandler.VehicleRisk))
	mux.Handle("/api/engine/risk/providers", require("view_risk", engineHandler.ProviderRisk))
	mux.Handle("/api/engine/risk/workers", require("view_risk", engineHandler.WorkerRisk))
	mux.Handle("/api/engine/risk/workers/run", require("run_worker_risk", engineHandler.RunWorkerRisk))
	mux.Handle("/api/engine/costs/recompute", require("recompute_costs", engineHandler.RecomputeCosts))
	mux.Handle("/api/imports/upload", require("upload_import", engineHandler.UploadImport))
	mux.Handle("/api/imports/validate", require("upload_import", engineHandler.ValidateImport))
	mux.Handle("/api/imports/commit", require("commit_import", engineHandler.CommitImport))
	mux.Handle("/api/imports/status", require("view_imports", engineHandler.ImportStatus))

	handler := rateMW.RateLimit(300, 60)(authMW.Authenticate(mux))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.WithField("port", port).Info("Fleet rules engine listening")
	log.Fatal(http.ListenAndServe(":"+port, handler))
}

func alertTopic() string {
	if topic := os.Getenv("MQTT_ALERT_TOPIC"); topic != "" {
		return topic
	}
	return "fleet/worker-risk/alerts"
}

func cacheTTL() time.Duration {
	if raw := os.Getenv("COMPLIANCE_CACHE_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return compliance.DefaultTTL
}

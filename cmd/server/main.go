// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/outreachkit/outreach-backend/internal/controller"
	"github.com/outreachkit/outreach-backend/internal/db"
	"github.com/outreachkit/outreach-backend/internal/handler"
	"github.com/outreachkit/outreach-backend/internal/queue"
	"github.com/outreachkit/outreach-backend/internal/repository"
	"github.com/outreachkit/outreach-backend/internal/service"
	"github.com/outreachkit/outreach-backend/internal/tracking"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	secret := os.Getenv("TRACKING_SECRET")
	if secret == "" {
		log.Fatal("TRACKING_SECRET is required")
	}
	baseURL := os.Getenv("TRACKING_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	// Init DB
	db.Init()
	q := queue.NewInMemoryQueue()

	contactRepo := &repository.ContactRepository{DB: db.DB}
	settingsRepo := &repository.SettingsRepository{DB: db.DB}
	deliveryRepo := &repository.DeliveryRecordRepository{DB: db.DB}

	dispatcher := service.NewDispatcher(
		contactRepo, settingsRepo, deliveryRepo,
		tracking.NewRewriter(secret), baseURL,
	)
	queue.StartCampaignDispatchSubscriber(q, dispatcher)

	campaignController := &controller.CampaignController{
		Dispatcher: dispatcher,
		Queue:      q,
		AMQPURL:    os.Getenv("AMQP_URL"),
	}
	trackingHandler := handler.NewTrackingHandler(deliveryRepo, secret)
	deliveryHandler := &handler.DeliveryHandler{Deliveries: deliveryRepo}

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns/send", campaignController.SendCampaign)
	r.Post("/campaigns/queue", campaignController.QueueCampaign)
	r.Get("/deliveries/stats", deliveryHandler.Stats)

	// Tracking routes hit by email clients
	r.Get("/track/open/{trackingID}", trackingHandler.Open)
	r.Get("/track/click/{trackingID}", trackingHandler.Click)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Println("server running on", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

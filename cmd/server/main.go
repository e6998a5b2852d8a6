package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"

	webAdapter "taller-service/internal/adapters/web"
	"taller-service/internal/app"
	"taller-service/internal/config"
	"taller-service/internal/core"
	"taller-service/internal/db"
	"taller-service/internal/notify"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	whatsapp := notify.NewWhatsAppChannel(
		notify.NewWhatsAppClient(cfg.Notifications.GatewayURL, cfg.Notifications.Token),
	)
	dispatcher := notify.NewDispatcher(cfg.Notifications.Enabled, cfg.Notifications.Timeout, whatsapp)
	notifier := notify.NewOrderNotifier(dispatcher, notify.Recipient{
		Name:  cfg.Notifications.OperatorName,
		Phone: cfg.Notifications.OperatorPhone,
	})

	orderService := core.NewOrderService(pool, notifier)
	paymentService := core.NewPaymentService(pool)
	deliveryService := core.NewDeliveryService(pool, orderService, notifier)

	svc := app.NewAppService(orderService, paymentService, deliveryService)

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins, cfg.JWT.Secret)

	addr := fmt.Sprintf("%s:%d", cfg.ServiceHost, cfg.ServicePort)
	log.Infof("server starting on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}

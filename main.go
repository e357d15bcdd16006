package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	datafeed "github.com/quantpulse/regimescout/Internal/database"
	"github.com/quantpulse/regimescout/Internal/handlers/api"
	"github.com/quantpulse/regimescout/Internal/handlers/monitoring"
	"github.com/quantpulse/regimescout/Internal/handlers/risk"
	newsscraping "github.com/quantpulse/regimescout/Internal/news_scraping"
	"github.com/quantpulse/regimescout/Internal/utils/config"
	"github.com/quantpulse/regimescout/Internal/utils/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New()
	if err != nil {
		logrus.Fatalf("Failed to initialize logger: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("Failed to load config %s: %v", configPath, err)
		}
		log.Warnf("⚠️ Config file %s not found, using defaults", configPath)
		cfg = config.DefaultConfig()
	}
	cfgStore := config.NewStore(configPath, cfg, log)

	done := make(chan struct{})
	go cfgStore.Watch(done)

	// Database is optional; a nil store no-ops all persistence.
	store, err := datafeed.NewStore(log)
	if err != nil {
		log.Warnf("⚠️ Running without database: %v", err)
		store = nil
	}
	defer store.Close()

	calendar := newsscraping.NewCalendar()
	if err := calendar.LoadFile(os.Getenv("NEWS_CALENDAR_PATH")); err != nil {
		log.Warnf("⚠️ News calendar not loaded: %v", err)
	}

	riskMgr := risk.NewManager(risk.NewClockSession(), calendar, log)
	riskMgr.RegisterAlertCallback(func(event *risk.Event) {
		log.WithFields(logrus.Fields{
			"type":     event.EventType,
			"severity": event.Severity,
			"symbol":   event.Symbol,
		}).Warn("🚨 " + event.Details)
	})

	data := datafeed.NewAlpacaData(log)

	var broker monitoring.Broker
	if os.Getenv("ALPACA_API_KEY") != "" && os.Getenv("ALPACA_API_SECRET") != "" {
		broker = datafeed.NewAlpacaBroker(log)
		log.Info("✅ Broker connected, live placement enabled")
	} else {
		log.Warn("⚠️ No broker credentials, running in observe-only mode")
	}

	scheduler := monitoring.NewScheduler(cfgStore, data, broker, store, riskMgr, log)
	scheduler.AttachNewsFeed(data, calendar)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	server := &api.Server{
		Scheduler:   scheduler,
		RiskManager: riskMgr,
		CfgStore:    cfgStore,
		JWTManager:  api.NewJWTManager(),
		Log:         log,
	}

	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	go func() {
		log.Infof("🌐 Status API listening on %s", addr)
		if err := http.ListenAndServe(addr, server.Router()); err != nil {
			log.Errorf("API server stopped: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down")
	close(done)
	scheduler.Stop()
}

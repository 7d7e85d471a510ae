package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/finsight/backend/config"
	httpDelivery "github.com/finsight/backend/internal/delivery/http"
	"github.com/finsight/backend/internal/domain"
	"github.com/finsight/backend/internal/infrastructure/cache"
	"github.com/finsight/backend/internal/infrastructure/ocr"
	"github.com/finsight/backend/internal/infrastructure/remoteclassify"
	"github.com/finsight/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting FinSight Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Classifier provider: %s", cfg.Classifier.Provider)

	// Initialize infrastructure dependencies
	memoryCache := cache.NewMemoryCache(cfg.Cache.TTL)
	log.Printf("Cache TTL: %s", cfg.Cache.TTL)

	primary := ocr.NewTesseractStrategy(ocr.TesseractConfig{
		WorkerBin:        cfg.OCR.WorkerBin,
		Timeout:          cfg.OCR.PrimaryTimeout,
		PassthroughBytes: cfg.OCR.PassthroughBytes,
		MaxEdge:          cfg.OCR.MaxEdge,
	})

	var remoteOCR domain.TextExtractor
	if cfg.OCR.RemoteBaseURL != "" {
		remoteOCR = ocr.NewRemoteOCRClient(ocr.RemoteOCRConfig{
			BaseURL:    cfg.OCR.RemoteBaseURL,
			APIKey:     cfg.OCR.RemoteAPIKey,
			Timeout:    cfg.OCR.RemoteTimeout,
			MaxPayload: cfg.OCR.RemoteMaxPayload,
			MaxEdge:    cfg.OCR.MaxEdge,
		})
		log.Printf("Remote OCR configured: %s", cfg.OCR.RemoteBaseURL)
	} else {
		log.Printf("Remote OCR not configured, extraction falls back to manual entry")
	}

	engine := ocr.NewEngine(primary, remoteOCR, cfg.OCR.RetryBackoff)

	remoteClassifier, cleanup, err := buildRemoteClassifier(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize classifier: %v", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	// Initialize usecase layer
	parser := usecase.NewReceiptParser(usecase.ParserConfig{
		DefaultCurrency: cfg.Parser.DefaultCurrency,
	})

	classifier := usecase.NewCategoryClassifier(remoteClassifier, memoryCache, usecase.ClassifierConfig{
		AutoAcceptThreshold: cfg.Classifier.AutoAcceptThreshold,
		RemoteTimeout:       cfg.Classifier.RemoteTimeout,
	})

	pipeline := usecase.NewPipelineService(engine, parser, classifier, nil)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(pipeline)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// buildRemoteClassifier picks the configured remote provider. The "rules"
// provider returns nil, which keeps every classification on the rule path.
func buildRemoteClassifier(cfg *config.Config) (domain.RemoteClassifier, func(), error) {
	switch cfg.Classifier.Provider {
	case "rules":
		return nil, nil, nil
	case "chat":
		client := remoteclassify.NewClient(cfg.Classifier.APIKey, cfg.Classifier.BaseURL, cfg.Classifier.Model)
		if cfg.Server.Environment == "development" {
			client.SetDebug(true)
			log.Printf("Chat classifier debug mode enabled")
		}
		return client, nil, nil
	case "gemini":
		gemini, err := remoteclassify.NewGemini(context.Background(), cfg.Classifier.APIKey, cfg.Classifier.Model)
		if err != nil {
			return nil, nil, err
		}
		return gemini, func() { gemini.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown classifier provider: %s", cfg.Classifier.Provider)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}

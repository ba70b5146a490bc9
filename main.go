package main

import (
	"context"
	"log"
	"os"

	"github.com/example/helpdesk-chat-relay/config"
	"github.com/example/helpdesk-chat-relay/modules/api"
	"github.com/example/helpdesk-chat-relay/modules/broadcast"
	"github.com/example/helpdesk-chat-relay/modules/relay"
	"github.com/example/helpdesk-chat-relay/modules/store"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== Helpdesk Chat Relay - Fiber WebSocket + EventBus ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	policy, err := relay.ParsePolicy(cfg.DisplacementPolicy)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	// Create modules
	opts := relay.DefaultOptions()
	opts.Policy = policy
	opts.MaxMessageLength = cfg.MaxMessageLength

	storeModule := store.NewModule(cfg, logger)
	broadcastModule := broadcast.NewModule(logger)
	relayModule := relay.NewModule(opts, logger)
	apiModule := api.NewModule(cfg, logger)

	// The hub and the coordinator are not exposed via ServiceContainer, so
	// they are injected here.
	relayModule.SetTransport(broadcastModule.GetHub())
	apiModule.SetHub(broadcastModule.GetHub())
	apiModule.SetRelay(relayModule)

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - store: message persistence (ServiceProviderModule)
	// - broadcast: WebSocket hub + relay activity consumer (EventConsumerModule)
	// - relay: presence registry + coordinator (depends on store)
	// - api: driving adapter (Fiber HTTP/WebSocket server, depends on relay and store)
	app.Register(storeModule)
	app.Register(broadcastModule)
	app.Register(relayModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg, policy)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config, policy relay.Policy) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Configuration:")
	log.Printf("  - Store driver: %s", cfg.StoreDriver)
	log.Printf("  - Displacement policy: %s", policy)
	log.Printf("  - Rate limit: %.0f msg/s (burst %d)", cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", cfg.Port)
	log.Println("  GET    /health                 - Health check")
	log.Println("  GET    /api/v1/presence        - Online usernames")
	log.Println("  GET    /api/v1/messages?limit= - Stored messages, oldest first")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", cfg.Port)
	log.Printf("  Connect with: ws://localhost:%s/ws?username=yourname", cfg.Port)
	log.Println(`  Frames: {"type":"register","username":"alice"}`)
	log.Println(`          {"type":"message","recipient":"bob","text":"hi"}`)
	log.Println(`          {"type":"history","limit":50}`)
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rghv234/wolffia/internal/channel"
	"github.com/rghv234/wolffia/internal/config"
	"github.com/rghv234/wolffia/internal/crypto"
	"github.com/rghv234/wolffia/internal/handler"
	"github.com/rghv234/wolffia/internal/middleware"
	"github.com/rghv234/wolffia/internal/remote"
	"github.com/rghv234/wolffia/internal/repository"
	"github.com/rghv234/wolffia/internal/service"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.Replica.User,
		cfg.Replica.Password,
		cfg.Replica.Host,
		cfg.Replica.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		log.Fatalf("Failed to connect to local replica: %v", err)
	}

	exists, err := client.DBExists(context.Background(), cfg.Replica.Name)
	if err != nil {
		log.Fatalf("Failed to check replica database existence: %v", err)
	}

	if !exists {
		if err := client.CreateDB(context.Background(), cfg.Replica.Name); err != nil {
			log.Fatalf("Failed to create replica database: %v", err)
		}
		log.Printf("Created replica database: %s", cfg.Replica.Name)
	}

	key, err := hex.DecodeString(cfg.Encryption.KeyHex)
	if err != nil {
		log.Fatalf("Malformed encryption key: %v", err)
	}
	provider, err := crypto.NewProvider(key)
	if err != nil {
		log.Fatalf("Failed to initialize crypto provider: %v", err)
	}

	docStore := repository.NewDocumentStore(client, cfg.Replica.Name)
	containerStore := repository.NewContainerStore(client, cfg.Replica.Name)
	conflictStore := repository.NewConflictStore(client, cfg.Replica.Name)
	settingsStore := repository.NewSettingsStore(client, cfg.Replica.Name)
	pendingLog, err := repository.NewPendingLog(client, cfg.Replica.Name)
	if err != nil {
		log.Fatalf("Failed to initialize pending log: %v", err)
	}

	remoteClient := remote.NewHTTPClient(cfg.Remote.BaseURL, cfg.Remote.Credential, nil)
	channelManager := channel.NewManager(cfg.Remote.ChannelEndpoint, cfg.Remote.Credential, cfg.Sync.BackoffBase)

	conflictService := service.NewConflictService(docStore, conflictStore, pendingLog, remoteClient)
	documentService := service.NewDocumentService(docStore, pendingLog, remoteClient, conflictService, cfg.Sync.DebounceWindow)
	syncService := service.NewSyncService(
		docStore,
		containerStore,
		pendingLog,
		settingsStore,
		remoteClient,
		conflictService,
		documentService,
		channelManager,
		cfg.Sync.LoadTimeout,
	)

	documentHandler := handler.NewDocumentHandler(documentService, provider)
	containerHandler := handler.NewContainerHandler(containerStore)
	conflictHandler := handler.NewConflictHandler(conflictService)
	syncHandler := handler.NewSyncHandler(syncService, settingsStore)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.API.AllowedOrigins))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/documents", documentHandler.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/documents", documentHandler.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/documents/{id}", documentHandler.Get).Methods("GET", "OPTIONS")
	api.HandleFunc("/documents/{id}", documentHandler.Update).Methods("PUT", "OPTIONS")
	api.HandleFunc("/documents/{id}", documentHandler.Delete).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/documents/{id}/promote", documentHandler.Promote).Methods("POST", "OPTIONS")

	api.HandleFunc("/containers", containerHandler.List).Methods("GET", "OPTIONS")

	api.HandleFunc("/conflicts", conflictHandler.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/conflicts/{id}/resolve", conflictHandler.Resolve).Methods("POST", "OPTIONS")

	api.HandleFunc("/sync/status", syncHandler.Status).Methods("GET", "OPTIONS")
	api.HandleFunc("/sync/reload", syncHandler.Reload).Methods("POST", "OPTIONS")
	api.HandleFunc("/sync/online", syncHandler.Online).Methods("POST", "OPTIONS")
	api.HandleFunc("/sync/view", syncHandler.GetView).Methods("GET", "OPTIONS")
	api.HandleFunc("/sync/view", syncHandler.PutView).Methods("PUT", "OPTIONS")

	api.HandleFunc("/settings", syncHandler.GetSettings).Methods("GET", "OPTIONS")
	api.HandleFunc("/settings", syncHandler.PutSettings).Methods("PUT", "OPTIONS")

	r.HandleFunc("/health", healthHandler).Methods("GET")

	runCtx, stopRun := context.WithCancel(context.Background())
	go syncService.Run(runCtx)

	channelManager.Connect()
	go func() {
		ctx, cancel := context.WithTimeout(runCtx, 2*time.Minute)
		defer cancel()
		if err := syncService.LoadAll(ctx); err != nil {
			log.Printf("Initial reload failed: %v", err)
			return
		}
		if err := syncService.SyncPending(ctx); err != nil {
			log.Printf("Initial pending replay failed: %v", err)
		}
		if err := syncService.SyncSettings(ctx); err != nil {
			log.Printf("Initial settings sync failed: %v", err)
		}
	}()

	addr := fmt.Sprintf("%s:%s", cfg.API.Host, cfg.API.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting Wolffia sync engine on %s", addr)
		log.Printf("Local replica at %s:%s/%s", cfg.Replica.Host, cfg.Replica.Port, cfg.Replica.Name)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Engine failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down engine...")

	channelManager.Close()
	stopRun()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Engine forced to shutdown: %v", err)
	}

	log.Println("Engine stopped gracefully")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"wolffia-sync-engine"}`))
}

package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"makerdesk/pkg/client"
	"makerdesk/pkg/config"
	"makerdesk/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type noopHandler struct{}

func (noopHandler) RegisterRoutes(*httprouter.Router) {}

func newTestConfig() *config.Config {
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	return &config.Config{
		Log:               log,
		Client:            client.NewClient(),
		Port:              "8080",
		RateLimitRequests: 10,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    time.Second,
		IdempotencyTTL:    time.Minute,
		MaxRequestSize:    1 << 20,
		ShutdownTimeout:   time.Second,
	}
}

// TestGracefulShutdown_DisconnectsMongo verifies that shutdown releases the
// Mongo client after the server has drained. Connect is lazy in the driver,
// so no server is needed to observe the disconnect.
func TestGracefulShutdown_DisconnectsMongo(t *testing.T) {
	cfg := newTestConfig()

	mongoClient, err := mongo.Connect(context.Background(),
		options.Client().ApplyURI("mongodb://localhost:27017"))
	if err != nil {
		t.Fatalf("failed to build mongo client: %v", err)
	}
	cfg.Client.Mongo = mongoClient

	a := NewApplication(cfg)
	a.SetApp(noopHandler{}, noopHandler{})

	a.gracefulShutdown()

	err = mongoClient.Ping(context.Background(), nil)
	if !errors.Is(err, mongo.ErrClientDisconnected) {
		t.Errorf("expected the mongo client disconnected after shutdown, got %v", err)
	}
}

// Shutdown without a connected backing store must still complete cleanly.
func TestGracefulShutdown_WithoutMongo(t *testing.T) {
	a := NewApplication(newTestConfig())
	a.SetApp(noopHandler{}, noopHandler{})

	done := make(chan struct{})
	go func() {
		a.gracefulShutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not complete")
	}
}

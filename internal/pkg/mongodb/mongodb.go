// Package mongodb provides MongoDB connection utilities.
package mongodb

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Config contains MongoDB connection configuration.
type Config struct {
	URI      string
	Database string
}

// Connect creates a client and verifies the deployment is reachable.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("create mongo client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	slog.Info("connected to mongodb", "database", cfg.Database)
	return client, nil
}

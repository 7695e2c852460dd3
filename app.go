package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agrostress/classifier"
	"agrostress/features"
	"agrostress/satellite"
)

type App struct {
	cfg         Config
	mongo       *mongo.Client
	db          *mongo.Database
	users       *mongo.Collection
	fields      *mongo.Collection
	predictions *mongo.Collection

	model *classifier.Client
	power *satellite.Client
	fcfg  features.Config
	clock clockwork.Clock
}

func newApp(ctx context.Context, cfg Config) (*App, error) {
	artifact, err := classifier.LoadArtifact(cfg.ArtifactPath)
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, err
	}
	db := client.Database(cfg.MongoDB)

	powerOpts := []satellite.Option{}
	if cfg.PowerURL != "" {
		powerOpts = append(powerOpts, satellite.WithBaseURL(cfg.PowerURL))
	}

	app := &App{
		cfg:         cfg,
		mongo:       client,
		db:          db,
		users:       db.Collection("users"),
		fields:      db.Collection("fields"),
		predictions: db.Collection("predictions"),
		model:       classifier.NewClient(cfg.ModelURL, artifact),
		power:       satellite.NewClient(powerOpts...),
		fcfg:        features.DefaultConfig(),
		clock:       clockwork.NewRealClock(),
	}
	// Indexes
	if _, err := app.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, err
	}
	if _, err := app.fields.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}},
	}); err != nil {
		return nil, err
	}
	if _, err := app.predictions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) close(ctx context.Context) { _ = a.mongo.Disconnect(ctx) }

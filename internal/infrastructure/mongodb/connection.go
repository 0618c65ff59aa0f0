package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jhoicas/Farmacia-api/pkg/config"
)

// Nombres de colecciones.
const (
	productsCollection      = "products"
	movementsCollection     = "stock_movements"
	ordersCollection        = "orders"
	dispensationsCollection = "dispensations"
	countersCollection      = "counters"
)

// NewConnection conecta y verifica con Ping. Las transacciones requieren un replica set.
func NewConnection(cfg config.MongoConfig) (*mongo.Client, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetTimeout(cfg.Timeout).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// Disconnect cierra el cliente con un límite de 10s.
func Disconnect(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}

// EnsureIndexes crea los índices de consulta. Las colecciones se crean aquí porque
// MongoDB no permite crearlas implícitamente dentro de una transacción en todas las versiones.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		productsCollection: {
			{Keys: bson.D{{Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}},
		},
		movementsCollection: {
			{Keys: bson.D{{Key: "seq", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "seq", Value: 1}}},
			{Keys: bson.D{{Key: "related_id", Value: 1}}},
			{Keys: bson.D{{Key: "date", Value: -1}, {Key: "seq", Value: -1}}},
		},
		ordersCollection: {
			{Keys: bson.D{{Key: "unit_id", Value: 1}}},
		},
		dispensationsCollection: {
			{Keys: bson.D{{Key: "patient_id", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("índices de %s: %w", coll, err)
		}
	}
	if _, err := db.Collection(countersCollection).UpdateOne(ctx,
		bson.M{"_id": movementsCollection},
		bson.M{"$setOnInsert": bson.M{"value": int64(0)}},
		options.Update().SetUpsert(true),
	); err != nil {
		return fmt.Errorf("contador de movimientos: %w", err)
	}
	return nil
}

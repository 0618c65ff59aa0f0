package main

import (
	"context"
	"fmt"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/memory"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/mongodb"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/postgres"
	"github.com/jhoicas/Farmacia-api/pkg/config"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

// storage backend elegido por STORAGE_DRIVER.
type storage struct {
	tx     inventory.TxRunner
	reader inventory.Stores
	close  func()
}

func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migraciones: %w", err)
		}
		log.Info().Int32("max_conns", cfg.DB.MaxConns).Msg("PostgreSQL listo")
		return &storage{
			tx:     postgres.NewTxRunner(pool),
			reader: postgres.StoresFor(pool),
			close:  pool.Close,
		}, nil

	case config.StorageMongo:
		client, err := mongodb.NewConnection(cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("conexión a MongoDB: %w", err)
		}
		db := client.Database(cfg.Mongo.Database)
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			_ = mongodb.Disconnect(client)
			return nil, fmt.Errorf("índices: %w", err)
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("MongoDB listo")
		return &storage{
			tx:     mongodb.NewTxRunner(client, db),
			reader: mongodb.StoresFor(db),
			close: func() {
				if err := mongodb.Disconnect(client); err != nil {
					log.Error().Err(err).Msg("desconexión de MongoDB")
				}
			},
		}, nil

	default:
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
		store := memory.NewStore()
		return &storage{
			tx:     store.TxRunner(),
			reader: store.Stores(),
			close:  func() {},
		}, nil
	}
}

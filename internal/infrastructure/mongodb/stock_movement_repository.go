package mongodb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepository)(nil)

// StockMovementRepository historial sobre MongoDB. Seq sale del documento counters,
// que dentro de una transacción serializa los anexos concurrentes.
type StockMovementRepository struct {
	base
	counters *mongo.Collection
}

// NewStockMovementRepository sess puede ser nil para lecturas fuera de transacción.
func NewStockMovementRepository(db *mongo.Database, sess mongo.Session) *StockMovementRepository {
	return &StockMovementRepository{
		base:     newBase(db, movementsCollection, sess),
		counters: db.Collection(countersCollection),
	}
}

// Append valida, asigna ID y Seq e inserta.
func (r *StockMovementRepository) Append(ctx context.Context, movement *entity.StockMovement) error {
	if err := movement.Validate(); err != nil {
		return fmt.Errorf("append movement: %w", err)
	}
	ctx = r.bind(ctx)

	var counter struct {
		Value int64 `bson:"value"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": movementsCollection},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return parseError("next movement seq", err)
	}

	if movement.ID == "" {
		movement.ID = uuid.New().String()
	}
	doc := toMovementDocument(movement)
	doc.Seq = counter.Value
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return parseError("append movement", err)
	}
	movement.Seq = doc.Seq
	return nil
}

// List fecha descendente, Seq descendente en empates.
func (r *StockMovementRepository) List(ctx context.Context, filter repository.MovementFilter) ([]*entity.StockMovement, error) {
	q := bson.M{}
	if filter.From != nil || filter.To != nil {
		date := bson.M{}
		if filter.From != nil {
			date["$gte"] = *filter.From
		}
		if filter.To != nil {
			date["$lte"] = *filter.To
		}
		q["date"] = date
	}
	if filter.ProductID != "" {
		q["product_id"] = filter.ProductID
	}
	if filter.RelatedID != "" {
		q["related_id"] = filter.RelatedID
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "seq", Value: -1}})
	opts.Limit, opts.Skip = pageOptions(filter.Limit, filter.Offset)
	return r.find(ctx, q, opts)
}

// ListByProduct historial completo del producto en orden de Seq.
func (r *StockMovementRepository) ListByProduct(ctx context.Context, productID string) ([]*entity.StockMovement, error) {
	return r.find(ctx, bson.M{"product_id": productID}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
}

func (r *StockMovementRepository) find(ctx context.Context, q bson.M, opts *options.FindOptions) ([]*entity.StockMovement, error) {
	ctx = r.bind(ctx)
	cursor, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, parseError("list movements", err)
	}
	var docs []movementDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, parseError("list movements", err)
	}
	list := make([]*entity.StockMovement, len(docs))
	for i := range docs {
		m, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		list[i] = m
	}
	return list, nil
}

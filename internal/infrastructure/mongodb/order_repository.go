package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var (
	_ repository.OrderRepository        = (*OrderRepository)(nil)
	_ repository.DispensationRepository = (*DispensationRepository)(nil)
)

// OrderRepository remesas sobre MongoDB (ítems embebidos).
type OrderRepository struct {
	base
}

// NewOrderRepository sess puede ser nil para lecturas fuera de transacción.
func NewOrderRepository(db *mongo.Database, sess mongo.Session) *OrderRepository {
	return &OrderRepository{base: newBase(db, ordersCollection, sess)}
}

func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	if _, err := r.coll.InsertOne(r.bind(ctx), toOrderDocument(order)); err != nil {
		return parseError("insert order", err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	var doc orderDocument
	if err := r.coll.FindOne(r.bind(ctx), bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, parseError("get order", err)
	}
	return doc.toDomain(), nil
}

// GetForUpdate igual que ProductRepository.GetForUpdate: escribe un token de bloqueo.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	var doc orderDocument
	err := r.coll.FindOneAndUpdate(r.bind(ctx),
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"lock": uuid.New().String()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, parseError("lock order", err)
	}
	return doc.toDomain(), nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status entity.OrderStatus, at time.Time) error {
	res, err := r.coll.UpdateOne(r.bind(ctx), bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": string(status), "updated_at": at}})
	if err != nil {
		return parseError("update order status", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("orden %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(r.bind(ctx), bson.M{"_id": id})
	if err != nil {
		return parseError("delete order", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("orden %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, error) {
	q := bson.M{}
	if filter.UnitID != "" {
		q["unit_id"] = filter.UnitID
	}
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	opts.Limit, opts.Skip = pageOptions(filter.Limit, filter.Offset)

	ctx = r.bind(ctx)
	cursor, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, parseError("list orders", err)
	}
	var docs []orderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, parseError("list orders", err)
	}
	list := make([]*entity.Order, len(docs))
	for i := range docs {
		list[i] = docs[i].toDomain()
	}
	return list, nil
}

// DispensationRepository dispensaciones sobre MongoDB.
type DispensationRepository struct {
	base
}

// NewDispensationRepository sess puede ser nil para lecturas fuera de transacción.
func NewDispensationRepository(db *mongo.Database, sess mongo.Session) *DispensationRepository {
	return &DispensationRepository{base: newBase(db, dispensationsCollection, sess)}
}

func (r *DispensationRepository) Create(ctx context.Context, d *entity.Dispensation) error {
	if _, err := r.coll.InsertOne(r.bind(ctx), toDispensationDocument(d)); err != nil {
		return parseError("insert dispensation", err)
	}
	return nil
}

func (r *DispensationRepository) GetByID(ctx context.Context, id string) (*entity.Dispensation, error) {
	var doc dispensationDocument
	if err := r.coll.FindOne(r.bind(ctx), bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, parseError("get dispensation", err)
	}
	return doc.toDomain(), nil
}

func (r *DispensationRepository) List(ctx context.Context, filter repository.DispensationFilter) ([]*entity.Dispensation, error) {
	q := bson.M{}
	if filter.PatientID != "" {
		q["patient_id"] = filter.PatientID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	opts.Limit, opts.Skip = pageOptions(filter.Limit, filter.Offset)

	ctx = r.bind(ctx)
	cursor, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, parseError("list dispensations", err)
	}
	var docs []dispensationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, parseError("list dispensations", err)
	}
	list := make([]*entity.Dispensation, len(docs))
	for i := range docs {
		list[i] = docs[i].toDomain()
	}
	return list, nil
}

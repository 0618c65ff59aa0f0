package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepository)(nil)

// ProductRepository productos sobre MongoDB con control de versión.
type ProductRepository struct {
	base
}

// NewProductRepository sess puede ser nil para lecturas fuera de transacción.
func NewProductRepository(db *mongo.Database, sess mongo.Session) *ProductRepository {
	return &ProductRepository{base: newBase(db, productsCollection, sess)}
}

// Create inserta con versión 1. Un _id repetido se informa como conflicto.
func (r *ProductRepository) Create(ctx context.Context, product *entity.Product) error {
	doc := toProductDocument(product)
	doc.Version = 1
	if _, err := r.coll.InsertOne(r.bind(ctx), doc); err != nil {
		return parseError("insert product", err)
	}
	product.Version = 1
	return nil
}

// GetByID obtiene un producto por ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	var doc productDocument
	err := r.coll.FindOne(r.bind(ctx), bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, parseError("get product", err)
	}
	return doc.toDomain(), nil
}

// GetForUpdate escribe un token de bloqueo en el documento dentro de la transacción:
// otra transacción que intente lo mismo recibe WriteConflict y se reintenta.
func (r *ProductRepository) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	var doc productDocument
	err := r.coll.FindOneAndUpdate(r.bind(ctx),
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"lock": uuid.New().String()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, parseError("lock product", err)
	}
	return doc.toDomain(), nil
}

// ListForUpdate bloquea los productos del filtro en orden ascendente de ID.
func (r *ProductRepository) ListForUpdate(ctx context.Context, filter repository.ProductFilter) ([]*entity.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetProjection(bson.M{"_id": 1})
	opts.Limit, opts.Skip = pageOptions(filter.Limit, filter.Offset)
	cursor, err := r.coll.Find(r.bind(ctx), productQuery(filter), opts)
	if err != nil {
		return nil, parseError("list products", err)
	}
	var ids []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(r.bind(ctx), &ids); err != nil {
		return nil, parseError("list products", err)
	}

	list := make([]*entity.Product, 0, len(ids))
	for _, row := range ids {
		p, err := r.GetForUpdate(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			list = append(list, p)
		}
	}
	return list, nil
}

// List ordena por nombre.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]*entity.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	opts.Limit, opts.Skip = pageOptions(filter.Limit, filter.Offset)
	cursor, err := r.coll.Find(r.bind(ctx), productQuery(filter), opts)
	if err != nil {
		return nil, parseError("list products", err)
	}
	var docs []productDocument
	if err := cursor.All(r.bind(ctx), &docs); err != nil {
		return nil, parseError("list products", err)
	}
	list := make([]*entity.Product, len(docs))
	for i := range docs {
		list[i] = docs[i].toDomain()
	}
	return list, nil
}

// Update reemplaza los campos si la versión coincide e incrementa la versión.
func (r *ProductRepository) Update(ctx context.Context, product *entity.Product) error {
	res, err := r.coll.UpdateOne(r.bind(ctx),
		bson.M{"_id": product.ID, "version": product.Version},
		bson.M{
			"$set": bson.M{
				"name":         product.Name,
				"category":     product.Category,
				"presentation": product.Presentation,
				"batch":        product.Batch,
				"expiry_date":  product.ExpiryDate,
				"quantity":     product.Quantity,
				"status":       string(product.Status),
				"updated_at":   product.UpdatedAt,
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return parseError("update product", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("producto %s versión %d: %w", product.ID, product.Version, domain.ErrConcurrencyConflict)
	}
	product.Version++
	return nil
}

// Delete elimina si la versión coincide.
func (r *ProductRepository) Delete(ctx context.Context, id string, version int64) error {
	res, err := r.coll.DeleteOne(r.bind(ctx), bson.M{"_id": id, "version": version})
	if err != nil {
		return parseError("delete product", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("producto %s versión %d: %w", id, version, domain.ErrConcurrencyConflict)
	}
	return nil
}

func productQuery(f repository.ProductFilter) bson.M {
	q := bson.M{}
	if len(f.IDs) > 0 {
		q["_id"] = bson.M{"$in": f.IDs}
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.Status != "" {
		q["status"] = string(f.Status)
	}
	if f.Search != "" {
		pattern := regexp.QuoteMeta(f.Search)
		q["$or"] = bson.A{
			bson.M{"name": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"batch": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}
	return q
}

package mongodb

import (
	"fmt"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

type productDocument struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Category     string    `bson:"category"`
	Presentation string    `bson:"presentation"`
	Batch        string    `bson:"batch"`
	ExpiryDate   string    `bson:"expiry_date"`
	Quantity     int       `bson:"quantity"`
	Status       string    `bson:"status"`
	Version      int64     `bson:"version"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func toProductDocument(p *entity.Product) *productDocument {
	return &productDocument{
		ID:           p.ID,
		Name:         p.Name,
		Category:     p.Category,
		Presentation: p.Presentation,
		Batch:        p.Batch,
		ExpiryDate:   p.ExpiryDate,
		Quantity:     p.Quantity,
		Status:       string(p.Status),
		Version:      p.Version,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (doc *productDocument) toDomain() *entity.Product {
	return &entity.Product{
		ID:           doc.ID,
		Name:         doc.Name,
		Category:     doc.Category,
		Presentation: doc.Presentation,
		Batch:        doc.Batch,
		ExpiryDate:   doc.ExpiryDate,
		Quantity:     doc.Quantity,
		Status:       entity.StockStatus(doc.Status),
		Version:      doc.Version,
		CreatedAt:    doc.CreatedAt.UTC(),
		UpdatedAt:    doc.UpdatedAt.UTC(),
	}
}

type movementDocument struct {
	ID             string    `bson:"_id"`
	Seq            int64     `bson:"seq"`
	ProductID      string    `bson:"product_id"`
	ProductName    string    `bson:"product_name"`
	Type           string    `bson:"type"`
	Reason         string    `bson:"reason"`
	QuantityChange int       `bson:"quantity_change"`
	QuantityBefore int       `bson:"quantity_before"`
	QuantityAfter  int       `bson:"quantity_after"`
	Date           time.Time `bson:"date"`
	User           string    `bson:"user"`
	RelatedID      string    `bson:"related_id"`
}

func toMovementDocument(m *entity.StockMovement) *movementDocument {
	return &movementDocument{
		ID:             m.ID,
		Seq:            m.Seq,
		ProductID:      m.ProductID,
		ProductName:    m.ProductName,
		Type:           string(m.Type),
		Reason:         string(m.Reason),
		QuantityChange: m.QuantityChange,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		Date:           m.Date,
		User:           m.User,
		RelatedID:      m.RelatedID,
	}
}

// toDomain rechaza tipos o motivos desconocidos: el historial no se reinterpreta.
func (doc *movementDocument) toDomain() (*entity.StockMovement, error) {
	typ, err := entity.ParseMovementType(doc.Type)
	if err != nil {
		return nil, fmt.Errorf("movimiento %s: %w", doc.ID, err)
	}
	reason, err := entity.ParseMovementReason(doc.Reason)
	if err != nil {
		return nil, fmt.Errorf("movimiento %s: %w", doc.ID, err)
	}
	return &entity.StockMovement{
		ID:             doc.ID,
		Seq:            doc.Seq,
		ProductID:      doc.ProductID,
		ProductName:    doc.ProductName,
		Type:           typ,
		Reason:         reason,
		QuantityChange: doc.QuantityChange,
		QuantityBefore: doc.QuantityBefore,
		QuantityAfter:  doc.QuantityAfter,
		Date:           doc.Date.UTC(),
		User:           doc.User,
		RelatedID:      doc.RelatedID,
	}, nil
}

type lineItemDocument struct {
	ProductID    string `bson:"product_id"`
	Name         string `bson:"name"`
	Quantity     int    `bson:"quantity"`
	Batch        string `bson:"batch"`
	ExpiryDate   string `bson:"expiry_date"`
	Presentation string `bson:"presentation"`
	Category     string `bson:"category"`
}

func toLineItemDocuments(items []entity.LineItem) []lineItemDocument {
	out := make([]lineItemDocument, len(items))
	for i, it := range items {
		out[i] = lineItemDocument(it)
	}
	return out
}

func lineItemsToDomain(docs []lineItemDocument) []entity.LineItem {
	out := make([]entity.LineItem, len(docs))
	for i, d := range docs {
		out[i] = entity.LineItem(d)
	}
	return out
}

type orderDocument struct {
	ID        string             `bson:"_id"`
	UnitID    string             `bson:"unit_id"`
	Type      string             `bson:"type"`
	Status    string             `bson:"status"`
	Items     []lineItemDocument `bson:"items"`
	Notes     string             `bson:"notes"`
	SentDate  *time.Time         `bson:"sent_date,omitempty"`
	CreatedBy string             `bson:"created_by"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func toOrderDocument(o *entity.Order) *orderDocument {
	return &orderDocument{
		ID:        o.ID,
		UnitID:    o.UnitID,
		Type:      o.Type,
		Status:    string(o.Status),
		Items:     toLineItemDocuments(o.Items),
		Notes:     o.Notes,
		SentDate:  o.SentDate,
		CreatedBy: o.CreatedBy,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func (doc *orderDocument) toDomain() *entity.Order {
	o := &entity.Order{
		ID:        doc.ID,
		UnitID:    doc.UnitID,
		Type:      doc.Type,
		Status:    entity.OrderStatus(doc.Status),
		Items:     lineItemsToDomain(doc.Items),
		Notes:     doc.Notes,
		CreatedBy: doc.CreatedBy,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
	if doc.SentDate != nil {
		sent := doc.SentDate.UTC()
		o.SentDate = &sent
	}
	return o
}

type dispensationDocument struct {
	ID        string             `bson:"_id"`
	PatientID string             `bson:"patient_id"`
	Items     []lineItemDocument `bson:"items"`
	Notes     string             `bson:"notes"`
	Status    string             `bson:"status"`
	CreatedBy string             `bson:"created_by"`
	CreatedAt time.Time          `bson:"created_at"`
}

func toDispensationDocument(d *entity.Dispensation) *dispensationDocument {
	return &dispensationDocument{
		ID:        d.ID,
		PatientID: d.PatientID,
		Items:     toLineItemDocuments(d.Items),
		Notes:     d.Notes,
		Status:    d.Status,
		CreatedBy: d.CreatedBy,
		CreatedAt: d.CreatedAt,
	}
}

func (doc *dispensationDocument) toDomain() *entity.Dispensation {
	return &entity.Dispensation{
		ID:        doc.ID,
		PatientID: doc.PatientID,
		Items:     lineItemsToDomain(doc.Items),
		Notes:     doc.Notes,
		Status:    doc.Status,
		CreatedBy: doc.CreatedBy,
		CreatedAt: doc.CreatedAt.UTC(),
	}
}

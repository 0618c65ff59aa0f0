package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// Adaptadores entre los DTOs de la API y el motor.

func itemsFromRequest(in []dto.LineItemRequest) []ItemRequest {
	out := make([]ItemRequest, len(in))
	for i, it := range in {
		out[i] = ItemRequest{ProductID: strings.TrimSpace(it.ProductID), Quantity: it.Quantity}
	}
	return out
}

// AddProductFromRequest alta de producto desde el body HTTP.
func (uc *LedgerUseCase) AddProductFromRequest(ctx context.Context, meta MutationMeta, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	p, err := uc.AddProduct(ctx, meta, NewProductInput{
		Name:         in.Name,
		Category:     strings.TrimSpace(in.Category),
		Presentation: in.Presentation,
		Batch:        in.Batch,
		ExpiryDate:   in.ExpiryDate,
		Quantity:     in.Quantity,
	})
	if err != nil {
		return nil, err
	}
	out := dto.ProductFromEntity(p)
	return &out, nil
}

// UpdateProductFromRequest actualización parcial desde el body HTTP.
func (uc *LedgerUseCase) UpdateProductFromRequest(ctx context.Context, meta MutationMeta, id string, in dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	p, err := uc.UpdateProduct(ctx, meta, id, ProductPatch(in))
	if err != nil {
		return nil, err
	}
	out := dto.ProductFromEntity(p)
	return &out, nil
}

// CreateOrderFromRequest crea la remesa desde el body HTTP.
func (uc *LedgerUseCase) CreateOrderFromRequest(ctx context.Context, meta MutationMeta, in dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	o, err := uc.CreateOrder(ctx, meta, CreateOrderInput{
		UnitID:   strings.TrimSpace(in.UnitID),
		Type:     in.Type,
		Notes:    in.Notes,
		SentDate: in.SentDate,
		Items:    itemsFromRequest(in.Items),
	})
	if err != nil {
		return nil, err
	}
	out := dto.OrderFromEntity(o)
	return &out, nil
}

// UpdateOrderStatusFromRequest valida el texto del estado y lo aplica.
func (uc *LedgerUseCase) UpdateOrderStatusFromRequest(ctx context.Context, orderID string, in dto.UpdateOrderStatusRequest) (*dto.OrderResponse, error) {
	status, err := entity.ParseOrderStatus(in.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	o, err := uc.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		return nil, err
	}
	out := dto.OrderFromEntity(o)
	return &out, nil
}

// DeleteOrderFromRequest revierte la orden y resume el resultado.
func (uc *LedgerUseCase) DeleteOrderFromRequest(ctx context.Context, meta MutationMeta, orderID string) (*dto.OrderReversalResponse, error) {
	res, err := uc.DeleteOrder(ctx, meta, orderID)
	if err != nil {
		return nil, err
	}
	recreated := res.Recreated
	if recreated == nil {
		recreated = []string{}
	}
	return &dto.OrderReversalResponse{OrderID: res.OrderID, Restored: res.Restored, Recreated: recreated}, nil
}

// CreateDispensationFromRequest registra la dispensación desde el body HTTP.
func (uc *LedgerUseCase) CreateDispensationFromRequest(ctx context.Context, meta MutationMeta, in dto.CreateDispensationRequest) (*dto.DispensationResponse, error) {
	d, err := uc.CreateDispensation(ctx, meta, CreateDispensationInput{
		PatientID: strings.TrimSpace(in.PatientID),
		Notes:     in.Notes,
		Items:     itemsFromRequest(in.Items),
	})
	if err != nil {
		return nil, err
	}
	out := dto.DispensationFromEntity(d)
	return &out, nil
}

// ListProductsFromQuery listado paginado de productos.
func (uc *LedgerUseCase) ListProductsFromQuery(ctx context.Context, q dto.ProductListQuery) (*dto.ProductListResponse, error) {
	q.DefaultPage()
	filter := repository.ProductFilter{
		Category: strings.TrimSpace(q.Category),
		Search:   strings.TrimSpace(q.Search),
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	if q.Status != "" {
		st := entity.StockStatus(q.Status)
		if !st.Valid() {
			return nil, fmt.Errorf("%w: estado %q", domain.ErrInvalidInput, q.Status)
		}
		filter.Status = st
	}
	list, err := uc.ListProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := &dto.ProductListResponse{Items: make([]dto.ProductResponse, len(list))}
	for i, p := range list {
		out.Items[i] = dto.ProductFromEntity(p)
	}
	out.Page = dto.PageResponse{Limit: q.Limit, Offset: q.Offset, Count: len(list)}
	return out, nil
}

// ListMovementsFromQuery listado paginado del historial.
func (uc *LedgerUseCase) ListMovementsFromQuery(ctx context.Context, q dto.MovementListQuery) (*dto.MovementListResponse, error) {
	q.DefaultPage()
	from, err := parseQueryTime(q.From, false)
	if err != nil {
		return nil, err
	}
	to, err := parseQueryTime(q.To, true)
	if err != nil {
		return nil, err
	}
	list, err := uc.ListMovements(ctx, repository.MovementFilter{
		From:      from,
		To:        to,
		ProductID: strings.TrimSpace(q.ProductID),
		RelatedID: strings.TrimSpace(q.RelatedID),
		Limit:     q.Limit,
		Offset:    q.Offset,
	})
	if err != nil {
		return nil, err
	}
	out := &dto.MovementListResponse{Items: make([]dto.MovementResponse, len(list))}
	for i, m := range list {
		out.Items[i] = dto.MovementFromEntity(m)
	}
	out.Page = dto.PageResponse{Limit: q.Limit, Offset: q.Offset, Count: len(list)}
	return out, nil
}

// ListOrdersFromQuery listado paginado de órdenes.
func (uc *LedgerUseCase) ListOrdersFromQuery(ctx context.Context, q dto.OrderListQuery) (*dto.OrderListResponse, error) {
	q.DefaultPage()
	filter := repository.OrderFilter{UnitID: strings.TrimSpace(q.UnitID), Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		st, err := entity.ParseOrderStatus(q.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		filter.Status = st
	}
	list, err := uc.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := &dto.OrderListResponse{Items: make([]dto.OrderResponse, len(list))}
	for i, o := range list {
		out.Items[i] = dto.OrderFromEntity(o)
	}
	out.Page = dto.PageResponse{Limit: q.Limit, Offset: q.Offset, Count: len(list)}
	return out, nil
}

// ListDispensationsFromQuery listado paginado de dispensaciones.
func (uc *LedgerUseCase) ListDispensationsFromQuery(ctx context.Context, q dto.DispensationListQuery) (*dto.DispensationListResponse, error) {
	q.DefaultPage()
	list, err := uc.ListDispensations(ctx, repository.DispensationFilter{
		PatientID: strings.TrimSpace(q.PatientID),
		Limit:     q.Limit,
		Offset:    q.Offset,
	})
	if err != nil {
		return nil, err
	}
	out := &dto.DispensationListResponse{Items: make([]dto.DispensationResponse, len(list))}
	for i, d := range list {
		out.Items[i] = dto.DispensationFromEntity(d)
	}
	out.Page = dto.PageResponse{Limit: q.Limit, Offset: q.Offset, Count: len(list)}
	return out, nil
}

// VerifyProductLedgerResponse auditoría del historial en formato de respuesta.
func (uc *LedgerUseCase) VerifyProductLedgerResponse(ctx context.Context, productID string) (*dto.LedgerCheckResponse, error) {
	c, err := uc.VerifyProductLedger(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &dto.LedgerCheckResponse{
		ProductID:        c.ProductID,
		Exists:           c.Exists,
		CurrentQuantity:  c.CurrentQuantity,
		ReplayedQuantity: c.ReplayedQuantity,
		SumOfChanges:     c.SumOfChanges,
		Movements:        c.Movements,
		Consistent:       c.Consistent,
		Problem:          c.Problem,
	}, nil
}

// parseQueryTime acepta RFC3339 o YYYY-MM-DD. Una fecha sin hora usada como límite
// superior cubre el día completo.
func parseQueryTime(s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("%w: fecha %q", domain.ErrInvalidInput, s)
	}
	if endOfDay {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return &d, nil
}

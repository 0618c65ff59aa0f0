package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// CreateDispensationInput entrega de ítems a un paciente.
type CreateDispensationInput struct {
	PatientID string
	Notes     string
	Items     []ItemRequest
}

// CreateDispensation descuenta cada ítem con "Saída por Dispensação" y RelatedID = ID de la
// dispensación. No existe operación de reversión para dispensaciones.
func (uc *LedgerUseCase) CreateDispensation(ctx context.Context, meta MutationMeta, in CreateDispensationInput) (*entity.Dispensation, error) {
	meta, err := uc.prepare(meta)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.PatientID) == "" {
		return nil, fmt.Errorf("%w: paciente requerido", domain.ErrInvalidInput)
	}
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}

	dispensationID := uc.newID()
	var disp *entity.Dispensation
	err = uc.run(ctx, "create_dispensation", func(tx Stores) error {
		meta := uc.begin(meta)
		lines, err := uc.withdraw(ctx, tx, in.Items, entity.ReasonSaidaDispensacao, dispensationID, meta)
		if err != nil {
			return err
		}
		d := &entity.Dispensation{
			ID:        dispensationID,
			PatientID: in.PatientID,
			Items:     lines,
			Notes:     in.Notes,
			Status:    entity.DispensationStatusConcluida,
			CreatedBy: meta.Actor,
			CreatedAt: meta.At,
		}
		if err := tx.Dispensations.Create(ctx, d); err != nil {
			return err
		}
		disp = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("op", "create_dispensation").Str("dispensation_id", disp.ID).
		Str("patient_id", disp.PatientID).Int("items", len(disp.Items)).Msg("dispensación registrada")
	return disp, nil
}

package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
)

// MedicineService manages the pharmacy stock list.
type MedicineService struct{ *deps }

// MedicineInput creates a medicine.
type MedicineInput struct {
	Name        string
	Description string
	Unit        string
	Quantity    int
	Price       decimal.Decimal
}

func (s *MedicineService) Create(ctx context.Context, in MedicineInput) (*models.Medicine, error) {
	m := &models.Medicine{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Unit:        in.Unit,
		Quantity:    in.Quantity,
		Price:       in.Price,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Medicines().Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MedicineService) Get(ctx context.Context, id string) (*models.Medicine, error) {
	return s.store.Medicines().GetByID(ctx, id)
}

func (s *MedicineService) List(ctx context.Context, f store.MedicineFilter, page store.Page) ([]models.Medicine, int, error) {
	return s.store.Medicines().List(ctx, f, page)
}

// MedicineUpdate holds editable medicine fields. Nil fields stay untouched.
type MedicineUpdate struct {
	Name        *string
	Description *string
	Unit        *string
	Quantity    *int
	Price       *decimal.Decimal
}

// Update edits a medicine. Setting the quantity directly is a stock correction; the
// out-of-stock flag follows it.
func (s *MedicineService) Update(ctx context.Context, id string, in MedicineUpdate) (*models.Medicine, error) {
	var med *models.Medicine
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		m, err := tx.Medicines().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			m.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			m.Description = *in.Description
		}
		if in.Unit != nil {
			m.Unit = *in.Unit
		}
		if in.Quantity != nil {
			m.Quantity = *in.Quantity
		}
		if in.Price != nil {
			m.Price = *in.Price
		}
		if err := m.Validate(); err != nil {
			return err
		}
		med = m
		return tx.Medicines().Update(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return med, nil
}

// Restock adds units to stock and clears the out-of-stock flag.
func (s *MedicineService) Restock(ctx context.Context, id string, n int) (*models.Medicine, error) {
	var med *models.Medicine
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		m, err := tx.Medicines().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := m.Restock(n); err != nil {
			return err
		}
		med = m
		return tx.Medicines().Update(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("medicine_id", id).Int("added", n).Int("quantity", med.Quantity).Msg("medicine restocked")
	return med, nil
}

func (s *MedicineService) Delete(ctx context.Context, id string) error {
	return s.store.Medicines().Delete(ctx, id)
}

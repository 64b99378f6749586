package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
)

// CompensationService issues and looks up compensation codes.
type CompensationService struct{ *deps }

// IssueInput is an admin-issued code. A nil PatientID makes the code usable by anyone.
type IssueInput struct {
	PatientID          *string
	Amount             decimal.Decimal
	DiscountPercentage int
	Reason             string
	ExpiresAt          *time.Time
}

func (s *CompensationService) Issue(ctx context.Context, in IssueInput) (*models.CompensationCode, error) {
	c := &models.CompensationCode{
		PatientID:          in.PatientID,
		Amount:             in.Amount,
		DiscountPercentage: in.DiscountPercentage,
		Reason:             in.Reason,
		ExpiresAt:          in.ExpiresAt,
	}
	if c.ExpiresAt == nil {
		exp := s.now().AddDate(0, 0, s.cfg.CompensationCodeValidDays)
		c.ExpiresAt = &exp
	} else if !c.ExpiresAt.After(s.now()) {
		return nil, models.Invalid("expiry must be in the future")
	}
	if err := c.ValidateDiscount(); err != nil {
		return nil, err
	}
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		if c.PatientID != nil {
			if _, err := tx.Patients().GetByID(ctx, *c.PatientID); err != nil {
				return err
			}
		}
		return createCode(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListMine returns the codes issued to the actor.
func (s *CompensationService) ListMine(ctx context.Context, actor Actor) ([]models.CompensationCode, error) {
	p, err := patientOf(ctx, s.store, actor)
	if err != nil {
		return nil, err
	}
	return s.store.CompensationCodes().ListByPatient(ctx, p.ID)
}

// ListForPatient lets staff see a patient's codes.
func (s *CompensationService) ListForPatient(ctx context.Context, patientID string) ([]models.CompensationCode, error) {
	if _, err := s.store.Patients().GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.store.CompensationCodes().ListByPatient(ctx, patientID)
}

// Preview shows what a code would take off an amount, without redeeming it.
type Preview struct {
	Code     string          `json:"code"`
	Base     decimal.Decimal `json:"base"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Preview checks the code is redeemable by the actor and prices it against base.
func (s *CompensationService) Preview(ctx context.Context, actor Actor, code string, base decimal.Decimal) (*Preview, error) {
	if base.IsNegative() {
		return nil, models.Invalid("amount must not be negative")
	}
	p, err := patientOf(ctx, s.store, actor)
	if err != nil {
		return nil, err
	}
	c, err := s.store.CompensationCodes().GetByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, models.Invalid("unknown compensation code")
	}
	if err != nil {
		return nil, err
	}
	if err := c.CheckRedeemable(p.ID, s.now()); err != nil {
		return nil, err
	}
	d := c.Discount(base)
	return &Preview{Code: c.Code, Base: base, Discount: d, Total: base.Sub(d)}, nil
}

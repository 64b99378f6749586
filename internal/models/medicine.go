package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Medicine is a stock item in the clinic pharmacy.
type Medicine struct {
	BaseModel
	Name         string          `gorm:"size:150;index;not null" json:"name"`
	Description  string          `gorm:"type:text" json:"description"`
	Unit         string          `gorm:"size:30" json:"unit"`
	Quantity     int             `gorm:"not null;default:0" json:"quantity"`
	Price        decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	IsOutOfStock bool            `gorm:"not null" json:"isOutOfStock"`
}

// Validate checks stock and price are not negative.
func (m *Medicine) Validate() error {
	if m.Name == "" {
		return Invalid("medicine name is required")
	}
	if m.Quantity < 0 {
		return ErrNegativeQuantity
	}
	if m.Price.IsNegative() {
		return Invalid("price must not be negative")
	}
	return nil
}

// syncStockFlag keeps IsOutOfStock in step with Quantity.
func (m *Medicine) syncStockFlag() {
	m.IsOutOfStock = m.Quantity == 0
}

// BeforeSave keeps the stock flag honest and rejects negative stock.
func (m *Medicine) BeforeSave(tx *gorm.DB) error {
	m.syncStockFlag()
	return m.Validate()
}

// Restock adds n units.
func (m *Medicine) Restock(n int) error {
	if n <= 0 {
		return Invalid("restock quantity must be positive")
	}
	m.Quantity += n
	m.syncStockFlag()
	return nil
}

// Take removes n units from stock.
func (m *Medicine) Take(n int) error {
	if n < 0 {
		return ErrNegativeQuantity
	}
	if n > m.Quantity {
		return ErrInsufficientStock
	}
	m.Quantity -= n
	m.syncStockFlag()
	return nil
}

package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"clinic-app-server/internal/services"
	"clinic-app-server/internal/store"
	"clinic-app-server/internal/utils"
)

// MedicineHandler manages the pharmacy stock list.
type MedicineHandler struct {
	Medicines *services.MedicineService
}

// NewMedicineHandler creates a new MedicineHandler.
func NewMedicineHandler(medicines *services.MedicineService) *MedicineHandler {
	return &MedicineHandler{Medicines: medicines}
}

// CreateMedicineRequest adds a medicine to the stock list.
type CreateMedicineRequest struct {
	Name        string          `json:"name" binding:"required,max=150"`
	Description string          `json:"description"`
	Unit        string          `json:"unit" binding:"max=30"`
	Quantity    int             `json:"quantity" binding:"min=0"`
	Price       decimal.Decimal `json:"price"`
}

func (h *MedicineHandler) CreateMedicine(c *gin.Context) {
	var req CreateMedicineRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	m, err := h.Medicines.Create(c.Request.Context(), services.MedicineInput{
		Name:        req.Name,
		Description: req.Description,
		Unit:        req.Unit,
		Quantity:    req.Quantity,
		Price:       req.Price,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Medicine created successfully", m)
}

// GetMedicines lists medicines. ?name= searches by name, ?outOfStock=true|false filters
// on the stock flag.
func (h *MedicineHandler) GetMedicines(c *gin.Context) {
	f := store.MedicineFilter{Name: c.Query("name")}
	if raw := c.Query("outOfStock"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			utils.BadRequest(c, "Invalid outOfStock: expected true or false")
			return
		}
		f.OutOfStock = &v
	}
	page := utils.PageFromQuery(c)
	items, total, err := h.Medicines.List(c.Request.Context(), f, page)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Paginated(c, "Medicines fetched successfully", items, total, page)
}

func (h *MedicineHandler) GetMedicineByID(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	m, err := h.Medicines.Get(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Medicine fetched successfully", m)
}

// UpdateMedicineRequest edits a medicine. Setting quantity is a stock correction.
type UpdateMedicineRequest struct {
	Name        *string          `json:"name" binding:"omitempty,min=1,max=150"`
	Description *string          `json:"description"`
	Unit        *string          `json:"unit" binding:"omitempty,max=30"`
	Quantity    *int             `json:"quantity" binding:"omitempty,min=0"`
	Price       *decimal.Decimal `json:"price"`
}

func (h *MedicineHandler) UpdateMedicine(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req UpdateMedicineRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	m, err := h.Medicines.Update(c.Request.Context(), id, services.MedicineUpdate{
		Name:        req.Name,
		Description: req.Description,
		Unit:        req.Unit,
		Quantity:    req.Quantity,
		Price:       req.Price,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Medicine updated successfully", m)
}

// RestockRequest adds units to a medicine's stock.
type RestockRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

func (h *MedicineHandler) RestockMedicine(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req RestockRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	m, err := h.Medicines.Restock(c.Request.Context(), id, req.Quantity)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Medicine restocked successfully", m)
}

func (h *MedicineHandler) DeleteMedicine(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Medicines.Delete(c.Request.Context(), id); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Medicine deleted successfully", nil)
}

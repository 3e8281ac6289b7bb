package inventory

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"logistics-backend/internal/audit"
	"logistics-backend/internal/auth"
	"logistics-backend/internal/cache"
	"logistics-backend/internal/database"
	"logistics-backend/internal/logger"
	"logistics-backend/internal/models"
)

// Import column order: code, name, unit, category, min_stock, unit_cost.
const (
	colCode = iota
	colName
	colUnit
	colCategory
	colMinStock
	colUnitCost
)

type ProductRow struct {
	Line     int
	Code     string
	Name     string
	Unit     string
	Category string
	MinStock float64
	UnitCost decimal.Decimal
}

type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ParseProductRows turns sheet rows into products. A first row whose first cell reads
// "code" is treated as a header. Blank rows are skipped; bad rows are reported by line.
func ParseProductRows(rows [][]string) ([]ProductRow, []RowError) {
	parsed := make([]ProductRow, 0, len(rows))
	rowErrors := make([]RowError, 0)

	start := 0
	if len(rows) > 0 && len(rows[0]) > 0 && isHeaderCell(rows[0][0]) {
		start = 1
	}

	for i := start; i < len(rows); i++ {
		row := rows[i]
		line := i + 1
		cell := func(idx int) string {
			if idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}

		p := ProductRow{
			Line:     line,
			Code:     cell(colCode),
			Name:     cell(colName),
			Unit:     cell(colUnit),
			Category: cell(colCategory),
		}
		if p.Code == "" || p.Name == "" {
			rowErrors = append(rowErrors, RowError{Line: line, Message: "code and name are required"})
			continue
		}
		if p.Unit == "" {
			p.Unit = "und"
		}
		if v := cell(colMinStock); v != "" {
			f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
			if err != nil || f < 0 {
				rowErrors = append(rowErrors, RowError{Line: line, Message: "min_stock must be a non-negative number"})
				continue
			}
			p.MinStock = f
		}
		if v := cell(colUnitCost); v != "" {
			d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", "."))
			if err != nil || d.IsNegative() {
				rowErrors = append(rowErrors, RowError{Line: line, Message: "unit_cost must be a non-negative number"})
				continue
			}
			p.UnitCost = d
		}
		parsed = append(parsed, p)
	}
	return parsed, rowErrors
}

func isHeaderCell(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "code" || s == "codigo" || s == "código" || s == "product code"
}

// POST /api/products/import (multipart, field "file")
// Existing codes are updated, new codes created. Stock is never touched.
func ImportProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file is required")
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			return fiber.NewError(fiber.StatusBadRequest, "only .xlsx files are accepted")
		}

		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not open upload")
		}
		defer file.Close()

		book, err := excelize.OpenReader(file)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "could not read spreadsheet")
		}
		defer book.Close()

		sheets := book.GetSheetList()
		if len(sheets) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "spreadsheet has no sheets")
		}
		rows, err := book.GetRows(sheets[0])
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "could not read sheet "+sheets[0])
		}

		parsed, rowErrors := ParseProductRows(rows)
		if len(parsed) == 0 && len(rowErrors) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "spreadsheet is empty")
		}

		created, updated := 0, 0
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			for _, row := range parsed {
				var existing models.Product
				err := tx.Where("code = ?", row.Code).First(&existing).Error
				switch {
				case err == nil:
					before := existing
					existing.Name = row.Name
					existing.Unit = row.Unit
					existing.Category = row.Category
					existing.MinStock = row.MinStock
					existing.UnitCost = row.UnitCost
					if err := tx.Model(&existing).Select("name", "unit", "category", "min_stock", "unit_cost").Updates(&existing).Error; err != nil {
						return err
					}
					if err := audit.WriteLogTx(tx, audit.LogOptions{
						UserID:      actor.ID,
						UserName:    actor.Name,
						EntityType:  audit.EntityProduct,
						EntityID:    existing.ID,
						Action:      models.AuditActionUpdate,
						Description: fmt.Sprintf("Product %s updated by import", existing.Code),
						Before:      before,
						After:       existing,
					}); err != nil {
						return err
					}
					updated++
				case errors.Is(err, gorm.ErrRecordNotFound):
					p := models.Product{
						Code:     row.Code,
						Name:     row.Name,
						Unit:     row.Unit,
						Category: row.Category,
						MinStock: row.MinStock,
						UnitCost: row.UnitCost,
						Active:   true,
					}
					if err := tx.Create(&p).Error; err != nil {
						return err
					}
					if err := audit.WriteLogTx(tx, audit.LogOptions{
						UserID:      actor.ID,
						UserName:    actor.Name,
						EntityType:  audit.EntityProduct,
						EntityID:    p.ID,
						Action:      models.AuditActionCreate,
						Description: fmt.Sprintf("Product %s created by import", p.Code),
						After:       p,
					}); err != nil {
						return err
					}
					created++
				default:
					return err
				}
			}
			return nil
		})
		if err != nil {
			logger.Error(c.UserContext()).Err(err).Str("file", fileHeader.Filename).Msg("product import failed")
			return fiber.NewError(fiber.StatusInternalServerError, "could not import products")
		}
		cache.Invalidate(c.UserContext(), cache.DashboardSummaryKey)

		logger.Info(c.UserContext()).
			Int("created", created).
			Int("updated", updated).
			Int("rejected", len(rowErrors)).
			Msg("products imported")

		return c.JSON(fiber.Map{
			"created": created,
			"updated": updated,
			"errors":  rowErrors,
		})
	}
}

var exportHeaders = []string{"Code", "Name", "Category", "Unit", "Current stock", "Min stock", "Unit cost", "Stock value", "Low stock"}

// BuildStockReport writes every active product into a one-sheet workbook.
func BuildStockReport(products []models.Product) (*bytes.Buffer, error) {
	book := excelize.NewFile()
	defer book.Close()

	const sheet = "Stock"
	if err := book.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	bold, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := book.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	if err := book.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return nil, err
	}

	for r, p := range products {
		value := p.UnitCost.Mul(decimal.NewFromFloat(p.CurrentStock)).Round(2)
		low := ""
		if p.IsLowStock() {
			low = "yes"
		}
		values := []any{
			p.Code, p.Name, p.Category, p.Unit, p.CurrentStock, p.MinStock,
			p.UnitCost.InexactFloat64(), value.InexactFloat64(), low,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			if err := book.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	_ = book.SetColWidth(sheet, "B", "B", 40)

	buf, err := book.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// GET /api/inventory/export
func ExportStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var products []models.Product
		if err := database.DB.Where("active = ?", true).Order("code asc").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load products")
		}

		buf, err := BuildStockReport(products)
		if err != nil {
			logger.Error(c.UserContext()).Err(err).Msg("stock report failed")
			return fiber.NewError(fiber.StatusInternalServerError, "could not build stock report")
		}

		name := fmt.Sprintf("stock-%s.xlsx", time.Now().Format("20060102"))
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
		return c.Send(buf.Bytes())
	}
}

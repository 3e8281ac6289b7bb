package validation

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineRequest struct {
	ProductID uint    `validate:"required"`
	Quantity  float64 `validate:"gt=0"`
}

type docRequest struct {
	Destination string        `validate:"required,max=150"`
	Date        string        `validate:"required,datetime=2006-01-02"`
	Items       []lineRequest `validate:"required,min=1,dive"`
}

func TestStructReportsFirstFailure(t *testing.T) {
	err := Struct(docRequest{Date: "2025-01-02", Items: []lineRequest{{ProductID: 1, Quantity: 1}}})
	require.Error(t, err)

	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fiber.StatusBadRequest, fe.Code)
	assert.Equal(t, "destination is required", fe.Message)
}

func TestStructValidatesNestedLines(t *testing.T) {
	err := Struct(docRequest{
		Destination: "Obra Norte",
		Date:        "2025-01-02",
		Items:       []lineRequest{{ProductID: 1, Quantity: 0}},
	})

	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "quantity must be greater than 0", fe.Message)
}

func TestStructRejectsBadDate(t *testing.T) {
	err := Struct(docRequest{
		Destination: "Obra Norte",
		Date:        "02/01/2025",
		Items:       []lineRequest{{ProductID: 1, Quantity: 1}},
	})

	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Message, "date must use the format")
}

func TestStructAcceptsValidRequest(t *testing.T) {
	require.NoError(t, Struct(docRequest{
		Destination: "Obra Norte",
		Date:        "2025-01-02",
		Items:       []lineRequest{{ProductID: 1, Quantity: 2.5}},
	}))
}

func TestToSnake(t *testing.T) {
	assert.Equal(t, "product_id", toSnake("ProductID"))
	assert.Equal(t, "min_stock", toSnake("MinStock"))
	assert.Equal(t, "name", toSnake("Name"))
}

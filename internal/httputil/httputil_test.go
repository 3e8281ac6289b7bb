package httputil

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-14")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("14/03/2025")
	require.Error(t, err)

	today, err := ParseDate("")
	require.NoError(t, err)
	assert.Equal(t, time.Now().Day(), today.Day())
}

func TestParseOptionalDate(t *testing.T) {
	d, err := ParseOptionalDate("")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = ParseOptionalDate("2025-01-31")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, time.January, d.Month())
}

func TestPageAndRange(t *testing.T) {
	app := fiber.New()
	app.Get("/items/:id", func(c *fiber.Ctx) error {
		id, err := ParamID(c, "id")
		if err != nil {
			return err
		}
		limit, offset := Page(c, 50, 200)
		from, to, err := DateRange(c)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"id":     id,
			"limit":  limit,
			"offset": offset,
			"from":   from.Format(DateLayout),
			"to":     to.Format(DateLayout),
		})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/items/3?limit=999&offset=-1&from=2025-01-01&to=2025-01-31", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/items/0", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/items/1?from=yesterday", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

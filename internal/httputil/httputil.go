package httputil

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const DateLayout = "2006-01-02"

// ParamID reads a positive integer route parameter.
func ParamID(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

// ParseDate parses a YYYY-MM-DD value. An empty value means today.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "dates must use the format YYYY-MM-DD")
	}
	return d, nil
}

// ParseOptionalDate returns nil for an empty value.
func ParseOptionalDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DateRange reads ?from=&to= as an inclusive day range. Missing bounds are zero.
func DateRange(c *fiber.Ctx) (from, to time.Time, err error) {
	if v := c.Query("from"); v != "" {
		if from, err = ParseDate(v); err != nil {
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = ParseDate(v); err != nil {
			return
		}
		to = to.AddDate(0, 0, 1)
	}
	return
}

// Page reads ?limit=&offset= with a default and a hard cap on limit.
func Page(c *fiber.Ctx, def, max int) (limit, offset int) {
	limit = c.QueryInt("limit", def)
	if limit <= 0 || limit > max {
		limit = def
	}
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"logistics-backend/internal/database"
	"logistics-backend/internal/logger"
	"logistics-backend/internal/models"
	"logistics-backend/internal/validation"
)

type CreateUserRequest struct {
	Name     string          `json:"name" validate:"required,max=100"`
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=8"`
	Role     models.UserRole `json:"role" validate:"required,oneof=admin buyer warehouse"`
}

type UpdateUserRequest struct {
	Name     *string          `json:"name" validate:"omitempty,max=100"`
	Role     *models.UserRole `json:"role" validate:"omitempty,oneof=admin buyer warehouse"`
	Active   *bool            `json:"active"`
	Password *string          `json:"password" validate:"omitempty,min=8"`
}

// GET /api/users
func ListUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.User{})
		if role := c.Query("role"); role != "" {
			q = q.Where("role = ?", role)
		}

		var users []models.User
		if err := q.Order("name asc").Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list users")
		}

		resp := make([]UserResponse, 0, len(users))
		for _, u := range users {
			resp = append(resp, toUserResponse(u))
		}
		return c.JSON(resp)
	}
}

// POST /api/users
func CreateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}

		user, err := createUser(body.Name, normalizeEmail(body.Email), body.Password, body.Role)
		if err != nil {
			return err
		}

		logger.Info(c.UserContext()).
			Uint("user_id", user.ID).
			Str("role", string(user.Role)).
			Msg("user created")
		return c.Status(fiber.StatusCreated).JSON(toUserResponse(*user))
	}
}

// GET /api/users/:id
func GetUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var user models.User
		if err := database.DB.First(&user, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return c.JSON(toUserResponse(user))
	}
}

// PUT /api/users/:id
func UpdateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var user models.User
		if err := database.DB.First(&user, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}

		var body UpdateUserRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}

		actor, err := CurrentActor(c)
		if err != nil {
			return err
		}
		if actor.ID == user.ID && ((body.Active != nil && !*body.Active) || (body.Role != nil && *body.Role != models.RoleAdmin)) {
			return fiber.NewError(fiber.StatusBadRequest, "you cannot disable or demote yourself")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "name cannot be empty")
			}
			user.Name = name
		}
		if body.Role != nil {
			user.Role = *body.Role
		}
		if body.Active != nil {
			user.Active = *body.Active
		}
		if body.Password != nil {
			hash, err := bcrypt.GenerateFromPassword([]byte(*body.Password), bcrypt.DefaultCost)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "could not hash password")
			}
			user.PasswordHash = string(hash)
		}

		if err := database.DB.Save(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update user")
		}
		return c.JSON(toUserResponse(user))
	}
}

// DELETE /api/users/:id
func DeleteUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var user models.User
		if err := database.DB.First(&user, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}

		actor, err := CurrentActor(c)
		if err != nil {
			return err
		}
		if actor.ID == user.ID {
			return fiber.NewError(fiber.StatusBadRequest, "you cannot delete yourself")
		}

		var requested int64
		if err := database.DB.Model(&models.Requirement{}).Where("requested_by_id = ?", user.ID).Count(&requested).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not check user")
		}
		if requested > 0 {
			return fiber.NewError(fiber.StatusConflict, "user has raised requirements, disable it instead")
		}

		if err := database.DB.Delete(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not delete user")
		}

		logger.Info(c.UserContext()).Uint("user_id", user.ID).Msg("user deleted")
		return c.SendStatus(fiber.StatusNoContent)
	}
}

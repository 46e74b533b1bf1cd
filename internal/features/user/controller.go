package user

import (
	"strconv"

	"go-letter/internal/common/models"
	"go-letter/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type UserController struct {
	Service UserService
}

func NewUserController(service UserService) *UserController {
	return &UserController{Service: service}
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Param unit query string false "Filter by unit"
// @Success 200 {object} map[string]interface{}
// @Router /api/users [get]
func (c *UserController) ListUsers(ctx *fiber.Ctx) error {
	page, _ := strconv.ParseInt(ctx.Query("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(ctx.Query("limit", "20"), 10, 64)

	filter := make(map[string]interface{})
	if unit := ctx.Query("unit"); unit != "" {
		filter["unit"] = unit
	}
	if status := ctx.Query("status"); status != "" {
		filter["status"] = status
	}

	users, total, err := c.Service.ListUsers(ctx.UserContext(), filter, page, limit)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(fiber.Map{
		"data":  users,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// GetUser godoc
// @Summary Get a user by id
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} map[string]string "User not found"
// @Router /api/users/{id} [get]
func (c *UserController) GetUser(ctx *fiber.Ctx) error {
	u, err := c.Service.GetUserByID(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	return ctx.JSON(u)
}

// Me godoc
// @Summary Get the authenticated user's profile
// @Tags users
// @Produce json
// @Success 200 {object} models.User
// @Router /api/users/me [get]
func (c *UserController) Me(ctx *fiber.Ctx) error {
	claims, ok := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
	}
	u, err := c.Service.GetUserByID(ctx.UserContext(), claims.UserID)
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	return ctx.JSON(u)
}

// CreateUser godoc
// @Summary Create a user
// @Tags users
// @Accept json
// @Produce json
// @Param user body models.User true "User"
// @Success 201 {object} models.User
// @Router /api/users [post]
func (c *UserController) CreateUser(ctx *fiber.Ctx) error {
	var input models.User
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := c.Service.CreateUser(ctx.UserContext(), &input); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusCreated).JSON(input)
}

// UpdateProfile godoc
// @Summary Update a user's profile fields
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param updates body map[string]interface{} true "Field updates"
// @Success 200 {object} map[string]string
// @Router /api/users/{id} [put]
func (c *UserController) UpdateProfile(ctx *fiber.Ctx) error {
	var updates map[string]interface{}
	if err := ctx.BodyParser(&updates); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := c.Service.UpdateProfile(ctx.UserContext(), ctx.Params("id"), updates); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "User updated successfully"})
}

// UpdateStatus godoc
// @Summary Activate or deactivate a user
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param status body map[string]string true "Status"
// @Success 200 {object} map[string]string
// @Router /api/users/{id}/status [put]
func (c *UserController) UpdateStatus(ctx *fiber.Ctx) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if body.Status != "active" && body.Status != "inactive" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Status must be active or inactive"})
	}
	if err := c.Service.UpdateUserStatus(ctx.UserContext(), ctx.Params("id"), body.Status); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Status updated successfully"})
}

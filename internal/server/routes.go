package server

import (
	"github.com/gofiber/fiber/v2"

	"logistics-backend/internal/audit"
	"logistics-backend/internal/auth"
	"logistics-backend/internal/billing"
	"logistics-backend/internal/config"
	"logistics-backend/internal/dashboard"
	"logistics-backend/internal/inventory"
	"logistics-backend/internal/models"
	"logistics-backend/internal/procurement"
)

func registerRoutes(app *fiber.App, cfg *config.Config) {
	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler())
	api.Post("/auth/login", auth.LoginHandler(cfg))

	protected := api.Group("", auth.JWTMiddleware(cfg))
	protected.Get("/auth/me", auth.MeHandler())

	admin := auth.RequireRole(models.RoleAdmin)
	buying := auth.RequireRole(models.RoleAdmin, models.RoleBuyer)
	warehouse := auth.RequireRole(models.RoleAdmin, models.RoleWarehouse)

	// Users
	users := protected.Group("/users", admin)
	users.Get("/", auth.ListUsersHandler())
	users.Post("/", auth.CreateUserHandler())
	users.Get("/:id", auth.GetUserHandler())
	users.Put("/:id", auth.UpdateUserHandler())
	users.Delete("/:id", auth.DeleteUserHandler())

	// Suppliers
	protected.Get("/suppliers", procurement.ListSuppliersHandler())
	protected.Get("/suppliers/:id", procurement.GetSupplierHandler())
	protected.Post("/suppliers", buying, procurement.CreateSupplierHandler())
	protected.Put("/suppliers/:id", buying, procurement.UpdateSupplierHandler())
	protected.Delete("/suppliers/:id", admin, procurement.DeleteSupplierHandler())

	// Products
	protected.Get("/products", inventory.ListProductsHandler())
	protected.Post("/products/import", warehouse, inventory.ImportProductsHandler())
	protected.Get("/products/:id", inventory.GetProductHandler())
	protected.Get("/products/:id/kardex", inventory.KardexHandler())
	protected.Post("/products", warehouse, inventory.CreateProductHandler())
	protected.Put("/products/:id", warehouse, inventory.UpdateProductHandler())
	protected.Delete("/products/:id", admin, inventory.DeleteProductHandler())

	// Requirements
	protected.Get("/requirements", procurement.ListRequirementsHandler())
	protected.Post("/requirements", procurement.CreateRequirementHandler())
	protected.Get("/requirements/:id", procurement.GetRequirementHandler())
	protected.Put("/requirements/:id", procurement.UpdateRequirementHandler())
	protected.Delete("/requirements/:id", procurement.DeleteRequirementHandler())
	protected.Post("/requirements/:id/approve", admin, procurement.ApproveRequirementHandler())
	protected.Post("/requirements/:id/reject", admin, procurement.RejectRequirementHandler())

	// Purchase orders
	protected.Get("/purchase-orders", procurement.ListPurchaseOrdersHandler())
	protected.Post("/purchase-orders", buying, procurement.CreatePurchaseOrderHandler())
	protected.Post("/purchase-orders/from-requirement/:id", buying, procurement.CreateFromRequirementHandler())
	protected.Get("/purchase-orders/:id", procurement.GetPurchaseOrderHandler())
	protected.Put("/purchase-orders/:id", buying, procurement.UpdatePurchaseOrderHandler())
	protected.Delete("/purchase-orders/:id", buying, procurement.DeletePurchaseOrderHandler())
	protected.Post("/purchase-orders/:id/cancel", buying, procurement.CancelPurchaseOrderHandler())

	// Receptions
	protected.Get("/receptions", inventory.ListReceptionsHandler())
	protected.Post("/receptions", warehouse, inventory.CreateReceptionHandler())
	protected.Get("/receptions/:id", inventory.GetReceptionHandler())
	protected.Post("/receptions/:id/details", warehouse, inventory.AddReceptionDetailHandler())
	protected.Delete("/receptions/:id/details/:detailId", warehouse, inventory.DeleteReceptionDetailHandler())
	protected.Delete("/receptions/:id", warehouse, inventory.DeleteReceptionHandler())

	// Outputs
	protected.Get("/outputs", inventory.ListOutputsHandler())
	protected.Post("/outputs", warehouse, inventory.CreateOutputHandler())
	protected.Get("/outputs/:id", inventory.GetOutputHandler())
	protected.Post("/outputs/:id/details", warehouse, inventory.AddOutputDetailHandler())
	protected.Delete("/outputs/:id/details/:detailId", warehouse, inventory.DeleteOutputDetailHandler())
	protected.Delete("/outputs/:id", warehouse, inventory.DeleteOutputHandler())

	// Inventory
	protected.Get("/inventory/movements", inventory.ListMovementsHandler())
	protected.Post("/inventory/adjustments", warehouse, inventory.CreateAdjustmentHandler())
	protected.Get("/inventory/consistency", admin, inventory.ConsistencyHandler())
	protected.Get("/inventory/export", inventory.ExportStockHandler())

	// Invoices
	protected.Get("/invoices", billing.ListInvoicesHandler())
	protected.Post("/invoices", buying, billing.CreateInvoiceHandler())
	protected.Get("/invoices/:id", billing.GetInvoiceHandler())
	protected.Put("/invoices/:id", buying, billing.UpdateInvoiceHandler())
	protected.Delete("/invoices/:id", buying, billing.DeleteInvoiceHandler())
	protected.Post("/invoices/:id/pay", buying, billing.PayInvoiceHandler())
	protected.Post("/invoices/:id/cancel", buying, billing.CancelInvoiceHandler())

	// Dashboard
	protected.Get("/dashboard/summary", dashboard.SummaryHandler(cfg.DashboardCacheTTL))
	protected.Get("/dashboard/movements-chart", dashboard.MovementsChartHandler())
	protected.Get("/dashboard/top-products", dashboard.TopProductsHandler())

	// Audit
	protected.Get("/audit-logs", admin, audit.ListAuditLogsHandler())
	protected.Post("/audit-logs/:id/undo", admin, audit.UndoAuditLogHandler())
}

package handler

import (
	"errors"
	"time"

	"omni-license-server/internal/database"
	"omni-license-server/internal/license"
	"omni-license-server/internal/model"
	"omni-license-server/internal/registry"
	"omni-license-server/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ValidateInput struct {
	ClientID     string `json:"client_id"`
	LicenseToken string `json:"license_token"`
}

type CreateInput struct {
	ClientID     string `json:"client_id"`
	Plan         string `json:"plan"`
	CompanyName  string `json:"company_name"`
	ContactEmail string `json:"contact_email"`
}

type ClientInput struct {
	ClientID string `json:"client_id"`
}

type ExtendInput struct {
	ClientID string `json:"client_id"`
	Days     int    `json:"days"`
}

type UpdateModulesInput struct {
	ClientID string   `json:"client_id"`
	Modules  []string `json:"modules"`
}

// HandleValidate is the authorization decision endpoint. Denials carry
// a reason code and a short message, nothing else.
func (h *Handler) HandleValidate(c *fiber.Ctx) error {
	input := new(ValidateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if input.ClientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "client_id is required",
		})
	}

	decision := h.Service.Validate(input.ClientID, input.LicenseToken)

	outcome := "authorized"
	if !decision.Valid {
		outcome = string(decision.Reason)
	}
	database.DB.Create(&model.UsageLog{
		ClientID:  input.ClientID,
		Action:    "validate",
		Outcome:   outcome,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
		Timestamp: time.Now(),
	})

	if !decision.Valid {
		status := fiber.StatusForbidden
		if decision.Reason == license.ReasonNotFound {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(fiber.Map{
			"valid":   false,
			"reason":  decision.Reason,
			"message": decision.Message,
		})
	}

	return c.JSON(fiber.Map{
		"valid":      true,
		"plan":       decision.Plan,
		"modules":    decision.Modules,
		"expires_at": decision.ExpiresAt,
	})
}

func (h *Handler) HandleCreate(c *fiber.Ctx) error {
	input := new(CreateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if input.ClientID == "" || input.Plan == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "client_id and plan are required",
		})
	}

	rec, err := h.Registry.Create(input.ClientID, input.Plan, registry.ContactInfo{
		CompanyName:  input.CompanyName,
		ContactEmail: input.ContactEmail,
	})
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrDuplicateClient):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "client already has a license",
			})
		case errors.Is(err, registry.ErrUnknownPlan):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "unknown plan",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create license",
			})
		}
	}

	h.logOperation(c, "create", rec.ClientID, input)
	h.syncSheet(rec)

	return c.Status(fiber.StatusCreated).JSON(responseWithModules(rec))
}

func (h *Handler) HandleToggle(c *fiber.Ctx) error {
	input := new(ClientInput)
	if err := c.BodyParser(input); err != nil || input.ClientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "client_id is required",
		})
	}

	rec, err := h.Registry.ToggleStatus(input.ClientID)
	if err != nil {
		return h.registryError(c, err, "failed to toggle license status")
	}

	h.logOperation(c, "toggle_status", rec.ClientID, fiber.Map{"status": rec.Status})
	h.syncSheet(rec)

	return c.JSON(responseWithModules(rec))
}

func (h *Handler) HandleExtend(c *fiber.Ctx) error {
	input := new(ExtendInput)
	if err := c.BodyParser(input); err != nil || input.ClientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "client_id is required",
		})
	}
	if input.Days <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "days must be a positive integer",
		})
	}

	rec, err := h.Registry.Extend(input.ClientID, input.Days)
	if err != nil {
		return h.registryError(c, err, "failed to extend license")
	}

	h.logOperation(c, "extend", rec.ClientID, fiber.Map{"days": input.Days})
	h.syncSheet(rec)

	return c.JSON(responseWithModules(rec))
}

func (h *Handler) HandleUpdateModules(c *fiber.Ctx) error {
	input := new(UpdateModulesInput)
	if err := c.BodyParser(input); err != nil || input.ClientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "client_id is required",
		})
	}

	rec, err := h.Registry.UpdateModules(input.ClientID, input.Modules)
	if err != nil {
		return h.registryError(c, err, "failed to update modules")
	}

	h.logOperation(c, "update_modules", rec.ClientID, fiber.Map{"modules": input.Modules})
	h.syncSheet(rec)

	return c.JSON(responseWithModules(rec))
}

func (h *Handler) HandleReissue(c *fiber.Ctx) error {
	input := new(ClientInput)
	if err := c.BodyParser(input); err != nil || input.ClientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "client_id is required",
		})
	}

	rec, err := h.Registry.Reissue(input.ClientID)
	if err != nil {
		return h.registryError(c, err, "failed to reissue token")
	}

	h.logOperation(c, "reissue", rec.ClientID, nil)
	h.syncSheet(rec)

	return c.JSON(responseWithModules(rec))
}

func (h *Handler) HandleDelete(c *fiber.Ctx) error {
	clientID := c.Params("client_id")
	if clientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "client_id is required",
		})
	}

	deleted, err := h.Registry.Delete(clientID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete license",
		})
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "license not found",
		})
	}

	h.logOperation(c, "delete", clientID, nil)

	return c.JSON(fiber.Map{
		"message": "license deleted",
	})
}

// HandleInfo returns the non-secret metadata of a license. The token is
// never part of this response.
func (h *Handler) HandleInfo(c *fiber.Ctx) error {
	clientID := c.Params("client_id")
	if clientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "client_id is required",
		})
	}

	rec, err := h.Registry.Find(clientID)
	if err != nil {
		return h.registryError(c, err, "failed to look up license")
	}

	return c.JSON(rec.Info())
}

// HandleList returns licenses filtered by ?filter=active|expired|all.
func (h *Handler) HandleList(c *fiber.Ctx) error {
	var (
		recs []model.LicenseRecord
		err  error
	)
	switch c.Query("filter", "all") {
	case "active":
		recs, err = h.Registry.ListActive()
	case "expired":
		recs, err = h.Registry.ListExpired()
	case "all":
		recs, err = h.Registry.List()
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "filter must be active, expired or all",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list licenses",
		})
	}

	out := make([]fiber.Map, 0, len(recs))
	for i := range recs {
		out = append(out, responseWithModules(&recs[i]))
	}

	return c.JSON(fiber.Map{
		"licenses": out,
		"total":    len(out),
	})
}

// HandleUsage returns the most recent validation attempts for a client.
func (h *Handler) HandleUsage(c *fiber.Ctx) error {
	clientID := c.Params("client_id")
	if clientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "client_id is required",
		})
	}

	var usages []model.UsageLog
	result := database.DB.Where("client_id = ?", clientID).Order("timestamp desc").Limit(50).Find(&usages)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to query usage records",
		})
	}

	return c.JSON(fiber.Map{
		"usages": usages,
	})
}

func (h *Handler) registryError(c *fiber.Ctx, err error, fallback string) error {
	if errors.Is(err, registry.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "license not found",
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": fallback,
	})
}

func (h *Handler) logOperation(c *fiber.Ctx, action, clientID string, details interface{}) {
	userID, _ := c.Locals("userID").(uint)
	_ = service.LogOperation(userID, action, "license", clientID, details)
}

func (h *Handler) syncSheet(rec *model.LicenseRecord) {
	if h.SheetSync != nil {
		go h.SheetSync.SyncRecord(rec)
	}
}

// responseWithModules renders a record with its decoded module list in
// place of the raw JSON column.
func responseWithModules(rec *model.LicenseRecord) fiber.Map {
	return fiber.Map{
		"client_id":     rec.ClientID,
		"plan":          rec.Plan,
		"status":        rec.Status,
		"modules":       rec.ModuleList(),
		"token":         rec.Token,
		"company_name":  rec.CompanyName,
		"contact_email": rec.ContactEmail,
		"issued_at":     rec.IssuedAt,
		"expires_at":    rec.ExpiresAt,
		"usage_count":   rec.UsageCount,
		"last_check":    rec.LastCheck,
	}
}

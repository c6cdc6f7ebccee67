package handler

import (
	"errors"

	"omni-license-server/internal/license"
	"omni-license-server/internal/registry"

	"github.com/gofiber/fiber/v2"
)

type RefreshInput struct {
	RefreshToken string `json:"refresh_token"`
}

// HandleIssuePair issues an access/refresh token pair for an active
// license.
func (h *Handler) HandleIssuePair(c *fiber.Ctx) error {
	input := new(ClientInput)
	if err := c.BodyParser(input); err != nil || input.ClientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "client_id is required",
		})
	}

	pair, err := h.Service.IssuePair(input.ClientID)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "license not found",
			})
		case errors.Is(err, license.ErrDeactivated):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "license is not active",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to issue token pair",
			})
		}
	}

	h.logOperation(c, "issue_pair", input.ClientID, nil)

	return c.Status(fiber.StatusCreated).JSON(pair)
}

// HandleRefresh trades a live refresh token for a fresh access token.
func (h *Handler) HandleRefresh(c *fiber.Ctx) error {
	input := new(RefreshInput)
	if err := c.BodyParser(input); err != nil || input.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "refresh_token is required",
		})
	}

	access, err := h.Service.Refresh(input.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, license.ErrRefreshDenied),
			errors.Is(err, license.ErrDeactivated),
			errors.Is(err, registry.ErrNotFound):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"valid":   false,
				"message": "refresh token rejected",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to refresh token",
			})
		}
	}

	return c.JSON(fiber.Map{
		"access_token": access,
	})
}

// HandleRevoke removes a refresh token from the active set. Revoking an
// already-revoked token reports revoked:false, not an error.
func (h *Handler) HandleRevoke(c *fiber.Ctx) error {
	input := new(RefreshInput)
	if err := c.BodyParser(input); err != nil || input.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "refresh_token is required",
		})
	}

	removed, err := h.Service.Revoke(input.RefreshToken)
	if err != nil {
		if errors.Is(err, license.ErrRefreshDenied) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "refresh token rejected",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to revoke token",
		})
	}

	return c.JSON(fiber.Map{
		"revoked": removed,
	})
}

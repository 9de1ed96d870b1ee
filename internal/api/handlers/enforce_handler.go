package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/service"
)

// EnforceHandler exposes the caller-scoped enforcement endpoints. The
// system-wide sweep is not routable: it runs only off the cron-enqueued
// batch task.
type EnforceHandler struct {
	enforcer service.EnforcerService
	quota    service.QuotaService
}

func NewEnforceHandler(enforcer service.EnforcerService, quota service.QuotaService) *EnforceHandler {
	return &EnforceHandler{
		enforcer: enforcer,
		quota:    quota,
	}
}

// EnforceAutoPosting runs one enforcement batch for the caller and returns
// the batch report. A deadline bounds the run so an unreachable platform
// cannot hold the request open indefinitely.
func (h *EnforceHandler) EnforceAutoPosting(c *fiber.Ctx) error {
	userID := GetUserID(c)

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Minute)
	defer cancel()

	report, err := h.enforcer.Run(ctx, userID)
	if err != nil {
		slog.Error("enforcement run failed", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "enforcement run failed",
		})
	}

	return c.Status(fiber.StatusOK).JSON(report)
}

func (h *EnforceHandler) QuotaStatus(c *fiber.Ctx) error {
	userID := GetUserID(c)

	status, err := h.quota.Status(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to read quota",
		})
	}

	return c.Status(fiber.StatusOK).JSON(status)
}

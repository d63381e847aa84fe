package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/naka-gawa/pr-dashboard/internal/preferences"
)

// GetRepositories lists the repositories the viewer can select.
func (h *Handler) GetRepositories(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	catalog, err := h.catalog.FetchRepositories(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(catalog)
}

// GetUser returns the signed-in account.
func (h *Handler) GetUser(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	account, err := h.catalog.FetchAccount(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(account)
}

// GetPreferences returns the stored preferences.
func (h *Handler) GetPreferences(c *fiber.Ctx) error {
	p, err := h.preferences.Load()
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(p)
}

// PutPreferences stores new preferences and applies them to the dashboard.
func (h *Handler) PutPreferences(c *fiber.Ctx) error {
	var p preferences.Preferences
	if err := c.BodyParser(&p); err != nil {
		return c.Status(http.StatusBadRequest).JSON(errorResponse(codeInvalidArgument, "invalid body"))
	}
	saved, err := h.preferences.Save(p)
	if err != nil {
		return writeError(c, err)
	}
	if err := preferences.Apply(saved, h.dashboard, h.preferences.Floor()); err != nil {
		return writeError(c, err)
	}
	h.log.Infow("preferences updated", "repositories", len(saved.SelectedRepos), "polling_interval_ms", saved.PollingIntervalMS)
	return c.Status(http.StatusOK).JSON(saved)
}

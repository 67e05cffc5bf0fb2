package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/postloom/postloom/internal/engine"
	job "github.com/postloom/postloom/internal/jobs"
	"github.com/postloom/postloom/internal/repository"
)

// EngineHandler is the operator surface over the publishing engine: status
// counts, recent failures, and manual triggers for the tick and the
// stuck-post sweep. It is not the product API.
type EngineHandler struct {
	loop      *engine.Loop
	reconcile *job.ReconcileJob
	posts     repository.PostRepository
}

func NewEngineHandler(loop *engine.Loop, reconcile *job.ReconcileJob, posts repository.PostRepository) *EngineHandler {
	return &EngineHandler{
		loop:      loop,
		reconcile: reconcile,
		posts:     posts,
	}
}

func (h *EngineHandler) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

func (h *EngineHandler) Stats(c *fiber.Ctx) error {
	counts, err := h.posts.CountByStatus(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to load engine stats",
		})
	}

	return c.Status(fiber.StatusOK).JSON(counts)
}

func (h *EngineHandler) ListFailed(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	posts, err := h.posts.ListFailed(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list failed posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

// TriggerTick runs one tick outside the cron cadence. The loop's own overlap
// guard still applies, so a tick in flight makes this a no-op.
func (h *EngineHandler) TriggerTick(c *fiber.Ctx) error {
	if err := h.loop.RunTick(c.Context()); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Tick completed",
	})
}

func (h *EngineHandler) TriggerReconcile(c *fiber.Ctx) error {
	h.reconcile.ResetStuck()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Reconcile completed",
	})
}

package audit

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the auditor to operators.
type Handler struct {
	auditor *Auditor
}

// NewHandler constructs an audit handler.
func NewHandler(auditor *Auditor) *Handler {
	return &Handler{auditor: auditor}
}

// Run executes one audit pass.
func (h *Handler) Run(c *fiber.Ctx) error {
	report, err := h.auditor.Check(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"ok":     report.OK(),
		"report": report,
	})
}

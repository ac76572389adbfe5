package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tricket/tricket-integrations/internal/pkg/usercontext"
	"github.com/tricket/tricket-integrations/internal/pkg/validation"
)

type ProductController struct {
	deps *Dependencies
}

func NewProductController(deps *Dependencies) *ProductController {
	return &ProductController{deps: deps}
}

type productLookupRequest struct {
	Codes []string `json:"codes" validate:"required,min=1,max=500"`
	Actor string   `json:"actor" validate:"max=64"`
}

// HandleLookup runs the first pipeline stage for a batch of GTINs. Found
// products are handed off for enrichment; the response lists stored ids.
func (pc *ProductController) HandleLookup(c *fiber.Ctx) error {
	var req productLookupRequest
	if err := validation.BindJSON(c, &req); err != nil {
		return err
	}

	actor := req.Actor
	if actor == "" {
		actor = usercontext.Actor(c)
	}

	result, err := pc.deps.Pipeline.LookupCodes(c.UserContext(), req.Codes, actor)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

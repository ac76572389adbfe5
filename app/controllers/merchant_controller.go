package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
)

// MerchantController serves merchant accreditation status
type MerchantController struct {
	deps *Dependencies
}

func NewMerchantController(deps *Dependencies) *MerchantController {
	return &MerchantController{deps: deps}
}

// HandleStatus resolves the profile's merchant document, asks the gateway
// for the accreditation status and stores it when it changed.
func (mc *MerchantController) HandleStatus(c *fiber.Ctx) error {
	ctx := c.UserContext()
	profileID := c.Params("profile_id")
	if profileID == "" {
		return apperror.Validation("", "profile_id")
	}

	profile, err := mc.deps.Repos.MerchantProfile.GetByProfileID(ctx, profileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("Merchant profile not found")
		}
		return apperror.Internal("failed to load merchant profile", err)
	}
	if profile.Document == "" {
		return apperror.NotFound("Merchant profile has no document")
	}

	token, err := capptaToken(ctx, mc.deps.Secrets)
	if err != nil {
		return err
	}

	status, raw, err := mc.deps.Cappta.MerchantStatus(ctx, token, profile.Document)
	if err != nil {
		return err
	}

	current := status.StatusString()
	changed := current != profile.CapptaStatus || status.StatusDescription != profile.CapptaStatusDesc
	if changed {
		if err := mc.deps.Repos.MerchantProfile.UpdateCapptaStatus(ctx, profileID, current, status.StatusDescription); err != nil {
			log.Errorf("[Merchant] Failed to store status for profile %s: %v", profileID, err)
		} else {
			log.Infof("[Merchant] Profile %s status %q -> %q", profileID, profile.CapptaStatus, current)
		}
	}

	return c.JSON(fiber.Map{
		"profile_id":         profileID,
		"document":           profile.Document,
		"status":             current,
		"status_description": status.StatusDescription,
		"changed":            changed,
		"cappta":             raw,
	})
}

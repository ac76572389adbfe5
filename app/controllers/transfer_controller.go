package controllers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tricket/tricket-integrations/app/models"
	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
	"github.com/tricket/tricket-integrations/internal/pkg/gateway/asaas"
	"github.com/tricket/tricket-integrations/internal/pkg/usercontext"
	"github.com/tricket/tricket-integrations/internal/pkg/validation"
)

type TransferController struct {
	deps *Dependencies
}

func NewTransferController(deps *Dependencies) *TransferController {
	return &TransferController{deps: deps}
}

type createTransferRequest struct {
	Value             decimal.Decimal `json:"value"`
	PayerProfileID    string          `json:"payer_profile_id" validate:"required"`
	ReceiverProfileID string          `json:"receiver_profile_id" validate:"required,nefield=PayerProfileID"`
	Description       string          `json:"description" validate:"max=255"`
}

// HandleCreate moves funds between two onboarded accounts using the
// payer's own provider key. The local record is best effort.
func (tc *TransferController) HandleCreate(c *fiber.Ctx) error {
	var req createTransferRequest
	if err := validation.BindJSON(c, &req); err != nil {
		return err
	}
	if !req.Value.IsPositive() {
		return apperror.Validation("value must be greater than zero", "value")
	}
	value := req.Value.Round(2)

	ctx := c.UserContext()
	payer, err := tc.deps.Repos.AsaasAccount.GetByProfileID(ctx, req.PayerProfileID)
	if err != nil {
		return accountLookupError("Payer", err)
	}
	receiver, err := tc.deps.Repos.AsaasAccount.GetByProfileID(ctx, req.ReceiverProfileID)
	if err != nil {
		return accountLookupError("Receiver", err)
	}

	apiKey, err := tc.deps.Cipher.Decrypt(payer.APIKeyEncrypted)
	if err != nil {
		return apperror.Internal("failed to decrypt payer credentials", err)
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Transfer from %s to %s", req.PayerProfileID, req.ReceiverProfileID)
	}

	transfer, raw, err := tc.deps.Asaas.CreateTransfer(ctx, apiKey, asaas.TransferRequest{
		WalletID:    receiver.WalletID,
		Value:       value,
		Description: description,
	})
	if err != nil {
		return err
	}

	record := &models.AsaasTransfer{
		AsaasTransferID:   transfer.ID,
		PayerProfileID:    req.PayerProfileID,
		ReceiverProfileID: req.ReceiverProfileID,
		Amount:            value,
		Description:       description,
		Status:            transfer.Status,
	}
	if err := tc.deps.Store.CreateTransfer(ctx, record, usercontext.Actor(c)); err != nil {
		log.Errorf("[Transfer] Transfer %s accepted but not recorded: %v", transfer.ID, err)
	}

	log.Infof("[Transfer] %s -> %s: %s (%s)", req.PayerProfileID, req.ReceiverProfileID, value.StringFixed(2), transfer.ID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"transfer_id":         transfer.ID,
		"status":              transfer.Status,
		"value":               value,
		"description":         description,
		"payer_profile_id":    req.PayerProfileID,
		"receiver_profile_id": req.ReceiverProfileID,
		"asaas":               raw,
	})
}

func accountLookupError(role string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(role + " account not found")
	}
	return apperror.Internal("failed to load "+role+" account", err)
}

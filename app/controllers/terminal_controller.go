package controllers

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/tricket/tricket-integrations/app/models"
	"github.com/tricket/tricket-integrations/app/repository"
	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
	"github.com/tricket/tricket-integrations/internal/pkg/gateway/cappta"
	"github.com/tricket/tricket-integrations/internal/pkg/usercontext"
	"github.com/tricket/tricket-integrations/internal/pkg/validation"
)

type TerminalController struct {
	deps *Dependencies
}

func NewTerminalController(deps *Dependencies) *TerminalController {
	return &TerminalController{deps: deps}
}

type createTerminalRequest struct {
	SerialKey string          `json:"serial_key" validate:"required"`
	ModelID   int             `json:"model_id" validate:"required,gt=0"`
	Keys      json.RawMessage `json:"keys,omitempty"`
}

type deleteTerminalRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

type bindTerminalRequest struct {
	MerchantDocument string `json:"merchant_document" validate:"required,max=20"`
	ResellerDocument string `json:"reseller_document" validate:"max=20"`
}

// HandleCreate registers a terminal with the gateway and mirrors it.
// Once the gateway accepted the terminal a local failure is only logged.
func (tc *TerminalController) HandleCreate(c *fiber.Ctx) error {
	var req createTerminalRequest
	if err := validation.BindJSON(c, &req); err != nil {
		return err
	}

	ctx := c.UserContext()
	token, err := capptaToken(ctx, tc.deps.Secrets)
	if err != nil {
		return err
	}

	device, err := tc.deps.Cappta.CreateDevice(ctx, token, req.SerialKey, req.ModelID)
	if err != nil {
		return err
	}

	row := models.CapptaPosDevice{
		CapptaPosID:       device.ID,
		ResellerDocument:  tc.deps.Cappta.ResellerDocument(),
		SerialKey:         req.SerialKey,
		ModelID:           req.ModelID,
		Status:            models.TerminalStatusAvailable,
		StatusDescription: "Available",
	}
	if len(req.Keys) > 0 && string(req.Keys) != "null" {
		row.Keys = string(req.Keys)
	}
	if _, err := tc.deps.Store.UpsertTerminal(ctx, row, usercontext.Actor(c)); err != nil {
		log.Errorf("[Terminal] Created %s upstream but could not store it: %v", device.ID, err)
	}

	log.Infof("[Terminal] Created terminal %s (serial %s)", device.ID, req.SerialKey)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"cappta_pos_id": device.ID,
		"serial_key":    req.SerialKey,
		"model_id":      req.ModelID,
		"status":        "CREATED",
	})
}

// HandleList lists terminals from the gateway and syncs them locally.
// With source=local the local mirror is read instead.
func (tc *TerminalController) HandleList(c *fiber.Ctx) error {
	if c.Query("source") == "local" {
		return tc.listLocal(c)
	}

	ctx := c.UserContext()
	token, err := capptaToken(ctx, tc.deps.Secrets)
	if err != nil {
		return err
	}

	devices, err := tc.deps.Cappta.ListDevices(ctx, token, cappta.DeviceFilter{
		MerchantDocument: c.Query("merchant_document"),
		Status:           c.Query("status"),
		SerialKey:        c.Query("serial_key"),
	})
	if err != nil {
		return err
	}

	rows := make([]models.CapptaPosDevice, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, deviceModel(d, tc.deps.Cappta.ResellerDocument()))
	}

	report, err := tc.deps.Store.SyncTerminals(ctx, rows, usercontext.Actor(c))
	if err != nil {
		log.Errorf("[Terminal] Sync of %d devices failed: %v", len(rows), err)
	}

	return c.JSON(fiber.Map{
		"devices": devices,
		"count":   len(devices),
		"sync":    report,
	})
}

func (tc *TerminalController) listLocal(c *fiber.Ctx) error {
	filter := repository.TerminalFilter{
		SerialKey:        c.Query("serial_key"),
		MerchantDocument: c.Query("merchant_document"),
		Offset:           queryInt(c, "offset", 0),
		Limit:            queryInt(c, "limit", 50),
	}
	if s := c.Query("status"); s != "" {
		status, err := strconv.Atoi(s)
		if err != nil {
			return apperror.Validation("status must be a number", "status")
		}
		filter.Status = &status
	}

	rows, err := tc.deps.Repos.Terminal.List(c.UserContext(), filter)
	if err != nil {
		return apperror.Internal("failed to list terminals", err)
	}
	return c.JSON(fiber.Map{
		"devices": rows,
		"count":   len(rows),
	})
}

// HandleGet fetches one terminal from the gateway and refreshes the mirror.
func (tc *TerminalController) HandleGet(c *fiber.Ctx) error {
	id := c.Params("id")
	ctx := c.UserContext()
	token, err := capptaToken(ctx, tc.deps.Secrets)
	if err != nil {
		return err
	}

	device, err := tc.deps.Cappta.GetDevice(ctx, token, id)
	if err != nil {
		return err
	}
	if device.ID == "" {
		device.ID = id
	}

	if _, err := tc.deps.Store.UpsertTerminal(ctx, deviceModel(*device, tc.deps.Cappta.ResellerDocument()), usercontext.Actor(c)); err != nil {
		log.Errorf("[Terminal] Could not refresh terminal %s: %v", id, err)
	}
	return c.JSON(device)
}

// HandleDelete removes the terminal upstream, then soft-deletes the mirror
// and records the deletion.
func (tc *TerminalController) HandleDelete(c *fiber.Ctx) error {
	var req deleteTerminalRequest
	if err := validation.BindJSON(c, &req); err != nil {
		return err
	}

	id := c.Params("id")
	ctx := c.UserContext()
	token, err := capptaToken(ctx, tc.deps.Secrets)
	if err != nil {
		return err
	}

	if _, err := tc.deps.Cappta.DeleteDevice(ctx, token, id); err != nil {
		return err
	}

	if err := tc.deps.Store.RecordTerminalDeletion(ctx, id, req.Reason, usercontext.Actor(c)); err != nil {
		log.Errorf("[Terminal] Deleted %s upstream but could not record it: %v", id, err)
	}

	log.Infof("[Terminal] Deleted terminal %s", id)
	return c.JSON(fiber.Map{
		"cappta_pos_id": id,
		"status":        "DELETED",
	})
}

// HandleBind associates a terminal with a merchant upstream and mirrors the
// association. A terminal we have not mirrored yet is fetched first.
func (tc *TerminalController) HandleBind(c *fiber.Ctx) error {
	var req bindTerminalRequest
	if err := validation.BindJSON(c, &req); err != nil {
		return err
	}

	id := c.Params("id")
	ctx := c.UserContext()
	token, err := capptaToken(ctx, tc.deps.Secrets)
	if err != nil {
		return err
	}

	binding, raw, err := tc.deps.Cappta.BindDevice(ctx, token, id, req.ResellerDocument, req.MerchantDocument)
	if err != nil {
		return err
	}

	reseller := req.ResellerDocument
	if reseller == "" {
		reseller = tc.deps.Cappta.ResellerDocument()
	}
	actor := usercontext.Actor(c)
	found, err := tc.deps.Store.RecordTerminalBinding(ctx, id, reseller, req.MerchantDocument, binding.Token, actor)
	if err != nil {
		log.Errorf("[Terminal] Bound %s upstream but could not record it: %v", id, err)
	} else if !found {
		tc.mirrorBound(c, token, id, reseller, req.MerchantDocument)
	}

	log.Infof("[Terminal] Bound terminal %s to merchant %s", id, req.MerchantDocument)
	return c.JSON(fiber.Map{
		"cappta_pos_id":     id,
		"merchant_document": req.MerchantDocument,
		"status":            "ASSOCIATED",
		"cappta":            raw,
	})
}

func (tc *TerminalController) mirrorBound(c *fiber.Ctx, token, id, reseller, merchantDocument string) {
	ctx := c.UserContext()
	device, err := tc.deps.Cappta.GetDevice(ctx, token, id)
	if err != nil {
		log.Errorf("[Terminal] Could not fetch bound terminal %s: %v", id, err)
		return
	}
	if device.ID == "" {
		device.ID = id
	}
	row := deviceModel(*device, reseller)
	doc := merchantDocument
	row.MerchantDocument = &doc
	row.Status = models.TerminalStatusAssociated
	row.StatusDescription = "Associated"
	if _, err := tc.deps.Store.UpsertTerminal(ctx, row, usercontext.Actor(c)); err != nil {
		log.Errorf("[Terminal] Could not mirror bound terminal %s: %v", id, err)
	}
}

// HandleUnbind releases a terminal from its merchant upstream and returns the
// mirror to Available.
func (tc *TerminalController) HandleUnbind(c *fiber.Ctx) error {
	id := c.Params("id")
	ctx := c.UserContext()
	token, err := capptaToken(ctx, tc.deps.Secrets)
	if err != nil {
		return err
	}

	if _, err := tc.deps.Cappta.UnbindDevice(ctx, token, id); err != nil {
		return err
	}

	previous, err := tc.deps.Store.RecordTerminalUnbinding(ctx, id, usercontext.Actor(c))
	if err != nil {
		log.Errorf("[Terminal] Unbound %s upstream but could not record it: %v", id, err)
	}

	log.Infof("[Terminal] Unbound terminal %s", id)
	return c.JSON(fiber.Map{
		"cappta_pos_id":              id,
		"status":                     "AVAILABLE",
		"previous_merchant_document": previous,
	})
}

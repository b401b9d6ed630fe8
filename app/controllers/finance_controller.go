package controllers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/digiworld/backoffice/app/repository"
	"github.com/digiworld/backoffice/internal/pkg/apperr"
	"github.com/digiworld/backoffice/internal/pkg/finance"
	"github.com/digiworld/backoffice/internal/pkg/ledger"
	"github.com/digiworld/backoffice/internal/pkg/upload"
)

// FinanceController serves the client and vendor ledgers. The kind comes from the
// ":kind" route segment ("clients" or "vendors").
type FinanceController struct {
	svc      *finance.Service
	settings repository.SettingRepository
}

func NewFinanceController(svc *finance.Service, settings repository.SettingRepository) *FinanceController {
	return &FinanceController{svc: svc, settings: settings}
}

func (fc *FinanceController) kindAndID(c *fiber.Ctx) (string, uint, error) {
	kind, err := finance.KindFromSegment(c.Params("kind"))
	if err != nil {
		return "", 0, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return "", 0, err
	}
	return kind, id, nil
}

// HandleList returns active accounts, or archived ones with ?archived=true
func (fc *FinanceController) HandleList(c *fiber.Ctx) error {
	kind, err := finance.KindFromSegment(c.Params("kind"))
	if err != nil {
		return respondError(c, err)
	}
	archived := c.QueryBool("archived", false)

	accounts, err := fc.svc.ListAccounts(c.UserContext(), kind, archived)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": accounts, "count": len(accounts)})
}

func (fc *FinanceController) HandleGet(c *fiber.Ctx) error {
	kind, id, err := fc.kindAndID(c)
	if err != nil {
		return respondError(c, err)
	}
	account, err := fc.svc.GetAccount(c.UserContext(), kind, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(account)
}

func (fc *FinanceController) HandleCheckCycles(c *fiber.Ctx) error {
	kind, id, err := fc.kindAndID(c)
	if err != nil {
		return respondError(c, err)
	}
	res, err := fc.svc.CheckCycles(c.UserContext(), kind, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (fc *FinanceController) HandleCreate(c *fiber.Ctx) error {
	kind, err := finance.KindFromSegment(c.Params("kind"))
	if err != nil {
		return respondError(c, err)
	}
	var in finance.AccountInput
	if err := c.BodyParser(&in); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	account, err := fc.svc.CreateAccount(c.UserContext(), kind, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(account)
}

func (fc *FinanceController) HandleUpdate(c *fiber.Ctx) error {
	kind, id, err := fc.kindAndID(c)
	if err != nil {
		return respondError(c, err)
	}
	var in finance.AccountUpdate
	if err := c.BodyParser(&in); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	account, err := fc.svc.UpdateAccount(c.UserContext(), kind, id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(account)
}

// HandleAddPayment accepts the multipart payment form, including the optional screenshot.
func (fc *FinanceController) HandleAddPayment(c *fiber.Ctx) error {
	kind, id, err := fc.kindAndID(c)
	if err != nil {
		return respondError(c, err)
	}
	in, err := parsePaymentForm(c)
	if err != nil {
		return respondError(c, err)
	}

	res, err := fc.svc.AddPayment(c.UserContext(), kind, id, in)
	if err != nil {
		return respondError(c, err)
	}
	status := fiber.StatusOK
	if res.Committed {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(res)
}

func (fc *FinanceController) HandleArchive(c *fiber.Ctx) error {
	kind, id, err := fc.kindAndID(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := fc.svc.Archive(c.UserContext(), kind, id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "archived", "id": id})
}

func (fc *FinanceController) HandleDeletePermanent(c *fiber.Ctx) error {
	kind, id, err := fc.kindAndID(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := fc.svc.DeletePermanently(c.UserContext(), kind, id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "deleted", "id": id})
}

// HandleReceipt renders the printable receipt of one payment.
func (fc *FinanceController) HandleReceipt(c *fiber.Ctx) error {
	kind, id, err := fc.kindAndID(c)
	if err != nil {
		return respondError(c, err)
	}
	paymentID, err := paramID(c, "paymentId")
	if err != nil {
		return respondError(c, err)
	}

	receipt, err := fc.svc.Receipt(c.UserContext(), kind, id, paymentID)
	if err != nil {
		return respondError(c, err)
	}
	company, err := fc.settings.Get(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}

	ref := receipt.Payment.Reference
	if len(ref) > 6 {
		ref = ref[len(ref)-6:]
	}
	return c.Render("receipt", fiber.Map{
		"Receipt":  receipt,
		"Company":  company,
		"ShortRef": strings.ToUpper(ref),
	})
}

func parsePaymentForm(c *fiber.Ctx) (finance.PaymentInput, error) {
	var in finance.PaymentInput

	raw := strings.TrimSpace(c.FormValue("amount"))
	if raw == "" {
		return in, apperr.Validation("amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return in, apperr.Validation("amount must be a number")
	}
	in.Amount = amount

	if v := strings.TrimSpace(c.FormValue("date")); v != "" {
		paidOn, err := parseDate(v)
		if err != nil {
			return in, err
		}
		in.PaidOn = paidOn
	}

	if v := strings.TrimSpace(c.FormValue("cycleId")); v != "" {
		cycleID, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return in, apperr.Validation("cycleId must be a number")
		}
		in.CycleID = uint(cycleID)
	}

	carry := false
	if v := strings.TrimSpace(c.FormValue("carryForward")); v != "" {
		carry, err = strconv.ParseBool(v)
		if err != nil {
			return in, apperr.Validation("carryForward must be true or false")
		}
	}
	in.Resolution, err = ledger.ParseResolution(c.FormValue("resolution"), carry)
	if err != nil {
		return in, err
	}

	in.Note = strings.TrimSpace(c.FormValue("note"))

	if fh, err := c.FormFile("screenshot"); err == nil && fh != nil {
		proof, err := upload.PrepareProof(fh)
		if err != nil {
			return in, err
		}
		in.Proof = proof
	}
	return in, nil
}

func parseDate(v string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Validation("date must be YYYY-MM-DD")
}

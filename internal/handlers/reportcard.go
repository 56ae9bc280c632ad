package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"reportcard/internal/reportcard"
	"reportcard/internal/uploads"
	u "reportcard/internal/utils"
)

const (
	identifierDigits = 12
	outputFilename   = "report-card.pdf"
	renderFailedMsg  = "Failed to generate PDF."
)

// Renderer is the part of reportcard.Renderer the handler needs.
type Renderer interface {
	Render(ctx context.Context, req reportcard.Request) ([]byte, error)
}

// ReportCardService bundles configuration and dependencies for the report
// card endpoint.
type ReportCardService struct {
	Config   *u.Config
	Renderer Renderer
	Store    uploads.Store
}

// NewReportCardService creates a new ReportCardService instance.
func NewReportCardService(cfg u.Config, r Renderer, store uploads.Store) *ReportCardService {
	return &ReportCardService{
		Config:   &cfg,
		Renderer: r,
		Store:    store,
	}
}

// HandleGenerate validates the form, renders the report card and sends it
// as a PDF attachment.
func (svc *ReportCardService) HandleGenerate(c *fiber.Ctx) error {
	req, release, err := svc.extractRequest(c)
	if err != nil {
		return err
	}
	defer release()

	requestID := requestIDOf(c)
	pdf, err := svc.Renderer.Render(c.UserContext(), req)
	if err != nil {
		var re *reportcard.RenderError
		stage := ""
		if errors.As(err, &re) {
			stage = re.Stage
		}
		u.Error("Report card generation failed",
			"request_id", requestID,
			"outcome", reportcard.Outcome(err),
			"stage", stage,
			"error", err,
		)
		return fiber.NewError(fiber.StatusInternalServerError, renderFailedMsg)
	}

	if limit := svc.Config.Limits.MaxPDFBytes; limit > 0 && len(pdf) > limit {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "PDF exceeds allowed size")
	}

	u.Info("Report card generated", "bytes", len(pdf), "request_id", requestID)

	c.Set("Content-Type", "application/pdf")
	c.Set("Content-Disposition", "attachment; filename="+outputFilename)
	return c.Send(pdf)
}

// extractRequest validates the form fields and stores the photo. The
// returned func releases the stored photo and must always be called when
// err is nil.
func (svc *ReportCardService) extractRequest(c *fiber.Ctx) (reportcard.Request, func(), error) {
	noop := func() {}

	name := strings.TrimSpace(c.FormValue("english_name"))
	if name == "" {
		return reportcard.Request{}, noop, fiber.NewError(fiber.StatusBadRequest, "english_name is required")
	}

	dob := strings.TrimSpace(c.FormValue("dob"))
	if dob == "" {
		return reportcard.Request{}, noop, fiber.NewError(fiber.StatusBadRequest, "dob is required")
	}
	if _, err := reportcard.ReorderDate(dob); err != nil {
		return reportcard.Request{}, noop, fiber.NewError(fiber.StatusBadRequest, "Invalid dob: must be YYYY-MM-DD")
	}

	father := strings.TrimSpace(c.FormValue("fatherName"))
	if father == "" {
		return reportcard.Request{}, noop, fiber.NewError(fiber.StatusBadRequest, "fatherName is required")
	}

	id, err := reportcard.CleanIdentifier(c.FormValue("aadharNumber"))
	if err != nil || len(id) != identifierDigits {
		return reportcard.Request{}, noop, fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("Invalid aadharNumber: must be %d digits", identifierDigits))
	}

	fh, err := c.FormFile("photo")
	if err != nil {
		return reportcard.Request{}, noop, fiber.NewError(fiber.StatusBadRequest, "photo is required")
	}
	if fh.Size == 0 {
		return reportcard.Request{}, noop, fiber.NewError(fiber.StatusBadRequest, "photo is empty")
	}

	up, err := svc.Store.Save(fh)
	if err != nil {
		if errors.Is(err, uploads.ErrTooLarge) {
			return reportcard.Request{}, noop, fiber.NewError(fiber.StatusRequestEntityTooLarge,
				fmt.Sprintf("photo exceeds %d bytes", svc.Config.Limits.MaxUploadBytes))
		}
		u.Error("Failed to store upload", "error", err)
		return reportcard.Request{}, noop, fiber.NewError(fiber.StatusInternalServerError, renderFailedMsg)
	}

	photo, err := up.Bytes()
	if err != nil {
		up.Release()
		u.Error("Failed to read upload", "error", err)
		return reportcard.Request{}, noop, fiber.NewError(fiber.StatusInternalServerError, renderFailedMsg)
	}

	return reportcard.Request{
		EnglishName:      name,
		DateOfBirth:      dob,
		FatherName:       father,
		IdentifierNumber: id,
		Photo:            photo,
	}, up.Release, nil
}

func requestIDOf(c *fiber.Ctx) string {
	if id := c.Get(fiber.HeaderXRequestID); id != "" {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}

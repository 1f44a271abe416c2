package controller

import (
	"ai-scribe-be/internal/dto"
	"ai-scribe-be/internal/pkg/serverutils"
	"ai-scribe-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	GetAll(ctx *fiber.Ctx) error
	Stop(ctx *fiber.Ctx) error
	Close(ctx *fiber.Ctx) error
	SubmitNote(ctx *fiber.Ctx) error
	GetNotes(ctx *fiber.Ctx) error
	SelectDiagnosis(ctx *fiber.Ctx) error
	RequestHandout(ctx *fiber.Ctx) error
	RegenerateRecord(ctx *fiber.Ctx) error
	Artifacts(ctx *fiber.Ctx) error
	Transcript(ctx *fiber.Ctx) error
}

type sessionController struct {
	service service.ISessionService
}

func NewSessionController(service service.ISessionService) ISessionController {
	return &sessionController{service: service}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/session/v1")
	h.Get("", c.GetAll)
	h.Post("", c.Create)
	h.Get(":id", c.Show)
	h.Post(":id/stop", c.Stop)
	h.Post(":id/close", c.Close)
	h.Post(":id/note", c.SubmitNote)
	h.Get(":id/note", c.GetNotes)
	h.Put(":id/diagnosis/:code/selection", c.SelectDiagnosis)
	h.Post(":id/handout", c.RequestHandout)
	h.Post(":id/record/regenerate", c.RegenerateRecord)
	h.Get(":id/artifacts", c.Artifacts)
	h.Get(":id/transcript", c.Transcript)
}

func (c *sessionController) sessionId(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, serverutils.NewApiError(fiber.StatusBadRequest, "Invalid session id")
	}
	return id, nil
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *sessionController) Show(ctx *fiber.Ctx) error {
	id, err := c.sessionId(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Show(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session", res))
}

func (c *sessionController) GetAll(ctx *fiber.Ctx) error {
	res, err := c.service.GetAll(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all sessions", res))
}

func (c *sessionController) Stop(ctx *fiber.Ctx) error {
	id, err := c.sessionId(ctx)
	if err != nil {
		return err
	}

	if err := c.service.Stop(ctx.Context(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success stop session", nil))
}

func (c *sessionController) Close(ctx *fiber.Ctx) error {
	id, err := c.sessionId(ctx)
	if err != nil {
		return err
	}

	if err := c.service.Close(ctx.Context(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success close session", nil))
}

func (c *sessionController) SubmitNote(ctx *fiber.Ctx) error {
	id, err := c.sessionId(ctx)
	if err != nil {
		return err
	}

	var req dto.SubmitNoteRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SubmitNote(ctx.Context(), id, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success submit note", res))
}

func (c *sessionController) GetNotes(ctx *fiber.Ctx) error {
	id, err := c.sessionId(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetNotes(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get notes", res))
}

func (c *sessionController) SelectDiagnosis(ctx *fiber.Ctx) error {
	id, err := c.sessionId(ctx)
	if err != nil {
		return err
	}
	code := ctx.Params("code")

	var req dto.SelectDiagnosisRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := c.service.SetDiagnosisSelected(ctx.Context(), id, code, req.Selected); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update diagnosis selection", nil))
}

func (c *sessionController) RequestHandout(ctx *fiber.Ctx) error {
	id, err := c.sessionId(ctx)
	if err != nil {
		return err
	}

	var req dto.HandoutRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := c.service.RequestHandout(ctx.Context(), id, &req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Handout generation requested", nil))
}

func (c *sessionController) RegenerateRecord(ctx *fiber.Ctx) error {
	id, err := c.sessionId(ctx)
	if err != nil {
		return err
	}

	if err := c.service.RegenerateRecord(ctx.Context(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Record regeneration requested", nil))
}

func (c *sessionController) Artifacts(ctx *fiber.Ctx) error {
	id, err := c.sessionId(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Artifacts(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get artifacts", res))
}

func (c *sessionController) Transcript(ctx *fiber.Ctx) error {
	id, err := c.sessionId(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Transcript(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get transcript", res))
}

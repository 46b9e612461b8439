package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/smartsched/console/core"
	"github.com/smartsched/console/core/schedule"
	"github.com/smartsched/console/core/timetable"
)

// timetableApi is the admin's configuration workspace: import, validation,
// assignment sync, draft persistence and generation.
type timetableApi struct {
	store    timetable.Store
	schedSvc *schedule.Service
}

func registerTimetableAPI(g *echo.Group, jwt echo.MiddlewareFunc, store timetable.Store, schedSvc *schedule.Service) {
	api := timetableApi{store: store, schedSvc: schedSvc}

	tg := g.Group("/timetable", jwt, adminMiddleware())
	tg.POST("/import", api.importConfig)
	tg.POST("/validate", api.validateConfig)
	tg.POST("/validate-input", api.validateInput)
	tg.POST("/sync", api.syncConfig)
	tg.GET("/draft", api.draftLoad)
	tg.PUT("/draft", api.draftSave)
	tg.DELETE("/draft", api.draftClear)
	tg.GET("/export", api.exportDraft)
	tg.POST("/generate", api.generate)
	tg.POST("/reset-teacher", api.resetTeacher)
}

// importConfig normalizes an uploaded configuration. Structurally empty files
// are rejected without touching any saved state.
func (api *timetableApi) importConfig(ctx echo.Context) error {
	var raw interface{}
	if err := ctx.Bind(&raw); err != nil {
		return err
	}

	cfg := timetable.Normalize(raw)
	if errs := timetable.ImportErrors(cfg); len(errs) > 0 {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"errors": errs})
	}
	return ctx.JSON(http.StatusOK, timetable.SyncAssignments(cfg))
}

func (api *timetableApi) validateConfig(ctx echo.Context) error {
	var raw interface{}
	if err := ctx.Bind(&raw); err != nil {
		return err
	}

	valid, violations := timetable.Validate(timetable.Normalize(raw))
	return ctx.JSON(http.StatusOK, echo.Map{"valid": valid, "errors": violations})
}

// validateInput asks the scheduling engine for its own verdict on a
// configuration. The local validateConfig gate covers structure; the engine
// additionally reports solver-level warnings.
func (api *timetableApi) validateInput(ctx echo.Context) error {
	var raw interface{}
	if err := ctx.Bind(&raw); err != nil {
		return err
	}

	report, err := api.schedSvc.ValidateInput(ctx.Request().Context(), timetable.Normalize(raw))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *timetableApi) syncConfig(ctx echo.Context) error {
	var raw interface{}
	if err := ctx.Bind(&raw); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, timetable.SyncAssignments(timetable.Normalize(raw)))
}

func (api *timetableApi) draftLoad(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	cfg, err := api.store.LoadDraft(claims.UserID())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cfg)
}

func (api *timetableApi) draftSave(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var raw interface{}
	if err := ctx.Bind(&raw); err != nil {
		return err
	}
	cfg := timetable.Normalize(raw)
	if err := api.store.SaveDraft(claims.UserID(), cfg); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cfg)
}

func (api *timetableApi) draftClear(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err := api.store.ClearDraft(claims.UserID()); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *timetableApi) exportDraft(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	cfg, err := api.store.LoadDraft(claims.UserID())
	if err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="timetable-config.json"`)
	return ctx.JSON(http.StatusOK, cfg)
}

// generate validates the configuration and hands it to the scheduling engine.
func (api *timetableApi) generate(ctx echo.Context) error {
	var raw interface{}
	if err := ctx.Bind(&raw); err != nil {
		return err
	}

	cfg := timetable.Normalize(raw)
	if valid, violations := timetable.Validate(cfg); !valid {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"valid": false, "errors": violations})
	}

	result, err := api.schedSvc.Generate(ctx.Request().Context(), cfg)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return ctx.JSON(http.StatusOK, result)
}

func (api *timetableApi) resetTeacher(ctx echo.Context) error {
	data := new(ResetTeacherRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := core.Validate.Struct(data); err != nil {
		return err
	}

	cfg := timetable.Normalize(data.InputData)
	updated := api.schedSvc.ResetTeacherAssignment(cfg, data.Timetable, data.Teacher, data.Day, data.Slot)
	return ctx.JSON(http.StatusOK, echo.Map{"timetable": updated})
}

type ResetTeacherRequest struct {
	Teacher   string             `json:"teacher" validate:"required"`
	Day       string             `json:"day" validate:"required"`
	Slot      string             `json:"slot" validate:"required"`
	InputData interface{}        `json:"inputData" validate:"required"`
	Timetable []schedule.Session `json:"timetable" validate:"required"`
}

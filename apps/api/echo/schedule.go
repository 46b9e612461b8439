package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smartsched/console/core"
	"github.com/smartsched/console/core/schedule"
	"github.com/smartsched/console/core/timetable"
	"github.com/smartsched/console/core/user"
)

// scheduleApi serves the live timetable: publishing, role-filtered views,
// reschedule requests and the admin activity feed.
type scheduleApi struct {
	service *user.Service
	sched   *schedule.Service
}

func registerScheduleAPI(g *echo.Group, jwt echo.MiddlewareFunc, schedSvc *schedule.Service, usrSvc *user.Service) {
	api := scheduleApi{service: usrSvc, sched: schedSvc}

	sg := g.Group("/schedule", jwt)
	sg.POST("/publish", api.publish, adminMiddleware())
	sg.GET("/published", api.published)
	sg.DELETE("/published", api.deletePublished, adminMiddleware())
	sg.GET("/my", api.mySchedule)
	sg.GET("/sections", api.searchSections)
	sg.GET("/available-slots", api.availableSlots, roleMiddleware(user.RoleTeacher))
	sg.GET("/activity-feed", api.activityFeed, adminMiddleware())

	rg := sg.Group("/reschedule-requests")
	rg.POST("", api.createReschedule, roleMiddleware(user.RoleTeacher))
	rg.GET("", api.pendingReschedules, adminMiddleware())
	rg.POST("/:id/approve", api.approveReschedule, adminMiddleware())
	rg.POST("/:id/reject", api.rejectReschedule, adminMiddleware())
}

// publish makes a generated timetable live and provisions any missing
// teacher/student accounts found in it.
func (api *scheduleApi) publish(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	data := new(PublishRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := core.Validate.Struct(data); err != nil {
		return err
	}

	cfg := timetable.Normalize(data.InputData)
	pub, err := api.sched.Publish(cfg, data.TimetableData, claims.Username)
	if err != nil {
		return err
	}

	created, err := api.service.SyncFromTimetable(
		cfg.AllTeachers(), cfg.SectionNames(),
		core.Conf.DefaultTeacherPassword, core.Conf.DefaultStudentPassword,
	)
	if err != nil {
		return err
	}

	api.sched.LogActivity("timetable_published",
		"Timetable published by "+claims.Username,
		map[string]interface{}{"publishedBy": claims.Username, "accountsCreated": created})

	return ctx.JSON(http.StatusCreated, PublishResponse{Published: pub, AccountsCreated: created})
}

func (api *scheduleApi) published(ctx echo.Context) error {
	pub, err := api.sched.GetPublished()
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pub)
}

func (api *scheduleApi) deletePublished(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err := api.sched.DeletePublished(); err != nil {
		return err
	}
	api.sched.LogActivity("timetable_deleted",
		"Published timetable deleted by "+claims.Username,
		map[string]interface{}{"deletedBy": claims.Username})
	return ctx.NoContent(http.StatusNoContent)
}

// mySchedule returns the live timetable narrowed to the caller: teachers see
// their own sessions, students their section, admins everything.
func (api *scheduleApi) mySchedule(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.service)
	if err != nil {
		return err
	}
	pub, err := api.sched.GetPublished()
	if err != nil {
		return err
	}

	rows := pub.Result.Timetable
	switch {
	case usr.IsTeacher():
		rows = schedule.FilterByTeacher(rows, usr.DisplayName())
	case usr.IsStudent():
		rows = schedule.FilterBySection(rows, usr.Section)
	}

	return ctx.JSON(http.StatusOK, MyScheduleResponse{
		Timetable:   rows,
		Grid:        schedule.Compose(rows, pub.Config),
		PublishedAt: pub.PublishedAt,
	})
}

// searchSections filters the published sections by a free-text query over
// section names, subjects, teachers and rooms.
func (api *scheduleApi) searchSections(ctx echo.Context) error {
	pub, err := api.sched.GetPublished()
	if err != nil {
		return err
	}
	lookup := schedule.BuildLookup(pub.Result.Timetable)
	return ctx.JSON(http.StatusOK, lookup.MatchSections(ctx.QueryParam("q")))
}

func (api *scheduleApi) availableSlots(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.service)
	if err != nil {
		return err
	}
	pub, err := api.sched.GetPublished()
	if err != nil {
		return err
	}

	day := ctx.QueryParam("day")
	slot := ctx.QueryParam("slot")
	if day == "" || slot == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "day and slot query params are required")
	}

	slots, err := schedule.AvailableTheorySlots(pub.Result.Timetable, usr.DisplayName(), day, slot, pub.Config.Slots)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"available_slots": slots})
}

func (api *scheduleApi) createReschedule(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.service)
	if err != nil {
		return err
	}

	data := new(RescheduleRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := core.Validate.Struct(data); err != nil {
		return err
	}

	req, err := api.sched.RequestReschedule(
		usr.DisplayName(), data.Day, data.Slot,
		data.RequestType, data.PreferredSlot, data.Reason, usr.Username,
	)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *scheduleApi) pendingReschedules(ctx echo.Context) error {
	reqs, err := api.sched.PendingRequests()
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *scheduleApi) approveReschedule(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id, err := requestID(ctx)
	if err != nil {
		return err
	}
	req, pub, err := api.sched.ApproveReschedule(id, claims.Username)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"request": req, "published": pub})
}

func (api *scheduleApi) rejectReschedule(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id, err := requestID(ctx)
	if err != nil {
		return err
	}

	data := new(RejectRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}

	req, err := api.sched.RejectReschedule(id, data.AdminNote, claims.Username)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, req)
}

// activityFeed is the admin overview: today's events plus everything waiting
// on a decision.
func (api *scheduleApi) activityFeed(ctx echo.Context) error {
	feed, err := api.sched.ActivityFeed()
	if err != nil {
		return err
	}
	regs, err := api.service.PendingApprovals()
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ActivityFeedResponse{
		Feed:                 feed,
		PendingRegistrations: regs,
	})
}

func requestID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return 0, errHttpNotFound
	}
	return id, nil
}

type (
	PublishRequest struct {
		InputData     interface{}     `json:"inputData" validate:"required"`
		TimetableData schedule.Result `json:"timetableData"`
	}

	PublishResponse struct {
		schedule.Published
		AccountsCreated int `json:"accountsCreated"`
	}

	MyScheduleResponse struct {
		Timetable   []schedule.Session `json:"timetable"`
		Grid        schedule.Grid      `json:"grid"`
		PublishedAt time.Time          `json:"publishedAt"`
	}

	RescheduleRequest struct {
		Day           string `json:"day" validate:"required"`
		Slot          string `json:"slot" validate:"required"`
		RequestType   string `json:"requestType" validate:"required,oneof=unavailable reslot_theory"`
		PreferredSlot string `json:"preferredSlot" validate:"required_if=RequestType reslot_theory"`
		Reason        string `json:"reason"`
	}

	RejectRequest struct {
		AdminNote string `json:"adminNote"`
	}

	ActivityFeedResponse struct {
		schedule.Feed
		PendingRegistrations []user.Registration `json:"pendingRegistrations"`
	}
)

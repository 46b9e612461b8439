package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/smartsched/console/core"
	"github.com/smartsched/console/core/user"
)

type accountApi struct {
	service *user.Service
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *user.Service) {
	api := accountApi{service: svc}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login)
	ag.POST("/register", api.registerStart)
	ag.POST("/register/verify", api.registerVerify)
	ag.POST("/password-reset", api.passwordReset)
	ag.POST("/password-reset-confirm", api.passwordResetConfirm)

	// authed endpoints
	authed := ag.Group("", jwt)
	authed.GET("/me", api.me)
	authed.POST("/token-refresh", api.tokenRefresh)

	// teacher registrations awaiting admin decision
	rg := g.Group("/registrations", jwt, adminMiddleware())
	rg.GET("", api.pendingRegistrations)
	rg.POST("/:id/approve", api.approveRegistration)
	rg.POST("/:id/reject", api.rejectRegistration)
}

func (api *accountApi) login(ctx echo.Context) error {
	data := new(LoginRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := core.Validate.Struct(data); err != nil {
		return err
	}

	usr, err := api.service.Authenticate(data.Username, data.Password)
	if err != nil {
		return err
	}
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api *accountApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.service)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *accountApi) tokenRefresh(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.service)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"token": token})
}

func (api *accountApi) registerStart(ctx echo.Context) error {
	data := new(user.NewRegistration)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := core.Validate.Struct(data); err != nil {
		return err
	}

	reg, err := api.service.RegisterStart(*data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, reg)
}

func (api *accountApi) registerVerify(ctx echo.Context) error {
	data := new(VerifyRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := core.Validate.Struct(data); err != nil {
		return err
	}

	reg, usr, err := api.service.RegisterVerify(data.ID, data.Token, data.Code)
	if err != nil {
		return err
	}

	// students are active right away; log them in
	if usr != nil {
		token, err := GenerateToken(GetUserClaims(*usr))
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, VerifyResponse{User: usr, Token: token})
	}
	return ctx.JSON(http.StatusOK, VerifyResponse{Registration: &reg})
}

func (api *accountApi) passwordReset(ctx echo.Context) error {
	data := new(PasswordResetRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := core.Validate.Struct(data); err != nil {
		return err
	}

	// do not reveal whether the account exists
	if err := api.service.RequestPasswordReset(data.Email); err != nil && err != user.ErrNotFound {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"detail": "If the email is known, a password reset link has been sent",
	})
}

func (api *accountApi) passwordResetConfirm(ctx echo.Context) error {
	data := new(PasswordResetConfirmRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := core.Validate.Struct(data); err != nil {
		return err
	}

	if _, err := api.service.ResetPassword(data.UID, data.Token, data.Password); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"detail": "Password has been reset"})
}

func (api *accountApi) pendingRegistrations(ctx echo.Context) error {
	regs, err := api.service.PendingApprovals()
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, regs)
}

func (api *accountApi) approveRegistration(ctx echo.Context) error {
	id, err := registrationID(ctx)
	if err != nil {
		return err
	}
	usr, err := api.service.ApproveRegistration(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *accountApi) rejectRegistration(ctx echo.Context) error {
	id, err := registrationID(ctx)
	if err != nil {
		return err
	}
	reg, err := api.service.RejectRegistration(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, reg)
}

func registrationID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return 0, errHttpNotFound
	}
	return id, nil
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	VerifyRequest struct {
		ID    int64  `json:"id" validate:"required"`
		Token string `json:"token" validate:"required"`
		Code  string `json:"code" validate:"required"`
	}

	VerifyResponse struct {
		Registration *user.Registration `json:"registration,omitempty"`
		User         *user.User         `json:"user,omitempty"`
		Token        string             `json:"token,omitempty"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	PasswordResetConfirmRequest struct {
		UID      string `json:"uid" validate:"required"`
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required,min=8"`
	}
)

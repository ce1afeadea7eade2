package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jkimani/karo/core/fees"
)

type feesApi struct {
	svc *fees.Service
}

func registerFeesAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *fees.Service) {
	api := feesApi{svc: svc}

	// fee reference data is public; parents check fees before they ever log in
	fg := g.Group("/fees")
	fg.GET("/structure", api.structure)
	fg.GET("/schedule", api.schedule)
	fg.GET("/in-kind/items", api.inKindItems)
	fg.POST("/in-kind/value", api.inKindValue)
	fg.POST("/balance", api.balance)

	sg := g.Group("/students", jwt)
	sg.GET("/:id/balance", api.studentBalance)
	sg.GET("/:id/payments", api.studentPayments)

	pg := g.Group("/payments", jwt)
	pg.POST("", api.recordPayment, bursarMiddleware())
	pg.GET("/:id", api.getPayment, bursarMiddleware())
	pg.DELETE("/:id", api.voidPayment, adminMiddleware())
}

// Handlers

func (api *feesApi) structure(ctx echo.Context) error {
	var data FeeStructureRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FeeStructureRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	fs, err := api.svc.GetFeeStructure(
		fees.GradeLevel(data.GradeLevel),
		fees.BoardingStatus(data.BoardingStatus),
		data.HasTransport,
		data.Route,
	)
	if err != nil {
		return errors.Wrap(err, "getting fee structure")
	}
	return ctx.JSON(http.StatusOK, fs)
}

func (api *feesApi) schedule(ctx echo.Context) error {
	entries, err := api.svc.AllEntries()
	if err != nil {
		return errors.Wrap(err, "querying fee schedule")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *feesApi) inKindItems(ctx echo.Context) error {
	items, err := api.svc.InKindItems()
	if err != nil {
		return errors.Wrap(err, "querying in-kind items")
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *feesApi) inKindValue(ctx echo.Context) error {
	var data InKindValueRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to InKindValueRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	var override []float64
	if data.OverrideUnitValue > 0 {
		override = append(override, data.OverrideUnitValue)
	}
	val, err := api.svc.ComputeInKindValue(data.ItemType, data.Quantity, override...)
	if err != nil {
		return errors.Wrap(err, "valuing in-kind payment")
	}
	return ctx.JSON(http.StatusOK, val)
}

func (api *feesApi) balance(ctx echo.Context) error {
	var data BalanceRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BalanceRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	bal, err := fees.ComputeBalance(data.TotalFee, data.Payments)
	if err != nil {
		return errors.Wrap(err, "computing balance")
	}
	return ctx.JSON(http.StatusOK, bal)
}

func (api *feesApi) studentBalance(ctx echo.Context) error {
	var data StudentBalanceRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentBalanceRequest")
	}

	sb, err := api.svc.StudentBalance(fees.StudentProfile{
		StudentID:      ctx.Param("id"),
		GradeLevel:     fees.GradeLevel(data.GradeLevel),
		BoardingStatus: fees.BoardingStatus(data.BoardingStatus),
		HasTransport:   data.HasTransport,
		TransportRoute: data.Route,
	})
	if err != nil {
		return errors.Wrap(err, "deriving student balance")
	}
	return ctx.JSON(http.StatusOK, sb)
}

func (api *feesApi) studentPayments(ctx echo.Context) error {
	payments, err := api.svc.StudentPayments(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying student payments")
	}
	if payments == nil {
		payments = []fees.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *feesApi) recordPayment(ctx echo.Context) error {
	var data fees.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	p, err := api.svc.RecordPayment(data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *feesApi) getPayment(ctx echo.Context) error {
	p, err := api.svc.GetPayment(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting payment")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *feesApi) voidPayment(ctx echo.Context) error {
	if err := api.svc.VoidPayment(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "voiding payment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/nao1215/streamscout/internal/dispatch"
	"github.com/nao1215/streamscout/internal/model"
)

// invalidIDMessage is the exact body text for a rejected identifier.
const invalidIDMessage = "Invalid or missing 'id' parameter."

type (
	errorBody struct {
		Error string `json:"error"`
	}

	resolveQuery struct {
		ID string `query:"id" validate:"required,number"`
	}

	resolveController struct {
		resolver Resolver
		validate *validator.Validate
	}

	ProviderDto struct {
		Tag      string `json:"tag"`
		Strategy string `json:"strategy,omitempty"`
	}

	ProvidersDto struct {
		Providers []ProviderDto `json:"providers"`
	}

	registryController struct {
		resolver Resolver
	}
)

func newResolveController(validate *validator.Validate, resolver Resolver) *resolveController {
	return &resolveController{resolver: resolver, validate: validate}
}

func (controller *resolveController) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.resolve)
	eg.GET("/api", controller.resolve)
	eg.GET("/resolve", controller.resolve)
}

func (controller *resolveController) resolve(ec echo.Context) error {
	query := resolveQuery{ID: ec.QueryParam("id")}
	if err := controller.validate.Struct(query); err != nil {
		return ec.JSON(http.StatusBadRequest, errorBody{Error: invalidIDMessage})
	}
	id, err := model.ParseIdentifier(query.ID)
	if err != nil {
		return ec.JSON(http.StatusBadRequest, errorBody{Error: invalidIDMessage})
	}

	report, err := controller.resolver.Resolve(ec.Request().Context(), id)
	switch {
	case err == nil:
		return ec.JSON(http.StatusOK, report)
	case dispatch.IsConfigurationError(err):
		return ec.JSON(http.StatusInternalServerError, errorBody{Error: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Request cancelled before resolution finished.")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
}

func newRegistryController(resolver Resolver) *registryController {
	return &registryController{resolver: resolver}
}

func (controller *registryController) SetRoutes(eg *echo.Group) {
	eg.GET("/providers", controller.list)
}

func (controller *registryController) list(ec echo.Context) error {
	providers := controller.resolver.Registry().List()
	dto := ProvidersDto{Providers: make([]ProviderDto, len(providers))}
	for i, p := range providers {
		dto.Providers[i] = ProviderDto{Tag: p.Tag, Strategy: p.Strategy}
	}
	return ec.JSON(http.StatusOK, dto)
}

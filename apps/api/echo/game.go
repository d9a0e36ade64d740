package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/core/game"
)

type gameApi struct {
	svc *game.Service
}

func registerGameAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := gameApi{svc: opts.GameSvc}

	gg := g.Group("/games", jwt)
	gg.GET("", api.query)
	gg.POST("/:id/click", api.click)
}

// Handlers

func (api *gameApi) query(ctx echo.Context) error {
	filter := new(game.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []game.Game{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	games, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying games")
	}
	if games == nil {
		games = []game.Game{}
	}
	return ctx.JSON(http.StatusOK, games)
}

func (api *gameApi) click(ctx echo.Context) error {
	id := core.CleanString(ctx.Param("id"))
	if id == "" {
		return core.NewValidationError(errors.New("missing game id"))
	}

	count, err := api.svc.Click(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == game.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "incrementing click")
	}
	return ctx.JSON(http.StatusOK, ClickResponse{GameID: id, AccumulatedClick: count})
}

type ClickResponse struct {
	GameID           string `json:"game_id"`
	AccumulatedClick int    `json:"accumulated_click"`
}

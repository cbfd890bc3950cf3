package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/totegamma/helm"
	"github.com/totegamma/helm/internal/domain"
	"github.com/totegamma/helm/internal/present/rest/presenter"
	"github.com/totegamma/helm/internal/usecase"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Realtime streams the events of the accounts last sent on input. It closes output when done.
type Realtime interface {
	Realtime(ctx context.Context, input <-chan []string, output chan<- helm.Event)
}

type Handler struct {
	config     domain.Config
	commit     *usecase.CommitUsecase
	account    *usecase.AccountUsecase
	membership *usecase.MembershipUsecase
	content    *usecase.ContentUsecase
	realtime   Realtime
	gatherer   prometheus.Gatherer
}

func NewHandler(
	config domain.Config,
	commit *usecase.CommitUsecase,
	account *usecase.AccountUsecase,
	membership *usecase.MembershipUsecase,
	content *usecase.ContentUsecase,
	realtime Realtime,
	gatherer prometheus.Gatherer,
) *Handler {
	return &Handler{
		config:     config,
		commit:     commit,
		account:    account,
		membership: membership,
		content:    content,
		realtime:   realtime,
		gatherer:   gatherer,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/.well-known/helm", h.handleWellKnown)
	e.POST("/commit", h.handleCommit)
	e.GET("/accounts/:address", h.handleAccount)
	e.GET("/accounts/:address/admins", h.handleMemberList(domain.AdminList))
	e.GET("/accounts/:address/creators", h.handleMemberList(domain.CreatorList))
	e.GET("/accounts/:address/contents", h.handleContents)
	e.GET("/contents/:address", h.handleContent)
	if h.realtime != nil {
		e.GET("/realtime", h.handleRealtime)
	}
	if h.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	wellknown := helm.WellKnown{
		Version:          "1.0",
		Domain:           h.config.FQDN,
		ServiceAuthority: h.config.ServiceAuthority.Hex(),
		Endpoints: map[string]helm.Endpoint{
			"helm.commit": {
				Template: "/commit",
				Method:   "POST",
			},
			"helm.account": {
				Template: "/accounts/{address}",
				Method:   "GET",
			},
			"helm.admins": {
				Template: "/accounts/{address}/admins",
				Method:   "GET",
			},
			"helm.creators": {
				Template: "/accounts/{address}/creators",
				Method:   "GET",
			},
			"helm.contents": {
				Template: "/accounts/{address}/contents",
				Method:   "GET",
				Query:    &[]string{"status", "limit"},
			},
			"helm.content": {
				Template: "/contents/{address}",
				Method:   "GET",
			},
			"helm.realtime": {
				Template: "/realtime",
				Method:   "GET",
			},
		},
	}
	return presenter.OK(c, wellknown)
}

func (h *Handler) handleCommit(c echo.Context) error {
	ctx := c.Request().Context()

	var sd helm.SignedDocument
	err := c.Bind(&sd)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	result, err := h.commit.Commit(ctx, sd)
	if err != nil {
		return presenter.Error(c, err)
	}

	return presenter.OK(c, result)
}

func (h *Handler) handleAccount(c echo.Context) error {
	address, err := domain.ParseAddress(c.Param("address"))
	if err != nil {
		return presenter.Error(c, err)
	}

	account, err := h.account.Get(c.Request().Context(), address)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, account)
}

func (h *Handler) handleMemberList(kind domain.ListKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		address, err := domain.ParseAddress(c.Param("address"))
		if err != nil {
			return presenter.Error(c, err)
		}

		list, err := h.membership.Get(c.Request().Context(), address, kind)
		if err != nil {
			return presenter.Error(c, err)
		}
		return presenter.OK(c, list)
	}
}

func (h *Handler) handleContents(c echo.Context) error {
	address, err := domain.ParseAddress(c.Param("address"))
	if err != nil {
		return presenter.Error(c, err)
	}

	limit := defaultListLimit
	if s := c.QueryParam("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit <= 0 {
			return presenter.BadRequestMessage(c, "invalid limit")
		}
		limit = min(limit, maxListLimit)
	}

	contents, err := h.content.ListByAccount(c.Request().Context(), address, domain.Status(c.QueryParam("status")), limit)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, contents)
}

func (h *Handler) handleContent(c echo.Context) error {
	address, err := domain.ParseAddress(c.Param("address"))
	if err != nil {
		return presenter.Error(c, err)
	}

	content, err := h.content.Get(c.Request().Context(), address)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, content)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type     string   `json:"type"`
	Accounts []string `json:"accounts"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []string)
	output := make(chan helm.Event)
	go h.realtime.Realtime(ctx, input, output)

	go func() {
		defer cancel()
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {
				var wsErr *websocket.CloseError
				if errors.As(err, &wsErr) {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else if ctx.Err() == nil {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Accounts:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Accounts),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-output:
			if !ok {
				return nil
			}
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}

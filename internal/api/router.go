package api

import (
	"errors"
	"net/http"
	"strconv"

	"triad-service/internal/middleware"
	"triad-service/internal/service"
	"triad-service/internal/service/game"
	usersvc "triad-service/internal/service/user"
	"triad-service/internal/ws"
	"triad-service/pkg/logger"
	"triad-service/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container, allowedOrigins []string) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Game, services.Ticket, services.User, allowedOrigins)

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})

	v1 := r.Group("/triad/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", handler.Register)
			authGroup.POST("/login", handler.Login)
		}

		v1.GET("/catalog", handler.ListCatalog)

		protected := v1.Group("/")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/user/profile", handler.GetProfile)
			protected.PUT("/user/profile", handler.UpdateProfile)
			protected.GET("/cards", handler.ListCards)

			protected.GET("/matches", handler.ListMatches)
			protected.POST("/matches", handler.CreateMatch)
			protected.GET("/matches/:id", handler.ShowMatch)
			protected.POST("/matches/:id/join", handler.JoinMatch)
			protected.POST("/matches/:id/pick", handler.PickCards)
			protected.POST("/matches/:id/play", handler.PlayCard)
			protected.POST("/matches/:id/trade", handler.TradeCards)
			protected.POST("/matches/:id/ticket", handler.IssueTicket)
		}
	}

	r.GET("/ws/matches/:id", wsHandler.HandleMatchWS)
}

type credentialsBody struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type updateProfileBody struct {
	Nickname *string `json:"nickname"`
}

type createMatchBody struct {
	Rules        []string `json:"rules"`
	TradeRule    string   `json:"tradeRule" binding:"omitempty,oneof=none one direct all"`
	OpponentKind string   `json:"opponentKind" binding:"omitempty,oneof=public private"`
}

type pickCardsBody struct {
	Cards []game.CardRef `json:"cards" binding:"required,len=5"`
}

type playCardBody struct {
	Space     *int `json:"space" binding:"required,min=0,max=8"`
	HandIndex *int `json:"handIndex" binding:"required,min=0,max=4"`
}

func (h *Handler) Register(c *gin.Context) {
	var body credentialsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.services.Auth.Register(c.Request.Context(), body.Name, body.Password)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Created(c, result)
}

func (h *Handler) Login(c *gin.Context) {
	var body credentialsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.services.Auth.Login(c.Request.Context(), body.Name, body.Password)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) ListCatalog(c *gin.Context) {
	response.Success(c, gin.H{"cards": game.Catalog()})
}

func (h *Handler) GetProfile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	profile, err := h.services.User.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, profile)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body updateProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.services.User.UpdateProfile(c.Request.Context(), userID, usersvc.UpdateProfileRequest{
		Nickname: body.Nickname,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, updated)
}

func (h *Handler) ListCards(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	cards, err := h.services.Card.ListOwnedDetails(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, gin.H{"cards": cards})
}

func (h *Handler) ListMatches(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, err := parsePositiveIntQuery(c, "limit", 50)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	open, err := h.services.Directory.ListOpen(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	mine, err := h.services.Directory.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, gin.H{"open": open, "mine": mine})
}

func (h *Handler) CreateMatch(c *gin.Context) {
	var body createMatchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	rules, err := game.ParseRules(body.Rules)
	if err != nil {
		h.handleError(c, err)
		return
	}
	trade, err := game.ParseTradeRule(body.TradeRule)
	if err != nil {
		h.handleError(c, err)
		return
	}
	kind, err := game.ParseOpponentKind(body.OpponentKind)
	if err != nil {
		h.handleError(c, err)
		return
	}

	view, err := h.services.Game.Create(c.Request.Context(), identity, game.CreateRequest{
		Rules:        rules,
		TradeRule:    trade,
		OpponentKind: kind,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Created(c, view)
}

func (h *Handler) ShowMatch(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	view, err := h.services.Game.Show(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *Handler) JoinMatch(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	view, err := h.services.Game.Join(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *Handler) PickCards(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body pickCardsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	view, err := h.services.Game.PickCards(c.Request.Context(), userID, c.Param("id"), body.Cards)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *Handler) PlayCard(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body playCardBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	view, err := h.services.Game.PlayCard(c.Request.Context(), userID, c.Param("id"), *body.Space, *body.HandIndex)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *Handler) TradeCards(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.services.Game.TradeCards(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, gin.H{})
}

// IssueTicket exchanges the caller's bearer token for a single-use
// websocket ticket bound to one match.
func (h *Handler) IssueTicket(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	matchID := c.Param("id")
	if _, err := h.services.Game.Show(c.Request.Context(), userID, matchID); err != nil {
		h.handleError(c, err)
		return
	}
	issued, err := h.services.Ticket.Issue(c.Request.Context(), userID, matchID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, issued)
}

func (h *Handler) identity(c *gin.Context) (game.Identity, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return game.Identity{}, false
	}
	identity, err := h.services.User.Identity(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err)
		return game.Identity{}, false
	}
	return identity, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	if status := response.Fail(c, err); status == http.StatusInternalServerError {
		logger.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
}

func parsePositiveIntQuery(c *gin.Context, key string, defaultVal int) (int, error) {
	val := c.Query(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return parsed, nil
}

package ws

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"triad-service/internal/service/game"
	"triad-service/internal/service/ticket"
	"triad-service/internal/service/user"
	appErr "triad-service/pkg/errors"
	"triad-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	readLimit  = 1 << 16
	pongWait   = 60 * time.Second
	pingEvery  = 25 * time.Second
	writeWait  = 5 * time.Second
	dispatchTO = 10 * time.Second
)

type Handler struct {
	gameSvc   *game.Service
	ticketSvc *ticket.Service
	userSvc   *user.Service
	upgrader  websocket.Upgrader
}

func NewHandler(gameSvc *game.Service, ticketSvc *ticket.Service, userSvc *user.Service, allowedOrigins []string) *Handler {
	return &Handler{
		gameSvc:   gameSvc,
		ticketSvc: ticketSvc,
		userSvc:   userSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker accepts browsers from the listed origins ("*" for any) and
// from the serving host itself. Clients that send no Origin are not browsers
// and are let through; the ticket is their credential.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[strings.ToLower(origin)] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// HandleMatchWS authenticates with a single-use ticket, never a bearer
// token, and then hands the socket over to the match runtime.
func (h *Handler) HandleMatchWS(c *gin.Context) {
	if !h.upgrader.CheckOrigin(c.Request) {
		c.JSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
		return
	}
	matchID := c.Param("id")
	code := strings.TrimSpace(c.Query("ticket"))
	if code == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing ticket"})
		return
	}

	claim, err := h.ticketSvc.Consume(c.Request.Context(), code, matchID)
	if err != nil {
		if errors.Is(err, appErr.ErrInvalidTicket) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid ticket"})
			return
		}
		logger.Log.Error("consume ticket failed", zap.String("matchID", matchID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate ticket"})
		return
	}

	identity, err := h.userSvc.Identity(c.Request.Context(), claim.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	// The snapshot pushed on register sits in the buffer until the write
	// pump starts.
	conn := game.NewConnection(identity, h.gameSvc.OutboundBuffer())
	rt, err := h.gameSvc.Connect(c.Request.Context(), matchID, conn)
	if err != nil {
		switch {
		case errors.Is(err, appErr.ErrMatchNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
		case errors.Is(err, appErr.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load match"})
		}
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		rt.Unregister(conn)
		return
	}

	logger.Log.Info("New WebSocket connection",
		zap.String("matchID", matchID),
		zap.Int64("userID", identity.UserID),
	)

	newClient(ws, conn, rt).run()
}

type client struct {
	ws   *websocket.Conn
	conn *game.Connection
	rt   *game.Runtime
	done chan struct{}
}

func newClient(ws *websocket.Conn, conn *game.Connection, rt *game.Runtime) *client {
	ws.SetReadLimit(readLimit)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return &client{
		ws:   ws,
		conn: conn,
		rt:   rt,
		done: make(chan struct{}),
	}
}

func (c *client) run() {
	go c.writePump()
	c.readPump()
}

func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.rt.Unregister(c.conn)
		c.ws.Close()
	}()

	for {
		mt, message, err := c.ws.ReadMessage()
		if err != nil {
			logger.Log.Info("WS read error", zap.Error(err), zap.Int64("userID", c.conn.UserID), zap.String("matchID", c.rt.MatchID()))
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTO)
		err = c.rt.Dispatch(ctx, c.conn, message)
		cancel()
		if err != nil {
			// The runtime is gone; the client reconnects for a fresh snapshot.
			logger.Log.Info("WS dispatch failed", zap.Error(err), zap.Int64("userID", c.conn.UserID), zap.String("matchID", c.rt.MatchID()))
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	outbound := c.conn.Outbound()
	for {
		select {
		case msg, ok := <-outbound:
			if !ok {
				c.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				logger.Log.Info("WS write error", zap.Error(err), zap.Int64("userID", c.conn.UserID), zap.String("matchID", c.rt.MatchID()))
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

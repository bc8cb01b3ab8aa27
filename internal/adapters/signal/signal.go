// Package signal is the websocket transport adapter: it owns the live
// connections and feeds raw frames into the app router. Connection handles
// live and die here; the rest of the system only ever sees ConnIDs.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dechrm/callrelay/internal/app"
	"github.com/dechrm/callrelay/internal/config"
	"github.com/dechrm/callrelay/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

type SignalWSController struct {
	router   *app.Router
	conns    *ConnTable
	cfg      *config.Config
	upgrader websocket.Upgrader
}

func NewSignalWSController(cfg *config.Config, router *app.Router, conns *ConnTable) *SignalWSController {
	return &SignalWSController{
		router: router,
		conns:  conns,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(cfg.AllowedOrigins),
		},
	}
}

// originChecker allows everything when no origins are configured (dev mode).
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

type wsConn struct {
	id   domain.ConnID
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request and starts the connection's pumps.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	cid := domain.NewConnID()
	conn := &wsConn{
		id:   cid,
		conn: ws,
		send: make(chan []byte, ctl.cfg.SendBuffer),
	}
	ctl.conns.Add(conn)
	log.Info().Str("module", "signal").Str("conn", string(cid)).Msg("connection accepted")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, conn)
}

package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const wsWriteTimeout = 5 * time.Second

// handleWebSocket streams valuations and ledger changes to one dashboard
// view. The connection owns its valuation task; closing it stops the task.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}
	defer c.CloseNow()

	// The client never sends; CloseRead cancels ctx when it goes away.
	ctx := c.CloseRead(r.Context())
	s.log.Info("websocket connected", "remote", r.RemoteAddr)

	err = s.watcher.Watch(ctx, func(msg StreamMessage) error {
		wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		defer cancel()
		return wsjson.Write(wctx, c, msg)
	})
	if err != nil && ctx.Err() == nil {
		s.log.Warn("websocket write failed", "error", err)
		c.Close(websocket.StatusInternalError, "write failed")
		return
	}
	s.log.Info("websocket disconnected", "remote", r.RemoteAddr)
	c.Close(websocket.StatusNormalClosure, "")
}

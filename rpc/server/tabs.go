package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ValentinKolb/homekv/lib/home"
	"github.com/ValentinKolb/homekv/rpc/common"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lni/dragonboat/v4/logger"
)

var wsLogger = logger.GetLogger("transport/ws")

// tabConn is the websocket connection of one tab.
// Writes come from the read loop and from broadcasts, so they are serialized.
type tabConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *tabConn) write(ctx context.Context, msg *common.Message, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteJSON(msg)
}

// handleTabs upgrades the request and runs the read loop of a new tab
func (s *Server) handleTabs(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wsLogger.Warningf("failed to upgrade tab connection: %v", err)
		return
	}

	ctx := r.Context()
	tab := home.TabID(uuid.NewString())
	conn := &tabConn{ws: ws}

	s.conns.Store(tab, conn)
	defer func() {
		s.service.Tabs().RemoveTab(tab)
		s.conns.Delete(tab)
		_ = ws.Close()
		wsLogger.Debugf("tab %s disconnected", tab)
	}()

	clientURL, err := s.service.Tabs().AddTab(ctx, tab)
	if err != nil {
		Logger.Errorf("failed to attach tab: %v", err)
		_ = conn.write(ctx, common.NewErrorResponse("", err), s.timeout())
		return
	}
	if err := conn.write(ctx, common.NewAttachedMessage(tab), s.timeout()); err != nil {
		return
	}
	wsLogger.Debugf("tab %s connected (client %s)", tab, clientURL)

	for {
		var req common.Message
		if err := ws.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				wsLogger.Debugf("tab %s read failed: %v", tab, err)
			}
			return
		}

		resp := s.handle(ctx, tab, &req)
		if resp == nil {
			continue
		}
		if err := conn.write(ctx, resp, s.timeout()); err != nil {
			wsLogger.Debugf("tab %s write failed: %v", tab, err)
			return
		}
	}
}

// handle runs a single request of a tab and returns the direct reply, if any.
// Results of storeData, deleteData and switchData reach the tab through the
// broadcast, they are only acknowledged if the request carries an ID.
func (s *Server) handle(ctx context.Context, tab home.TabID, req *common.Message) *common.Message {
	svc := s.service

	switch req.Action {
	case common.MsgTLoadData:
		env, err := svc.LoadData(ctx, tab)
		if err != nil {
			return s.failed(tab, req, err)
		}
		return common.NewEnvelopeMessage(env, req.RequestID)

	case common.MsgTStoreData:
		data, err := req.ClientData()
		if err != nil {
			return s.failed(tab, req, fmt.Errorf("invalid data: %w", err))
		}
		if _, err := svc.StoreData(ctx, tab, data); err != nil {
			return s.failed(tab, req, err)
		}
		return done(req, true)

	case common.MsgTDeleteData:
		_, ok, err := svc.DeleteData(ctx, tab, req.Location)
		if err != nil {
			return s.failed(tab, req, err)
		}
		return done(req, ok)

	case common.MsgTSwitchData:
		if _, err := svc.SwitchData(ctx, tab, req.Location); err != nil {
			return s.failed(tab, req, err)
		}
		return done(req, true)

	default:
		return s.failed(tab, req, fmt.Errorf("unknown action %q", req.Action))
	}
}

func (s *Server) failed(tab home.TabID, req *common.Message, err error) *common.Message {
	Logger.Warningf("tab %s: %s failed: %v", tab, req.Action, err)
	return common.NewErrorResponse(req.RequestID, err)
}

func done(req *common.Message, ok bool) *common.Message {
	if req.RequestID == "" {
		return nil
	}
	return common.NewDoneResponse(req.RequestID, ok)
}

// closeTabs closes all tab connections, their read loops clean up the registry
func (s *Server) closeTabs() {
	s.conns.Range(func(tab home.TabID, conn *tabConn) bool {
		conn.mu.Lock()
		_ = conn.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(time.Second))
		conn.mu.Unlock()
		_ = conn.ws.Close()
		return true
	})
}

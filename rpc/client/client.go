package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/homekv/lib/home"
	"github.com/ValentinKolb/homekv/rpc/common"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// ErrClosed is returned for requests on a closed client
var ErrClosed = errors.New("tab client closed")

// envelopeBuffer is the number of broadcasts buffered for Envelopes
const envelopeBuffer = 64

// TabClient is one tab attached to a homekv server
type TabClient struct {
	config    common.ClientConfig
	ws        *websocket.Conn
	writeMu   sync.Mutex
	tabID     home.TabID
	pending   *xsync.MapOf[string, chan *common.Message]
	envelopes chan home.Envelope

	closeOnce sync.Once
	done      chan struct{}
	err       error
}

// Dial connects a new tab to the server at config.Endpoint.
// The endpoint may be host:port or a ws://, wss://, http:// or https:// URL.
// Failed dials are retried config.RetryCount times.
func Dial(ctx context.Context, config common.ClientConfig) (*TabClient, error) {
	target, err := tabsURL(config.Endpoint)
	if err != nil {
		return nil, err
	}

	var ws *websocket.Conn
	for attempt := 0; ; attempt++ {
		ws, _, err = websocket.DefaultDialer.DialContext(ctx, target, nil)
		if err == nil {
			break
		}
		if attempt >= config.RetryCount || ctx.Err() != nil {
			return nil, fmt.Errorf("dial %s: %w", target, err)
		}
		Logger.Warningf("dial %s failed (attempt %d/%d): %v", target, attempt+1, config.RetryCount+1, err)
		time.Sleep(retryBackoff(attempt))
	}

	c := &TabClient{
		config:    config,
		ws:        ws,
		pending:   xsync.NewMapOf[string, chan *common.Message](),
		envelopes: make(chan home.Envelope, envelopeBuffer),
		done:      make(chan struct{}),
	}

	// first message is the attach notice
	if d := c.timeout(); d > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(d))
	}
	var hello common.Message
	if err := ws.ReadJSON(&hello); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("read attach message: %w", err)
	}
	_ = ws.SetReadDeadline(time.Time{})
	if hello.Action != common.MsgTAttached {
		_ = ws.Close()
		if hello.Action == common.MsgTError {
			return nil, fmt.Errorf("attach rejected: %s", hello.Err)
		}
		return nil, fmt.Errorf("unexpected first message %q", hello.Action)
	}
	c.tabID = home.TabID(hello.TabID)

	go c.readLoop()

	Logger.Debugf("attached as tab %s", c.tabID)
	return c, nil
}

// --------------------------------------------------------------------------
// Requests
// --------------------------------------------------------------------------

// TabID returns the id the server assigned to this tab
func (c *TabClient) TabID() home.TabID {
	return c.tabID
}

// Envelopes returns the broadcasts pushed to this tab.
// The channel is closed when the connection ends.
func (c *TabClient) Envelopes() <-chan home.Envelope {
	return c.envelopes
}

// Load returns the data of the current root
func (c *TabClient) Load(ctx context.Context) (home.Envelope, error) {
	resp, err := c.roundTrip(ctx, common.NewLoadDataRequest(newRequestID()))
	if err != nil {
		return home.Envelope{}, err
	}
	return resp.Envelope()
}

// Store merges data into the data of the current root. data must encode to a JSON object.
func (c *TabClient) Store(ctx context.Context, data any) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode data: %w", err)
	}
	_, err = c.roundTrip(ctx, common.NewStoreDataRequest(newRequestID(), encoded))
	return err
}

// Delete removes the root at location, the current root if location is empty.
// It returns false if the server dropped the request.
func (c *TabClient) Delete(ctx context.Context, location string) (bool, error) {
	resp, err := c.roundTrip(ctx, common.NewDeleteDataRequest(newRequestID(), location))
	if err != nil {
		return false, err
	}
	return resp.Ok != nil && *resp.Ok, nil
}

// Switch makes the root at location the current root
func (c *TabClient) Switch(ctx context.Context, location string) error {
	_, err := c.roundTrip(ctx, common.NewSwitchDataRequest(newRequestID(), location))
	return err
}

// Close closes the connection
func (c *TabClient) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := c.ws.Close()
	<-c.done
	return err
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (c *TabClient) timeout() time.Duration {
	return time.Duration(c.config.TimeoutSecond) * time.Second
}

// roundTrip sends req and waits for the reply with the same request ID
func (c *TabClient) roundTrip(ctx context.Context, req *common.Message) (*common.Message, error) {
	if d := c.timeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	replyCh := make(chan *common.Message, 1)
	c.pending.Store(req.RequestID, replyCh)
	defer c.pending.Delete(req.RequestID)

	if err := c.write(ctx, req); err != nil {
		return nil, err
	}

	select {
	case resp := <-replyCh:
		if resp.Action == common.MsgTError {
			return nil, fmt.Errorf("%s: %s", req.Action, resp.Err)
		}
		return resp, nil
	case <-c.done:
		if c.err != nil {
			return nil, fmt.Errorf("%s: %w: %v", req.Action, ErrClosed, c.err)
		}
		return nil, fmt.Errorf("%s: %w", req.Action, ErrClosed)
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", req.Action, ctx.Err())
	}
}

func (c *TabClient) write(ctx context.Context, msg *common.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if d, ok := ctx.Deadline(); ok {
		_ = c.ws.SetWriteDeadline(d)
	} else {
		_ = c.ws.SetWriteDeadline(time.Time{})
	}
	if err := c.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Action, err)
	}
	return nil
}

// readLoop dispatches replies to their requests and broadcasts to Envelopes
func (c *TabClient) readLoop() {
	defer c.closeOnce.Do(func() {
		close(c.envelopes)
		close(c.done)
	})

	for {
		var msg common.Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.err = err
				Logger.Warningf("tab %s connection lost: %v", c.tabID, err)
			}
			return
		}

		if msg.RequestID != "" {
			if replyCh, ok := c.pending.LoadAndDelete(msg.RequestID); ok {
				replyCh <- &msg
			}
			continue
		}

		switch msg.Action {
		case common.MsgTLoadedData:
			env, err := msg.Envelope()
			if err != nil {
				Logger.Warningf("tab %s: %v", c.tabID, err)
				continue
			}
			select {
			case c.envelopes <- env:
			default:
				Logger.Warningf("tab %s: envelope buffer full, dropping broadcast", c.tabID)
			}
		case common.MsgTError:
			Logger.Warningf("tab %s: server error: %s", c.tabID, msg.Err)
		default:
			Logger.Debugf("tab %s: ignoring %q message", c.tabID, msg.Action)
		}
	}
}

// tabsURL builds the websocket URL of the /tabs endpoint
func tabsURL(endpoint string) (string, error) {
	if endpoint == "" {
		return "", errors.New("no endpoint provided")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "ws://" + endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/tabs"
	return u.String(), nil
}

func newRequestID() string {
	return uuid.NewString()
}

// retryBackoff returns the wait time before the next dial attempt
func retryBackoff(attempt int) time.Duration {
	if attempt > 4 {
		return 2 * time.Second
	}
	return 100 * time.Millisecond << attempt
}

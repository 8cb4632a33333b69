package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"detbench/internal/models"

	"github.com/gorilla/websocket"
)

type request struct {
	Op    string `json:"op"`
	Model string `json:"model,omitempty"`
	Data  string `json:"data,omitempty"`
	Name  string `json:"name,omitempty"`
}

type reply struct {
	Type       string                   `json:"type"`
	Text       string                   `json:"text,omitempty"`
	Message    string                   `json:"message,omitempty"`
	Metrics    map[string]any           `json:"metrics,omitempty"`
	Detections []models.DetectionResult `json:"detections,omitempty"`
}

const (
	replyLoaded     = "loaded"
	replyLog        = "log"
	replyMetrics    = "metrics"
	replyDetections = "detections"
	replyError      = "error"
)

// RemoteLoader loads models on a detection server reached over a websocket.
// Each loaded model owns its own connection.
type RemoteLoader struct {
	serverURL      string
	dialTimeout    time.Duration
	requestTimeout time.Duration
	dialer         *websocket.Dialer
	logger         *slog.Logger
}

func NewRemoteLoader(host string, dialTimeout, requestTimeout time.Duration, logger *slog.Logger) *RemoteLoader {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}

	return &RemoteLoader{
		serverURL:      u.String(),
		dialTimeout:    dialTimeout,
		requestTimeout: requestTimeout,
		dialer:         websocket.DefaultDialer,
		logger:         logger,
	}
}

func (l *RemoteLoader) Load(ctx context.Context, modelPath string) (Model, error) {
	dialCtx := ctx
	if l.dialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, l.dialTimeout)
		defer cancel()
	}

	l.logger.Debug("connecting to detection server", "url", l.serverURL)
	conn, _, err := l.dialer.DialContext(dialCtx, l.serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", l.serverURL, err)
	}

	m := &RemoteModel{
		conn:           conn,
		requestTimeout: l.requestTimeout,
		logger:         l.logger.With("model", modelPath),
	}

	if _, err := m.call(ctx, request{Op: "load", Model: modelPath}, nil, replyLoaded); err != nil {
		conn.Close()
		return nil, fmt.Errorf("loading model %s: %w", modelPath, err)
	}

	m.logger.Info("model loaded")
	return m, nil
}

// RemoteModel is a model held open on the detection server. Calls are
// serialized over the single connection.
type RemoteModel struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	requestTimeout time.Duration
	logger         *slog.Logger
}

func (m *RemoteModel) Evaluate(ctx context.Context, datasetSpec string, out io.Writer) (models.Metrics, error) {
	r, err := m.call(ctx, request{Op: "val", Data: datasetSpec}, func(r reply) {
		if r.Type == replyLog {
			if _, err := io.WriteString(out, r.Text); err != nil {
				m.logger.Warn("dropping validation log text", "error", err)
			}
		}
	}, replyMetrics)
	if err != nil {
		return models.Metrics{}, err
	}

	return DecodeMetrics(r.Metrics)
}

func (m *RemoteModel) Infer(ctx context.Context, imagePath string) ([]models.DetectionResult, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, err
	}

	r, err := m.call(ctx, request{Op: "infer", Name: filepath.Base(imagePath)}, nil, replyDetections, data)
	if err != nil {
		return nil, err
	}
	return r.Detections, nil
}

func (m *RemoteModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = m.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return m.conn.Close()
}

// call sends req, then any binary payloads, and reads replies until one of
// type want arrives. Intermediate replies are handed to onReply.
func (m *RemoteModel) call(ctx context.Context, req request, onReply func(reply), want string, payloads ...[]byte) (reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return reply{}, ErrNotConnected
	}

	if m.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.requestTimeout)
		defer cancel()
	}

	if deadline, ok := ctx.Deadline(); ok {
		m.conn.SetWriteDeadline(deadline)
		m.conn.SetReadDeadline(deadline)
		defer func() {
			m.conn.SetWriteDeadline(time.Time{})
			m.conn.SetReadDeadline(time.Time{})
		}()
	}

	// unblock a pending read if the caller gives up
	stop := context.AfterFunc(ctx, func() {
		m.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := m.conn.WriteJSON(req); err != nil {
		return reply{}, fmt.Errorf("sending %s request: %w", req.Op, err)
	}
	for _, p := range payloads {
		if err := m.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
			return reply{}, fmt.Errorf("sending %s payload: %w", req.Op, err)
		}
	}

	for {
		var r reply
		if err := m.conn.ReadJSON(&r); err != nil {
			if ctx.Err() != nil {
				return reply{}, fmt.Errorf("%s request: %w", req.Op, ctx.Err())
			}
			return reply{}, fmt.Errorf("reading %s reply: %w", req.Op, err)
		}

		switch r.Type {
		case want:
			return r, nil
		case replyError:
			return reply{}, fmt.Errorf("%w: %s", ErrRemote, r.Message)
		default:
			if onReply != nil {
				onReply(r)
			} else {
				m.logger.Debug("ignoring reply", "op", req.Op, "type", r.Type)
			}
		}
	}
}

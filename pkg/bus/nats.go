package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/vanderheijden86/impactview/pkg/model"
)

// SubjectPrefix is prepended to the session id to form the mirror subject.
const SubjectPrefix = "impactview.panel."

// Subject returns the NATS subject panel emissions for sessionID use.
func Subject(sessionID string) string {
	if sessionID == "" {
		sessionID = "anonymous"
	}
	return SubjectPrefix + sessionID
}

// Mirror republishes panel emissions on NATS and can follow another
// session's emissions into a local cell.
type Mirror struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewMirror connects to the NATS server at url with automatic reconnection.
func NewMirror(url string, logger *slog.Logger, opts ...nats.Option) (*Mirror, error) {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := []nats.Option{
		nats.Name("impactview"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &Mirror{conn: nc, logger: logger}, nil
}

// Publish sends one panel payload on the session's subject.
func (m *Mirror) Publish(sessionID string, data model.PanelData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling panel: %w", err)
	}
	return m.conn.Publish(Subject(sessionID), payload)
}

// Attach mirrors every emission on cell to NATS. Publish failures are
// logged and never reach the cell's publisher.
func (m *Mirror) Attach(cell *Cell[model.PanelData], sessionID func() string) {
	cell.OnPublish(func(u Update[model.PanelData]) {
		id := sessionID()
		if err := m.Publish(id, u.Value); err != nil {
			m.logger.Warn("mirroring panel", "subject", Subject(id), "seq", u.Seq, "err", err)
		}
	})
}

// Follow subscribes to sessionID's subject and republishes every decoded
// payload into cell until ctx is done.
func (m *Mirror) Follow(ctx context.Context, sessionID string, cell *Cell[model.PanelData]) error {
	subject := Subject(sessionID)
	sub, err := m.conn.Subscribe(subject, func(msg *nats.Msg) {
		var data model.PanelData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			m.logger.Warn("dropping malformed panel message", "subject", msg.Subject, "err", err)
			return
		}
		cell.Publish(data)
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	if err := m.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("flushing subscription: %w", err)
	}
	m.logger.Debug("following panel", "subject", subject)

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return nil
}

// Flush waits until the server has processed all buffered messages.
func (m *Mirror) Flush() error {
	return m.conn.Flush()
}

// Close drains and closes the connection.
func (m *Mirror) Close() error {
	m.conn.Close()
	return nil
}

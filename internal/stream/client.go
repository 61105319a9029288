package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/kinematics1d/internal/metrics"
)

// writeTimeout bounds each individual write on a long-lived stream.
const writeTimeout = 30 * time.Second

// client manages a single SSE connection's write operations.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	logger  *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// extendDeadline pushes the write deadline forward before each write.
func (c *client) extendDeadline() {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
}

// write sends raw bytes, flushes, and accounts for them.
func (c *client) write(msg string) (int, error) {
	c.extendDeadline()
	n, err := fmt.Fprint(c.w, msg)
	if err != nil {
		return n, err
	}
	c.flusher.Flush()
	c.bytesSent += int64(n)
	metrics.AddStreamBytes(int64(n))
	return n, nil
}

// sendJSON marshals v as JSON and sends it as an SSE "data:" message.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if _, err := c.write(fmt.Sprintf("data: %s\n\n", data)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.messagesSent++
	metrics.IncStreamMessages()
	return nil
}

// sendRetry tells the browser how long to wait before reconnecting.
func (c *client) sendRetry(ms int) error {
	if _, err := c.write(fmt.Sprintf("retry: %d\n\n", ms)); err != nil {
		return fmt.Errorf("retry write: %w", err)
	}
	return nil
}

// sendKeepalive sends an SSE comment line to keep the connection alive.
func (c *client) sendKeepalive() error {
	if _, err := c.write(":\n\n"); err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	return nil
}

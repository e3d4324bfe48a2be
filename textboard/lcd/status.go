// Package lcd shows controller status on an HD44780 character LCD.
//
// Messages are queued on a channel and drawn by a single goroutine so the
// request path never waits on the I2C bus:
//
//	messages := make(chan lcd.Message, 4)
//	go lcd.NewHandler(&dev, messages, logger).Run()
//	lcd.Send(messages, "10.0.0.42:8000", "POST /receive 200")
package lcd

import (
	"log/slog"
	"strconv"
)

// Device is the subset of hd44780i2c.Device used by Handler.
type Device interface {
	ClearDisplay()
	SetCursor(col, row uint8)
	Print(data []byte)
}

// Message represents a two-line LCD message.
type Message struct {
	Line1 []byte
	Line2 []byte
}

// Send queues a message without blocking. The message is dropped if the
// queue is full.
func Send(messages chan<- Message, line1, line2 string) bool {
	select {
	case messages <- Message{Line1: []byte(line1), Line2: []byte(line2)}:
		return true
	default:
		return false
	}
}

// RequestLine formats a request outcome to fit one 16 column row, for
// example "POST /receive 200".
func RequestLine(method, path string, status int) string {
	b := make([]byte, 0, 24)
	b = append(b, method...)
	b = append(b, ' ')
	b = append(b, path...)
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(status), 10)
	return string(b)
}

// Handler draws messages from a channel onto the LCD.
type Handler struct {
	device   Device
	messages <-chan Message
	logger   *slog.Logger
	rows     int
	columns  int
}

// NewHandler creates a new 16x2 LCD message handler.
func NewHandler(device Device, messages <-chan Message, logger *slog.Logger) *Handler {
	return &Handler{
		device:   device,
		messages: messages,
		logger:   logger,
		rows:     2,
		columns:  16,
	}
}

// Run draws messages until the channel is closed. Run should be called in
// a separate goroutine.
func (h *Handler) Run() {
	for msg := range h.messages {
		h.display(msg)
	}
	h.logger.Debug("lcd:stopped")
}

// display replaces the LCD contents with msg, cutting lines to the LCD width.
func (h *Handler) display(msg Message) {
	h.device.ClearDisplay()
	for row, line := range [2][]byte{msg.Line1, msg.Line2} {
		if row >= h.rows {
			break
		}
		if len(line) > h.columns {
			line = line[:h.columns]
		}
		h.device.SetCursor(0, uint8(row))
		h.device.Print(line)
	}
}

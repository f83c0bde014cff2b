package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vbonduro/eatinformed/internal/gateway"
)

// wsReadTimeout bounds the wait for the client's image message.
const wsReadTimeout = 60 * time.Second

// wsWriteTimeout bounds each message write.
const wsWriteTimeout = 10 * time.Second

// upgrader keeps gorilla's default same-origin check.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsMessage is one server-to-client message. Type is a scan stage name or
// "error".
type wsMessage struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// handleScanSocket upgrades to a WebSocket, reads one binary message holding
// the label photo and streams every scan stage back as a JSON message before
// closing the connection.
func (s *Server) handleScanSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer closeWithLog(conn, "websocket", s.logger)

	conn.SetReadLimit(s.opts.MaxImageBytes)
	if err := conn.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
		s.logger.Error("set websocket read deadline failed", "error", err)
		return
	}

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		if errors.Is(err, websocket.ErrReadLimit) {
			s.sendSocket(conn, wsMessage{Type: "error", Message: errImageTooLarge.msg})
		} else {
			s.logger.Warn("websocket read failed", "error", err)
		}
		return
	}
	if msgType != websocket.BinaryMessage {
		s.sendSocket(conn, wsMessage{Type: "error", Message: "send the image as a binary message"})
		s.closeSocket(conn, websocket.CloseUnsupportedData)
		return
	}
	if len(data) == 0 {
		s.sendSocket(conn, wsMessage{Type: "error", Message: errNoImage.msg})
		s.closeSocket(conn, websocket.CloseUnsupportedData)
		return
	}
	mimeType, ok := allowedImageMIME(data)
	if !ok {
		s.sendSocket(conn, wsMessage{Type: "error", Message: errBadImageType.msg})
		s.closeSocket(conn, websocket.CloseUnsupportedData)
		return
	}

	s.logger.Info("scan requested", "user_id", userID(r), "transport", "websocket", "mime_type", mimeType, "bytes", len(data))
	img := &gateway.Image{Data: data, MIMEType: mimeType}
	for ev := range s.scans.ScanStream(context.WithoutCancel(r.Context()), img) {
		s.sendSocket(conn, wsMessage{Type: string(ev.Stage), Data: ev})
	}
	s.closeSocket(conn, websocket.CloseNormalClosure)
}

func (s *Server) sendSocket(conn *websocket.Conn, msg wsMessage) {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		s.logger.Error("set websocket write deadline failed", "error", err)
		return
	}
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("websocket write failed", "type", msg.Type, "error", err)
	}
}

func (s *Server) closeSocket(conn *websocket.Conn, code int) {
	deadline := time.Now().Add(wsWriteTimeout)
	if err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline); err != nil {
		s.logger.Debug("websocket close frame failed", "error", err)
	}
}

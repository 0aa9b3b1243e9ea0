package pbtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/pbkit/logger"
)

// ConnectEvent is the name of the first event on every stream.
const ConnectEvent = "PB_CONNECT"

// serveStream registers a new client and streams its events until the
// request ends or the hub drops it.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.log.Error("Streaming not supported")
		writeError(w, http.StatusInternalServerError, "Streaming not supported.")
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.log.Debug("Could not disable write deadline", logger.Fields(logger.FieldError, err.Error()))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id := uuid.NewString()
	client := s.hub.register(id)
	defer s.hub.unregister(client)

	data, _ := json.Marshal(map[string]string{"clientId": id})
	writeFrame(w, frame{id: id, event: ConnectEvent, data: data})
	flusher.Flush()

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("Stream closed by client", logger.Fields(logger.FieldClientID, id))
			return
		case f, ok := <-client.events:
			if !ok {
				s.log.Debug("Stream dropped", logger.Fields(logger.FieldClientID, id))
				return
			}
			writeFrame(w, f)
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, f frame) {
	if f.id != "" {
		_, _ = fmt.Fprintf(w, "id:%s\n", f.id)
	}
	_, _ = fmt.Fprintf(w, "event:%s\n", f.event)
	_, _ = fmt.Fprintf(w, "data:%s\n\n", f.data)
}

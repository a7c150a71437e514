package server

import (
	"github.com/tecpap/lineplan/engine"
	"github.com/tecpap/lineplan/runner"
)

// wsFrame is one push message to a client.
type wsFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

var _ runner.Broadcaster = (*Server)(nil)

// BroadcastState queues a state frame for every client. Frames beyond
// the rate cap are dropped; the runner emits another one on the next
// tick so clients never fall far behind.
func (s *Server) BroadcastState(st runner.State) {
	if !s.stateLimiter.Allow() {
		return
	}
	s.queueBroadcast(wsFrame{Type: "state", Data: st})
}

// BroadcastReport queues an hourly report frame for every client.
// Reports are not rate limited; each one is distinct.
func (s *Server) BroadcastReport(rep engine.HourlyReport) {
	s.queueBroadcast(wsFrame{Type: "report", Data: rep})
}

// queueBroadcast hands a frame to the hub without blocking the
// caller. The hub owns all client channel sends, so frames and client
// teardown cannot race.
func (s *Server) queueBroadcast(frame wsFrame) {
	select {
	case s.broadcast <- frame:
	case <-s.ctx.Done():
	default:
		s.broadcastDrops.Add(1)
		s.logger.Warnw("Broadcast queue full, dropping frame", "type", frame.Type)
	}
}

// fanoutFrame delivers a frame to each connected client. Only the hub
// goroutine calls this. A client whose queue is full misses the frame
// and the drop is counted.
func (s *Server) fanoutFrame(frame wsFrame) {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- frame:
		default:
			s.broadcastDrops.Add(1)
			s.logger.Debugw("Client send queue full, dropping frame",
				"client_id", client.id,
				"type", frame.Type,
			)
		}
	}
}

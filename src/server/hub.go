package server

import (
	"net/http"

	"trading-monitor/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// runHub is the main Hub loop. All client map mutations happen here so the
// push loop and HTTP handlers never touch the map directly.
func (s *Server) runHub() {
	for {
		select {
		case <-s.shutdown:
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.clientCount.Store(0)
			s.Logger.Info("Hub stopped, all clients disconnected")

			// Drain phase: pumps of just-closed clients still deliver
			// their deferred unregister, and a racing upgrade may still
			// register. Accept both so nothing blocks.
			for {
				select {
				case <-s.unregister:
				case client := <-s.register:
					close(client.send)
				}
			}

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.clientCount.Store(int64(len(s.clients)))
			s.Logger.Info("Client %s connected (%d active)", client.id, len(s.clients))

			// Send full state on connect so the dashboard renders immediately
			snap := s.Fetcher.FullSnapshot()
			select {
			case client.send <- models.MWSMessage{Type: "snapshot", Data: snap}:
			default:
			}

		case client := <-s.unregister:
			if _, exists := s.clients[client]; exists {
				delete(s.clients, client)
				close(client.send)
				s.clientCount.Store(int64(len(s.clients)))
			}

		case message := <-s.broadcast:
			// Collect clients whose buffers are full, remove them only
			// after the delivery loop so one bad consumer never costs
			// the others their update.
			var stalled []*Client
			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					stalled = append(stalled, client)
				}
			}
			for _, client := range stalled {
				s.Logger.Warning("Dropping slow client %s", client.id)
				delete(s.clients, client)
				close(client.send)
			}
			if len(stalled) > 0 {
				s.clientCount.Store(int64(len(s.clients)))
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues a typed message for every connected client.
func (s *Server) Broadcast(kind string, data interface{}) {
	if s.clientCount.Load() == 0 {
		return
	}

	message := models.MWSMessage{Type: kind, Data: data}

	// Non-blocking send; the queue is large enough that hitting the
	// default means the hub itself is wedged.
	select {
	case s.broadcast <- message:
	default:
		s.Logger.Warning("Broadcast queue full, dropping %s update", kind)
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(s, conn)

	s.register <- client

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// handleClientMessage services the two text commands the dashboard sends:
// "refresh" re-sends the full snapshot, "ping" gets a pong. Anything else
// is ignored rather than treated as a protocol violation.
func (s *Server) handleClientMessage(client *Client, message []byte) {
	switch string(message) {
	case "refresh":
		snap := s.Fetcher.FullSnapshot()
		select {
		case client.send <- models.MWSMessage{Type: "snapshot", Data: snap}:
		default:
		}

	case "ping":
		select {
		case client.send <- models.MWSMessage{Type: "pong"}:
		default:
		}
	}
}

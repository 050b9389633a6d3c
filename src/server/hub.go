package server

import (
	"encoding/json"
	"net/http"

	"quote-proxy/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *QuoteServer) handleWebsockets() {
	for {
		select {
		case <-s.done:
			s.stateMutex.Lock()
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.stateMutex.Unlock()
			return

		case client := <-s.register:
			s.stateMutex.Lock()
			s.clients[client] = struct{}{}
			s.stateMutex.Unlock()

		case client := <-s.unregister:
			s.stateMutex.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			s.stateMutex.Unlock()

		case event := <-s.broadcast:
			s.stateMutex.Lock()
			s.latest[event.Symbol] = event

			for client := range s.clients {
				if !client.wants(event.Symbol) {
					continue
				}
				select {
				case client.send <- event:
					// Message sent successfully
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(s.clients, client)
					close(client.send)
				}
			}
			s.stateMutex.Unlock()
		}
	}
}

// -----------------------------------------------------------------------------
// Publisher Implementation
// -----------------------------------------------------------------------------

// Publish queues event for subscribed clients. A full queue drops the event
// rather than stall the quote path.
func (s *QuoteServer) Publish(event models.MQuoteEvent) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.broadcast <- event:
	default:
		s.Logger.Warning("Broadcast queue full, dropping %s event for %s", event.Type, event.Symbol)
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

func (s *QuoteServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(s, conn)

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *QuoteServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	switch cmd.Command {
	case "subscribe":
		client.subscribe(cmd.Symbols)
	case "unsubscribe":
		client.unsubscribe(cmd.Symbols)
		return
	default:
		return
	}

	response := s.snapshot(cmd.Symbols)

	// Client's send may be closed by the hub concurrently, so hand the
	// snapshot over while holding the state lock.
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	if _, ok := s.clients[client]; !ok {
		return
	}
	select {
	case client.send <- response:
	default:
		s.Logger.Warning("Client send buffer full, snapshot dropped")
	}
}

// -----------------------------------------------------------------------------
// Response Filtering
// -----------------------------------------------------------------------------

// snapshot returns the latest event of each symbol, all symbols when empty.
func (s *QuoteServer) snapshot(symbols []string) models.MSnapshot {
	filtered := make(map[string]models.MQuoteEvent)

	if len(symbols) == 0 {
		s.stateMutex.RLock()
		for sym, event := range s.latest {
			filtered[sym] = event
		}
		s.stateMutex.RUnlock()
	}
	for _, sym := range symbols {
		if event, ok := s.Latest(sym); ok {
			filtered[sym] = event
		}
	}

	return models.MSnapshot{
		Type:   models.EventTypeInitial,
		Quotes: filtered,
	}
}

// -----------------------------------------------------------------------------

// Latest returns the last event seen for symbol.
func (s *QuoteServer) Latest(symbol string) (models.MQuoteEvent, bool) {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	event, ok := s.latest[symbol]
	return event, ok
}

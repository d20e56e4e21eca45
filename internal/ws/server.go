package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"TradingPlatform/internal/bus"
	"TradingPlatform/internal/domain/models"
	"TradingPlatform/internal/domain/models/transport"

	"github.com/gorilla/websocket"
)

const closeWriteWait = 5 * time.Second

type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Server upgrades inbound connections, authenticates them and fans order
// events out to the owner's registered connections.
type Server struct {
	log      *slog.Logger
	verifier TokenVerifier
	registry *Registry
	upgrader websocket.Upgrader
}

func NewServer(log *slog.Logger, verifier TokenVerifier, registry *Registry) *Server {
	return &Server{
		log:      log,
		verifier: verifier,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run subscribes the server to the order event channel.
func (s *Server) Run(ctx context.Context, b bus.Bus) error {
	return b.Subscribe(ctx, bus.ChannelOrderStatus, s.HandleOrderEvent)
}

// ServeHTTP is the connection handshake: extract the bearer token, verify
// it, register the connection and acknowledge. Unauthenticated connections
// are closed with a policy-violation code and never registered.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("upgrade failed", "err", err)
		return
	}

	token := bearerToken(r)
	if token == "" {
		s.log.Info("connection without token refused")
		closePolicyViolation(conn, "Authentication required")
		return
	}

	userId, err := s.verifier.Verify(token)
	if err != nil {
		s.log.Info("connection with invalid token refused", "err", err)
		closePolicyViolation(conn, "Invalid token")
		return
	}

	client := newClient(conn)
	s.registry.Register(userId, client)
	s.log.Info("client connected", "user_id", userId, "connections", s.registry.Count(userId))

	if err := client.Send(transport.WebSocketMessage{Type: transport.MessageConnected}); err != nil {
		s.log.Error("failed to send ack", "user_id", userId, "err", err)
	}

	// Single control point: any read error, including a clean close,
	// deregisters the connection.
	go func() {
		defer func() {
			s.registry.Deregister(userId, client)
			client.Close()
			s.log.Info("client disconnected", "user_id", userId)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// HandleOrderEvent multiplexes one order event to every live connection of
// its user. No connections means silent drop; a failed send to one
// connection never blocks delivery to the rest.
func (s *Server) HandleOrderEvent(data []byte) {
	var ev models.OrderEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.log.Error("invalid order event", "err", err)
		return
	}

	clients := s.registry.Connections(ev.UserId)
	if len(clients) == 0 {
		return
	}

	msg := transport.WebSocketMessage{
		Type: transport.MessageOrderUpdate,
		Data: transport.OrderUpdate{
			OrderId:   ev.OrderId,
			Status:    ev.Status,
			Symbol:    ev.Symbol,
			Side:      ev.Side,
			Quantity:  ev.Quantity,
			Price:     ev.Price,
			Timestamp: ev.Timestamp,
		},
	}
	for _, client := range clients {
		if err := client.Send(msg); err != nil {
			s.log.Error("failed to send order update", "user_id", ev.UserId, "err", err)
		}
	}

	s.log.Debug("order update broadcast", "order_id", ev.OrderId, "user_id", ev.UserId, "connections", len(clients))
}

func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if _, token, ok := strings.Cut(header, " "); ok {
		return token
	}
	return ""
}

func closePolicyViolation(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
	_ = conn.Close()
}

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type Subscriber interface {
	Subscribe(topic string) (<-chan any, func())
}

type Config struct {
	Addr string
	// Topics del bus que se retransmiten a los clientes.
	Topics []string
	Bus    Subscriber
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	Logger  zerolog.Logger
}

// Server expone /ws/events, que retransmite cada evento del bus como JSON,
// junto con /metrics y /healthz.
type Server struct {
	addr     string
	topics   []string
	bus      Subscriber
	metrics  http.Handler
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// Envelope is the frame sent to feed clients.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(v)
}

func NewServer(cfg Config) *Server {
	return &Server{
		addr:    cfg.Addr,
		topics:  cfg.Topics,
		bus:     cfg.Bus,
		metrics: cfg.Metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log:     cfg.Logger.With().Str("component", "ws").Logger(),
		clients: make(map[*wsClient]struct{}),
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/events", func(w http.ResponseWriter, r *http.Request) {
		s.handleWS(ctx, w, r)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "clients": s.ClientCount()})
	})
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// Start levanta el HTTP server y se bloquea hasta que el contexto se cancela.
func (s *Server) Start(ctx context.Context) error {
	s.forward(ctx)

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("ws: shutdown error")
		}
		s.closeClients()
	}()

	s.log.Info().Str("addr", s.addr).Msg("ws: escuchando")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// forward subscribes to every topic and relays its events to the clients
// until ctx is cancelled. Subscriptions are in place when it returns.
func (s *Server) forward(ctx context.Context) {
	if s.bus == nil {
		return
	}

	for _, topic := range s.topics {
		ch, unsubscribe := s.bus.Subscribe(topic)
		go func(topic string) {
			defer unsubscribe()
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-ch:
					if !ok {
						return
					}
					if err := s.Broadcast(ctx, Envelope{Type: topic, Data: payload}); err != nil {
						s.log.Warn().Err(err).Str("topic", topic).Msg("ws: broadcast error")
					}
				}
			}
		}(topic)
	}
}

func (s *Server) handleWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("ws: upgrade error")
		return
	}

	client := &wsClient{conn: conn}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	clientCount := len(s.clients)
	s.mu.Unlock()

	s.log.Info().Str("remote", r.RemoteAddr).Int("clients", clientCount).Msg("ws: nueva conexión")

	go s.handleClient(ctx, client)
}

// handleClient descarta lo que envía el cliente; sólo detecta el cierre.
func (s *Server) handleClient(ctx context.Context, client *wsClient) {
	defer s.removeClient(client)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, _, err := client.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("ws: read error")
			}
			return
		}
	}
}

func (s *Server) removeClient(client *wsClient) {
	s.mu.Lock()
	_, ok := s.clients[client]
	delete(s.clients, client)
	clientCount := len(s.clients)
	s.mu.Unlock()

	if ok {
		client.conn.Close()
		s.log.Info().Int("clients", clientCount).Msg("ws: conexión cerrada")
	}
}

func (s *Server) closeClients() {
	s.mu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		s.removeClient(c)
	}
}

func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast envía el payload a cada cliente WS, descartando los que fallan.
func (s *Server) Broadcast(ctx context.Context, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.mu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.writeJSON(json.RawMessage(payload)); err != nil {
			s.log.Warn().Err(err).Msg("ws: removing client due to write error")
			s.removeClient(c)
		}
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

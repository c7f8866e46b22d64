// Package socket is the websocket gateway: it assigns connection ids, turns
// client frames into requests with acks, and fans room events out to the
// connections subscribed to each room.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/beka-birhanu/vinom-swarm/logger"
	"github.com/beka-birhanu/vinom-swarm/service/i"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ClientRequestHandler is called for every client frame. The returned value
// is sent back as the ack data.
type ClientRequestHandler func(ctx context.Context, connID string, intent string, data json.RawMessage) any

// ClientRegisterHandler is called once a connection has been assigned its id.
type ClientRegisterHandler func(connID string)

// ClientDisconnectHandler is called after a connection went away.
type ClientDisconnectHandler func(connID string)

type ServerOption func(*ServerSocketManager)

var ErrServerStopped = errors.New("socket server stopped")

const (
	defaultReadLimit    int64 = 4096
	defaultSendBuffer         = 256
	defaultPongWait           = 60 * time.Second
	defaultWriteWait          = 10 * time.Second
	defaultRequestLimit       = 5 * time.Second
)

// Client is one websocket connection.
type Client struct {
	ID string // server-assigned connection id

	conn   *websocket.Conn
	send   chan []byte // outbound frames drained by writePump
	closed bool

	sync.Mutex
}

// enqueue hands msg to the writer without blocking. It reports false when
// the client is gone or too slow to keep up.
func (c *Client) enqueue(msg []byte) bool {
	c.Lock()
	defer c.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.Lock()
	defer c.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ServerSocketManager upgrades HTTP requests to websockets and tracks which
// connections listen to which room.
type ServerSocketManager struct {
	upgrader     websocket.Upgrader
	readLimit    int64         // maximum inbound frame size in bytes
	sendBuffer   int           // outbound frames queued per client before drops
	pongWait     time.Duration // read deadline renewed by every pong
	pingInterval time.Duration // must be shorter than pongWait
	writeWait    time.Duration // deadline of a single write
	requestLimit time.Duration // deadline of the context given to the request handler

	onClientRequest    ClientRequestHandler
	onClientRegister   ClientRegisterHandler
	onClientDisconnect ClientDisconnectHandler

	clients     map[string]*Client            // connections indexed by id
	rooms       map[string]map[string]*Client // room code -> subscribers
	clientsLock sync.RWMutex
	stopped     bool

	logger i.Logger
	wg     sync.WaitGroup
}

// NewServerSocketManager creates a ServerSocketManager with the given options.
func NewServerSocketManager(options ...ServerOption) (*ServerSocketManager, error) {
	s := &ServerSocketManager{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}

	for _, opt := range options {
		opt(s)
	}

	if s.readLimit <= 0 {
		s.readLimit = defaultReadLimit
	}
	if s.sendBuffer <= 0 {
		s.sendBuffer = defaultSendBuffer
	}
	if s.pongWait <= 0 {
		s.pongWait = defaultPongWait
	}
	if s.pingInterval <= 0 || s.pingInterval >= s.pongWait {
		s.pingInterval = s.pongWait * 9 / 10
	}
	if s.writeWait <= 0 {
		s.writeWait = defaultWriteWait
	}
	if s.requestLimit <= 0 {
		s.requestLimit = defaultRequestLimit
	}

	if s.logger == nil {
		// Discard logging if no logger is set
		l, err := logger.New("SOCKET", "", io.Discard)
		if err != nil {
			return nil, err
		}
		s.logger = l
	}

	return s, nil
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *ServerSocketManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.clientsLock.RLock()
	stopped := s.stopped
	s.clientsLock.RUnlock()
	if stopped {
		http.Error(w, ErrServerStopped.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error(fmt.Sprintf("upgrading websocket: %s", err))
		return
	}

	c := &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, s.sendBuffer),
	}
	if !s.register(c) {
		_ = conn.Close()
		return
	}

	s.sendTo(c, envelope{Type: ConnectedType, Data: connected{ConnectionID: c.ID}})
	if s.onClientRegister != nil {
		s.onClientRegister(c.ID)
	}

	go s.writePump(c)
	go s.readPump(c)
	s.logger.Info(fmt.Sprintf("client %s connected from %s", c.ID, r.RemoteAddr))
}

func (s *ServerSocketManager) register(c *Client) bool {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()
	if s.stopped {
		return false
	}
	s.clients[c.ID] = c
	s.wg.Add(2) // readPump and writePump
	return true
}

func (s *ServerSocketManager) unregister(c *Client) {
	s.clientsLock.Lock()
	delete(s.clients, c.ID)
	for code, subs := range s.rooms {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(s.rooms, code)
		}
	}
	s.clientsLock.Unlock()

	c.close()
}

// Subscribe adds the connection to the room's audience.
func (s *ServerSocketManager) Subscribe(roomCode string, connID string) {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()

	c, ok := s.clients[connID]
	if !ok {
		return
	}
	if s.rooms[roomCode] == nil {
		s.rooms[roomCode] = make(map[string]*Client)
	}
	s.rooms[roomCode][connID] = c
}

// Unsubscribe removes the connection from the room's audience.
func (s *ServerSocketManager) Unsubscribe(roomCode string, connID string) {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()

	subs, ok := s.rooms[roomCode]
	if !ok {
		return
	}
	delete(subs, connID)
	if len(subs) == 0 {
		delete(s.rooms, roomCode)
	}
}

// Broadcast queues msg for every subscriber of the room. Slow clients miss
// the frame instead of stalling the others.
func (s *ServerSocketManager) Broadcast(roomCode string, msg []byte) {
	s.clientsLock.RLock()
	defer s.clientsLock.RUnlock()

	for id, c := range s.rooms[roomCode] {
		if !c.enqueue(msg) {
			s.logger.Warning(fmt.Sprintf("dropping frame for client %s in room %s", id, roomCode))
		}
	}
}

// Subscribers returns the number of connections listening to the room.
func (s *ServerSocketManager) Subscribers(roomCode string) int {
	s.clientsLock.RLock()
	defer s.clientsLock.RUnlock()
	return len(s.rooms[roomCode])
}

// Stop closes every connection and waits for their goroutines to exit.
func (s *ServerSocketManager) Stop() {
	s.clientsLock.Lock()
	s.stopped = true
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsLock.Unlock()

	for _, c := range clients {
		c.close()
	}
	s.wg.Wait()
	s.logger.Info("socket server stopped")
}

func (s *ServerSocketManager) sendTo(c *Client, e envelope) {
	msg, err := json.Marshal(e)
	if err != nil {
		s.logger.Error(fmt.Sprintf("encoding %s for client %s: %s", e.Type, c.ID, err))
		return
	}
	if !c.enqueue(msg) {
		s.logger.Warning(fmt.Sprintf("dropping %s for client %s", e.Type, c.ID))
	}
}

func (s *ServerSocketManager) readPump(c *Client) {
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
		if s.onClientDisconnect != nil {
			s.onClientDisconnect(c.ID)
		}
		s.logger.Info(fmt.Sprintf("client %s disconnected", c.ID))
		s.wg.Done()
	}()

	c.conn.SetReadLimit(s.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warning(fmt.Sprintf("reading from client %s: %s", c.ID, err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.handleFrame(c, payload)
	}
}

func (s *ServerSocketManager) handleFrame(c *Client, payload []byte) {
	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		// An empty intent is answered by the handler as bad input.
		req = request{}
	}

	var ack any
	if s.onClientRequest != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.requestLimit)
		ack = s.onClientRequest(ctx, c.ID, req.Type, req.Data)
		cancel()
	}
	s.sendTo(c, envelope{Type: AckType, ID: req.ID, Data: ack})
}

func (s *ServerSocketManager) writePump(c *Client) {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		s.wg.Done()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Warning(fmt.Sprintf("writing to client %s: %s", c.ID, err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServerWithClientRequestHandler sets the handler answering client frames.
func ServerWithClientRequestHandler(f ClientRequestHandler) ServerOption {
	return func(s *ServerSocketManager) {
		s.onClientRequest = f
	}
}

// ServerWithClientRegisterHandler sets a callback run when a client connects.
func ServerWithClientRegisterHandler(f ClientRegisterHandler) ServerOption {
	return func(s *ServerSocketManager) {
		s.onClientRegister = f
	}
}

// ServerWithClientDisconnectHandler sets a callback run when a client goes away.
func ServerWithClientDisconnectHandler(f ClientDisconnectHandler) ServerOption {
	return func(s *ServerSocketManager) {
		s.onClientDisconnect = f
	}
}

// ServerWithReadLimit sets the maximum inbound frame size.
func ServerWithReadLimit(n int64) ServerOption {
	return func(s *ServerSocketManager) {
		s.readLimit = n
	}
}

// ServerWithSendBuffer sets the per-client outbound queue length.
func ServerWithSendBuffer(n int) ServerOption {
	return func(s *ServerSocketManager) {
		s.sendBuffer = n
	}
}

// ServerWithPongWait sets how long a silent client is kept.
func ServerWithPongWait(d time.Duration) ServerOption {
	return func(s *ServerSocketManager) {
		s.pongWait = d
	}
}

// ServerWithPingInterval sets the keepalive ping period.
func ServerWithPingInterval(d time.Duration) ServerOption {
	return func(s *ServerSocketManager) {
		s.pingInterval = d
	}
}

// ServerWithLogger sets the logger
func ServerWithLogger(l i.Logger) ServerOption {
	return func(s *ServerSocketManager) {
		s.logger = l
	}
}

package ws

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/avvvet/certify-services/internal/comm"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var ErrUnknownSocket = errors.New("unknown socket")

// Conn serializes writes; gorilla connections allow one concurrent writer.
type Conn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (c *Conn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteJSON(v)
}

type Ws struct {
	connMap  sync.Map // socketId -> *Conn
	watchMap sync.Map // socketId -> batchId
}

func NewWs() *Ws {
	return &Ws{}
}

// handle socket message from web clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case comm.TypeWatch:
		s.handleWatch(socketId, message)
	default:
		log.Warnf("unknown event received: %s", message.Type)
		s.sendError(socketId, "unknown message type "+message.Type)
	}
}

func (s *Ws) handleWatch(socketId string, msg *comm.WSMessage) {
	var req comm.WatchRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.BatchID == "" {
		log.Errorf("Error: invalid watch payload from %s: %v", socketId, err)
		s.sendError(socketId, "watch needs a batchId")
		return
	}

	s.StoreWatch(socketId, req.BatchID)
	log.Infof("socket %s watching batch %s", socketId, req.BatchID)

	res, err := comm.NewMessage(comm.TypeWatchResponse, req)
	if err != nil {
		log.Errorf("Failed to build watch response: %v", err)
		return
	}
	if err := s.Send(socketId, res); err != nil {
		log.Errorf("Failed to send watch response to %s: %v", socketId, err)
	}
}

func (s *Ws) sendError(socketId, text string) {
	msg, err := comm.NewMessage(comm.TypeError, map[string]string{"error": text})
	if err != nil {
		return
	}
	if err := s.Send(socketId, msg); err != nil {
		log.Errorf("Failed to send error message to client: %v", err)
	}
}

// Send writes m to one socket.
func (s *Ws) Send(socketId string, m *comm.WSMessage) error {
	conn, ok := s.GetConnection(socketId)
	if !ok {
		return ErrUnknownSocket
	}
	return conn.WriteJSON(m)
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) *Conn {
	c := &Conn{Conn: conn}
	s.connMap.Store(socketId, c)
	return c
}

func (s *Ws) GetConnection(socketId string) (*Conn, bool) {
	conn, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return conn.(*Conn), true
}

func (s *Ws) StoreWatch(socketId string, batchId string) {
	s.watchMap.Store(socketId, batchId)
}

func (s *Ws) GetWatch(socketId string) (string, bool) {
	batch, ok := s.watchMap.Load(socketId)
	if !ok {
		return "", false
	}
	return batch.(string), true
}

// GetWatchers lists the sockets watching batchId.
func (s *Ws) GetWatchers(batchId string) ([]string, bool) {
	var sockets []string
	found := false

	s.watchMap.Range(func(key, value interface{}) bool {
		if value.(string) == batchId {
			sockets = append(sockets, key.(string))
			found = true
		}
		return true
	})

	return sockets, found
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
	s.watchMap.Delete(socketId)
}

// Count returns the number of open sockets.
func (s *Ws) Count() int {
	n := 0
	s.connMap.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

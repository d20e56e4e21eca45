package ws

import (
	"hash/fnv"
	"sync"

	"github.com/gorilla/websocket"
)

// Client is one live broadcast connection. Writes are serialized per
// connection; gorilla/websocket allows only one concurrent writer.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

func (c *Client) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

const shardCount = 16

// Registry tracks live connections per user, sharded so registration and
// fan-out for different users never contend on one lock. It does not own
// connection lifetime beyond deregistration on close.
type Registry struct {
	shards [shardCount]*shard
}

type shard struct {
	mu    sync.RWMutex
	conns map[string]map[*Client]struct{}
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{conns: make(map[string]map[*Client]struct{})}
	}
	return r
}

func (r *Registry) shardFor(userId string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userId))
	return r.shards[h.Sum32()%shardCount]
}

func (r *Registry) Register(userId string, c *Client) {
	s := r.shardFor(userId)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[userId] == nil {
		s.conns[userId] = make(map[*Client]struct{})
	}
	s.conns[userId][c] = struct{}{}
}

func (r *Registry) Deregister(userId string, c *Client) {
	s := r.shardFor(userId)
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.conns[userId]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(s.conns, userId)
		}
	}
}

// Connections returns a snapshot of the user's live connections so callers
// fan out without holding the shard lock.
func (r *Registry) Connections(userId string) []*Client {
	s := r.shardFor(userId)
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.conns[userId]
	if len(set) == 0 {
		return nil
	}
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	return clients
}

func (r *Registry) Count(userId string) int {
	s := r.shardFor(userId)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns[userId])
}

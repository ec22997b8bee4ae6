package inmemory

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sharetube/roomsync/internal/repository/connection"
)

// repo tracks the single live connection of every member.
type repo struct {
	connList map[*websocket.Conn]string
	idList   map[string]*websocket.Conn
	mu       sync.RWMutex
	logger   *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		connList: make(map[*websocket.Conn]string),
		idList:   make(map[string]*websocket.Conn),
		logger:   logger,
	}
}

// Add makes conn the live connection of memberID and returns the connection
// it replaced, if any. The caller closes the replaced one.
func (r *repo) Add(conn *websocket.Conn, memberID string) *websocket.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("called", "member_id", memberID)
	replaced := r.idList[memberID]
	if replaced != nil {
		delete(r.connList, replaced)
	}

	r.connList[conn] = memberID
	r.idList[memberID] = conn

	return replaced
}

// RemoveByConn forgets conn. It is a no-op for a connection that was
// already replaced.
func (r *repo) RemoveByConn(conn *websocket.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	memberID, ok := r.connList[conn]
	if !ok {
		return connection.ErrNotFound
	}

	delete(r.connList, conn)
	delete(r.idList, memberID)

	r.logger.Debug("returned", "member_id", memberID)
	return nil
}

func (r *repo) GetConn(memberID string) (*websocket.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.idList[memberID]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

func (r *repo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.idList)
}

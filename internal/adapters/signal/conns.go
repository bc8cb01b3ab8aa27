package signal

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/dechrm/callrelay/internal/domain"
)

var ErrConnGone = errors.New("connection gone")

// ConnTable owns the ConnID -> live connection mapping and is the app
// router's Sender. The presence registry deliberately never holds
// connection objects, only ids resolved through this table.
type ConnTable struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]*wsConn
}

func NewConnTable() *ConnTable {
	return &ConnTable{conns: make(map[domain.ConnID]*wsConn)}
}

func (t *ConnTable) Add(c *wsConn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[c.id] = c
}

func (t *ConnTable) Remove(cid domain.ConnID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, cid)
}

func (t *ConnTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}

// Send marshals v and queues it on the target connection. Vanished targets
// and full buffers surface as errors; the router treats both as dropped.
func (t *ConnTable) Send(cid domain.ConnID, v any) error {
	t.mu.RLock()
	c, ok := t.conns[cid]
	t.mu.RUnlock()
	if !ok {
		return ErrConnGone
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.TrySend(b)
}

// CloseAll tears down every live connection, used at shutdown.
func (t *ConnTable) CloseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for cid, c := range t.conns {
		c.Close()
		delete(t.conns, cid)
	}
}

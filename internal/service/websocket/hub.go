package websocket

import (
	"sync"

	"github.com/gorilla/websocket"

	"partscope/internal/logger"
)

type message struct {
	version uint64
	data    []byte
}

// HubService fans session state out to the websocket viewers of that session.
// Only the newest pending state per session is kept; an update older than
// one already queued or sent is ignored.
type HubService struct {
	clients map[string]map[*websocket.Conn]bool
	mutex   sync.RWMutex

	pending  map[string]message
	versions map[string]uint64
	queueMu  sync.Mutex
	wake     chan struct{}

	done   chan struct{}
	logger *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:  make(map[string]map[*websocket.Conn]bool),
		pending:  make(map[string]message),
		versions: make(map[string]uint64),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Run is the only writer to client connections. It returns after Stop.
func (h *HubService) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return
		case <-h.wake:
			for sessionID, msg := range h.takePending() {
				h.deliver(sessionID, msg)
			}
		}
	}
}

func (h *HubService) takePending() map[string]message {
	h.queueMu.Lock()
	defer h.queueMu.Unlock()
	batch := h.pending
	h.pending = make(map[string]message)
	return batch
}

func (h *HubService) Stop() {
	close(h.done)
}

func (h *HubService) deliver(sessionID string, msg message) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients[sessionID] {
		if err := client.WriteMessage(websocket.TextMessage, msg.data); err != nil {
			h.logger.Error("Error sending message: %v", err)
			h.remove(sessionID, client)
		}
	}
}

func (h *HubService) Register(sessionID string, client *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[*websocket.Conn]bool)
	}
	h.clients[sessionID][client] = true
	h.logger.Info("Viewer connected for session %s. Total: %d", sessionID, h.count())
}

func (h *HubService) Unregister(sessionID string, client *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.remove(sessionID, client)
	h.logger.Info("Viewer disconnected for session %s. Total: %d", sessionID, h.count())
}

// Broadcast queues data, a state of the given version, for every viewer of
// sessionID. It replaces any undelivered state of that session and is a
// no-op when a newer version was already queued. Resending the current
// version is allowed so new viewers get the state.
func (h *HubService) Broadcast(sessionID string, version uint64, data []byte) {
	h.queueMu.Lock()
	if version < h.versions[sessionID] {
		h.queueMu.Unlock()
		return
	}
	h.versions[sessionID] = version
	h.pending[sessionID] = message{version: version, data: data}
	h.queueMu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Forget drops the version bookkeeping of a session that no longer exists.
func (h *HubService) Forget(sessionID string) {
	h.queueMu.Lock()
	defer h.queueMu.Unlock()
	delete(h.versions, sessionID)
	delete(h.pending, sessionID)
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.count()
}

// remove expects the mutex to be held.
func (h *HubService) remove(sessionID string, client *websocket.Conn) {
	conns, ok := h.clients[sessionID]
	if !ok {
		return
	}
	if _, ok := conns[client]; ok {
		delete(conns, client)
		client.Close()
	}
	if len(conns) == 0 {
		delete(h.clients, sessionID)
	}
}

func (h *HubService) count() int {
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}

func (h *HubService) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for sessionID, conns := range h.clients {
		for client := range conns {
			client.Close()
		}
		delete(h.clients, sessionID)
	}
}

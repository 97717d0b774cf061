package sse

import (
	"encoding/json"
	"sync"
	"time"

	"draft-relay/internal/logger"
)

// Event is the payload written to dashboard clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time int64       `json:"time"`
}

// Manager fans dashboard events out to the open SSE connections of each account.
type Manager struct {
	clients    map[string]map[chan []byte]bool // accountID -> connection channels
	clientsMux sync.RWMutex

	now    func() time.Time
	logger *logger.Logger
}

func NewManager(logger *logger.Logger) *Manager {
	return &Manager{
		clients: make(map[string]map[chan []byte]bool),
		now:     time.Now,
		logger:  logger,
	}
}

// AddClient registers a new connection for an account.
func (m *Manager) AddClient(accountID string) chan []byte {
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()

	if m.clients[accountID] == nil {
		m.clients[accountID] = make(map[chan []byte]bool)
	}
	channel := make(chan []byte, 16)
	m.clients[accountID][channel] = true

	m.logger.Debug("Added SSE client for account:", accountID, "total clients:", len(m.clients[accountID]))
	return channel
}

// RemoveClient unregisters a connection and closes its channel.
func (m *Manager) RemoveClient(accountID string, channel chan []byte) {
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()

	accountClients, exists := m.clients[accountID]
	if !exists || !accountClients[channel] {
		return
	}
	delete(accountClients, channel)
	close(channel)

	if len(accountClients) == 0 {
		delete(m.clients, accountID)
	}
	m.logger.Debug("Removed SSE client for account:", accountID, "remaining clients:", len(accountClients))
}

// Publish sends an event to every connection of the account. A client whose
// buffer is full misses the event.
func (m *Manager) Publish(accountID, eventType string, data interface{}) {
	m.clientsMux.RLock()
	defer m.clientsMux.RUnlock()

	accountClients, exists := m.clients[accountID]
	if !exists {
		return
	}

	jsonData, err := json.Marshal(Event{Type: eventType, Data: data, Time: m.now().Unix()})
	if err != nil {
		m.logger.Error("Failed to marshal SSE event:", err)
		return
	}

	for channel := range accountClients {
		select {
		case channel <- jsonData:
		default:
			m.logger.Warn("Dropping SSE event for slow client of account:", accountID, eventType)
		}
	}
}

// Close disconnects every client.
func (m *Manager) Close() {
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()

	for accountID, accountClients := range m.clients {
		for channel := range accountClients {
			close(channel)
		}
		delete(m.clients, accountID)
	}
}

func (m *Manager) ConnectionCount(accountID string) int {
	m.clientsMux.RLock()
	defer m.clientsMux.RUnlock()
	return len(m.clients[accountID])
}

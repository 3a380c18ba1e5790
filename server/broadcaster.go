package server

import (
	"sync"

	"scotty/models"

	log "github.com/sirupsen/logrus"
)

// Broadcaster fans store-change events out to connected SSE clients so
// reactive readers can re-query the read model when new items land.
type Broadcaster struct {
	sync.RWMutex
	itemClients  map[string]chan models.ItemCreatedEvent
	cycleClients map[string]chan models.CycleCompletedEvent
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		itemClients:  make(map[string]chan models.ItemCreatedEvent),
		cycleClients: make(map[string]chan models.CycleCompletedEvent),
	}
}

func (b *Broadcaster) BroadcastItemCreated(event models.ItemCreatedEvent) {
	b.RLock()
	defer b.RUnlock()

	for id, client := range b.itemClients {
		select {
		case client <- event: // Non-blocking send
		default:
			log.Warnf("Client channel full, skipping item for client: %v", id)
		}
	}
}

func (b *Broadcaster) BroadcastCycleCompleted(event models.CycleCompletedEvent) {
	b.RLock()
	defer b.RUnlock()

	for id, client := range b.cycleClients {
		select {
		case client <- event: // Non-blocking send
		default:
			log.Warnf("Client channel full, skipping report for client: %v", id)
		}
	}
}

// AddClient registers a client's event channels under the given key
func (b *Broadcaster) AddClient(key string, itemClient chan models.ItemCreatedEvent, cycleClient chan models.CycleCompletedEvent) {
	b.Lock()
	defer b.Unlock()
	b.itemClients[key] = itemClient
	b.cycleClients[key] = cycleClient
	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.itemClients),
	}).Info("Adding client to broadcaster")
}

// RemoveClient closes and removes a client's event channels
func (b *Broadcaster) RemoveClient(key string) {
	b.Lock()
	defer b.Unlock()

	if client, ok := b.itemClients[key]; ok {
		close(client)
		delete(b.itemClients, key)
	}

	if client, ok := b.cycleClients[key]; ok {
		close(client)
		delete(b.cycleClients, key)
	}

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.itemClients),
	}).Info("Removed client from broadcaster")
}

func (b *Broadcaster) Shutdown() {
	log.Info("Shutting down broadcaster")
	b.Lock()
	defer b.Unlock()
	for key, client := range b.itemClients {
		close(client)
		delete(b.itemClients, key)
	}
	for key, client := range b.cycleClients {
		close(client)
		delete(b.cycleClients, key)
	}
}

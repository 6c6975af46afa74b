package server

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/kdwils/feedreader/models"
)

// Broadcaster fans new-article events out to connected SSE clients.
type Broadcaster struct {
	sync.RWMutex
	clients map[string]chan models.CreateArticleEvent
}

// Constructor
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]chan models.CreateArticleEvent),
	}
}

// Listen consumes the refresher's event channel until it closes.
func (b *Broadcaster) Listen(events <-chan models.CreateArticleEvent) {
	for event := range events {
		b.Broadcast(event)
	}
}

func (b *Broadcaster) Broadcast(event models.CreateArticleEvent) {
	b.RLock()
	defer b.RUnlock()

	for id, client := range b.clients {
		select {
		case client <- event: // Non-blocking send
		default:
			log.Warnf("Client channel full, skipping event for client: %v", id)
		}
	}
}

// AddClient registers an SSE client under its key.
func (b *Broadcaster) AddClient(key string, client chan models.CreateArticleEvent) {
	b.Lock()
	defer b.Unlock()
	b.clients[key] = client
	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Adding client to broadcaster")
}

// RemoveClient unregisters a client and closes its channel.
func (b *Broadcaster) RemoveClient(key string) {
	b.Lock()
	defer b.Unlock()

	if client, ok := b.clients[key]; ok {
		close(client)
		delete(b.clients, key)
	}

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Removed client from broadcaster")
}

func (b *Broadcaster) Shutdown() {
	log.Info("Shutting down broadcaster")
	b.Lock()
	defer b.Unlock()
	for key, client := range b.clients {
		close(client)
		delete(b.clients, key)
	}
}

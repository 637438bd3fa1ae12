package websocket

import (
	"context"
	"sync"
)

type hubOp int

const (
	opRegister hubOp = iota
	opUnregister
	opSubscribe
)

// hubRequest is a queued change to the hub's membership. A single queue
// keeps register, subscribe and unregister for one client in order.
type hubRequest struct {
	op      hubOp
	client  *Client
	channel string
}

// Hub manages WebSocket client connections and channel subscriptions
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client (for cleanup)
	clients map[string]*Client

	// channels maps channel name to set of clients subscribed to it
	channels map[string]map[*Client]struct{}

	requests chan hubRequest
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		channels: make(map[string]map[*Client]struct{}),
		requests: make(chan hubRequest, 512),
	}
}

// Run applies queued membership changes until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-h.requests:
			switch req.op {
			case opRegister:
				h.addClient(req.client)
			case opUnregister:
				h.removeClient(req.client)
			case opSubscribe:
				h.subscribeToChannel(req.client, req.channel)
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.requests <- hubRequest{op: opRegister, client: client}
}

func (h *Hub) Unregister(client *Client) {
	h.requests <- hubRequest{op: opUnregister, client: client}
}

func (h *Hub) Subscribe(client *Client, channel string) {
	h.requests <- hubRequest{op: opSubscribe, client: client, channel: channel}
}

// Broadcast sends a message to all clients subscribed to a channel
func (h *Hub) Broadcast(channel string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := h.channels[channel]
	for c := range clients {
		c.SendMessage(payload)
	}
	return len(clients)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

// removeClient drops a client and all its subscriptions, then closes its Send channel.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	for _, channel := range client.Channels() {
		if subscribers, ok := h.channels[channel]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.channels, channel)
			}
		}
	}

	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) subscribeToChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// unknown or already removed clients must never land in a channel set
	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
	client.subscribe(channel)
}

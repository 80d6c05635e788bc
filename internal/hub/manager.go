package hub

import (
	"Promo/internal/event"
	"Promo/internal/model"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

type inboundMessage struct {
	event  event.WsEvent
	client *Client
}

type clientBucket struct {
	sync.RWMutex
	clients map[string]*Client
}

// Hub owns every live connection and the shared messaging state: presence,
// typing, the delivery pipeline and the seen reconciler. Inbound events are
// sharded onto worker queues by connection id, so one connection's events
// are handled strictly in arrival order.
type Hub struct {
	opts   Options
	logger *zap.Logger

	presence *Registry
	typing   *TypingTracker
	pipeline *Pipeline
	seen     *SeenReconciler

	shards     [shardCount]*clientBucket
	queues     []chan inboundMessage
	register   chan *Client
	unregister chan *Client
	broadcast  chan PresenceSnapshot
	upgrader   websocket.Upgrader

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(opts Options, store MessageStore, profiles ProfileReader, logger *zap.Logger) *Hub {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		opts:       opts,
		logger:     logger,
		presence:   NewRegistry(),
		typing:     NewTypingTracker(),
		register:   make(chan *Client, 1024),
		unregister: make(chan *Client, 1024),
		broadcast:  make(chan PresenceSnapshot, 1024),
		queues:     make([]chan inboundMessage, opts.WorkerPoolSize),
		ctx:        ctx,
		cancel:     cancel,
	}
	h.pipeline = NewPipeline(store, profiles, h.presence, opts, logger)
	h.seen = NewSeenReconciler(store, h.presence, opts, logger)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	for i := 0; i < shardCount; i++ {
		h.shards[i] = &clientBucket{
			clients: make(map[string]*Client),
		}
	}

	// run manager loop and presence broadcaster
	h.wg.Add(2)
	go h.run()
	go h.broadcastPresence()

	// start worker loop
	for i := range h.queues {
		queue := make(chan inboundMessage, opts.InboundBufferSize)
		h.queues[i] = queue

		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in := <-queue:
					h.handleEvent(in.event, in.client)
				}
			}
		}()
	}

	return h
}

// dispatch queues ev for the worker owning c. It returns false when the
// queue stayed full for inboundSendTimeout.
func (h *Hub) dispatch(c *Client, ev event.WsEvent) bool {
	queue := h.queues[getShard(c.ID, uint32(len(h.queues)))]

	select {
	case queue <- inboundMessage{client: c, event: ev}:
		return true
	case <-c.ctx.Done():
		return true
	case <-h.ctx.Done():
		return false
	default:
	}

	timer := time.NewTimer(inboundSendTimeout)
	defer timer.Stop()

	select {
	case queue <- inboundMessage{client: c, event: ev}:
		return true
	case <-c.ctx.Done():
		return true
	case <-h.ctx.Done():
		return false
	case <-timer.C:
		return false
	}
}

func getShard(key string, n uint32) uint32 {
	if key == "" || n == 0 {
		return 0
	}

	h := sha1.Sum([]byte(key))
	return binary.BigEndian.Uint32(h[:4]) % n
}

func (h *Hub) addClient(c *Client) {
	sh := getShard(c.ID, shardCount)
	b := h.shards[sh]
	b.Lock()
	defer b.Unlock()

	b.clients[c.ID] = c
	close(c.attached)
}

func (h *Hub) removeClient(c *Client) {
	sh := getShard(c.ID, shardCount)
	b := h.shards[sh]
	b.Lock()
	_, ok := b.clients[c.ID]
	delete(b.clients, c.ID)
	b.Unlock()

	if ok {
		h.closeSession(c)
	}
	c.Close()
}

// eachClient calls fn for a snapshot of every attached connection, without
// holding any bucket lock while fn runs.
func (h *Hub) eachClient(fn func(*Client)) {
	var clients []*Client
	for _, b := range h.shards {
		b.RLock()
		for _, c := range b.clients {
			clients = append(clients, c)
		}
		b.RUnlock()
	}
	for _, c := range clients {
		fn(c)
	}
}

func (h *Hub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

// broadcastPresence fans presence snapshots out to every attached connection
// in version order. A snapshot older than the last one sent is dropped.
func (h *Hub) broadcastPresence() {
	defer h.wg.Done()

	var last uint64
	for {
		select {
		case <-h.ctx.Done():
			return
		case snap := <-h.broadcast:
			if snap.Version <= last {
				continue
			}
			last = snap.Version

			ev, err := event.New(event.EventOnlineUsers, model.OnlineUsers{
				Version: snap.Version,
				UserIDs: snap.UserIDs,
			})
			if err != nil {
				h.logger.Error("failed to encode online users", zap.Error(err))
				continue
			}

			h.eachClient(func(c *Client) {
				if !c.TrySend(ev) {
					h.logger.Debug("online users dropped for slow client", zap.String("client_id", c.ID))
				}
			})
		}
	}
}

func (h *Hub) publishPresence(snap PresenceSnapshot) {
	select {
	case h.broadcast <- snap:
	case <-h.ctx.Done():
	}
}

// OnlineUsers returns the sorted ids of every registered user.
func (h *Hub) OnlineUsers() []string {
	return h.presence.Online()
}

// Reconcile runs the seen reconciler on behalf of viewerID, for callers
// outside a socket session.
func (h *Hub) Reconcile(ctx context.Context, viewerID, otherPartyID string) (int64, error) {
	return h.seen.Reconcile(ctx, viewerID, otherPartyID)
}

func (h *Hub) Stop() {
	h.cancel()

	h.eachClient(func(c *Client) {
		c.Close()
	})

	h.wg.Wait()
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// non-browser clients do not send an Origin
		return true
	}

	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	RegisterClient(conn, h)
}

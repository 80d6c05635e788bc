package hub

import (
	"Promo/internal/model"
	"sort"
)

// MonitorService provides methods to gather hub statistics
type MonitorService struct {
	hub *Hub
}

// NewMonitorService creates a new monitor service
func NewMonitorService(hub *Hub) *MonitorService {
	return &MonitorService{hub: hub}
}

// GetStats gathers and returns all hub statistics
func (ms *MonitorService) GetStats() model.MonitorResponse {
	clients := ms.getClientList()
	pairs, typers := ms.hub.typing.Stats()

	stateCount := map[string]int{
		StateConnecting: 0,
		StateRegistered: 0,
		StateClosed:     0,
	}
	for _, c := range clients {
		stateCount[c.State]++
	}

	status := "healthy"
	if len(clients) == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status: status,
		Connections: model.ConnectionStats{
			TotalConnected:  len(clients),
			TotalRegistered: ms.hub.presence.Len(),
			InboundQueued:   ms.inboundQueued(),
		},
		Typing: model.TypingStats{
			ActivePairs:  pairs,
			ActiveTypers: typers,
		},
		Clients:    clients,
		StateCount: stateCount,
	}
}

// getClientList returns list of all attached connections, ordered by id
func (ms *MonitorService) getClientList() []model.ClientInfo {
	clients := make([]model.ClientInfo, 0)
	ms.hub.eachClient(func(c *Client) {
		clients = append(clients, model.ClientInfo{
			ClientID: c.ID,
			UserID:   c.UserID(),
			State:    c.State(),
		})
	})

	sort.Slice(clients, func(i, j int) bool { return clients[i].ClientID < clients[j].ClientID })
	return clients
}

func (ms *MonitorService) inboundQueued() int {
	total := 0
	for _, q := range ms.hub.queues {
		total += len(q)
	}
	return total
}

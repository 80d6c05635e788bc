package model

// -----------------------------------------------------------------
// Monitor API Response Models
// -----------------------------------------------------------------

// MonitorResponse is the main response for the monitor API
type MonitorResponse struct {
	Status      string          `json:"status"`      // "healthy", "idle"
	Connections ConnectionStats `json:"connections"` // Client connection stats
	Typing      TypingStats     `json:"typing"`      // Active typing sessions
	Clients     []ClientInfo    `json:"clients"`     // List of connected clients
	StateCount  map[string]int  `json:"stateCount"`  // Count by session state
}

// ConnectionStats holds connection-related statistics
type ConnectionStats struct {
	TotalConnected  int `json:"totalConnected"`  // Open sockets, registered or not
	TotalRegistered int `json:"totalRegistered"` // Users present in the registry
	InboundQueued   int `json:"inboundQueued"`   // Events waiting for a worker
}

// TypingStats holds typing tracker statistics
type TypingStats struct {
	ActivePairs  int `json:"activePairs"`
	ActiveTypers int `json:"activeTypers"`
}

// ClientInfo contains information about a connected client
type ClientInfo struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId,omitempty"`
	State    string `json:"state"` // "connecting", "registered", "closed"
}

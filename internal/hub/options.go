package hub

import "time"

const (
	registerTimeout    = 5 * time.Second        // timeout for attaching a connection
	inboundSendTimeout = 500 * time.Millisecond // timeout for sending to a worker queue
)

// Options tunes the hub. Zero fields fall back to DefaultOptions.
type Options struct {
	WorkerPoolSize    int           // number of workers processing inbound events
	InboundBufferSize int           // per-worker inbound queue size
	SendBufferSize    int           // per-connection outbound buffer size
	MaxMessageSize    int64         // max inbound frame size
	WriteWait         time.Duration // time allowed to write a frame to the peer
	PongWait          time.Duration // time allowed to read the next pong from the peer
	SendTimeout       time.Duration // bound on enqueueing replies to the originating connection
	PushTimeout       time.Duration // bound on live pushes to other users
	AllowedOrigins    []string      // browser origins accepted on upgrade; "*" allows any
}

func DefaultOptions() Options {
	return Options{
		WorkerPoolSize:    16,
		InboundBufferSize: 256,
		SendBufferSize:    256,
		MaxMessageSize:    64 * 1024,
		WriteWait:         10 * time.Second,
		PongWait:          20 * time.Second,
		SendTimeout:       2 * time.Second,
		PushTimeout:       250 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.WorkerPoolSize <= 0 {
		o.WorkerPoolSize = d.WorkerPoolSize
	}
	if o.InboundBufferSize <= 0 {
		o.InboundBufferSize = d.InboundBufferSize
	}
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = d.SendBufferSize
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = d.SendTimeout
	}
	if o.PushTimeout <= 0 {
		o.PushTimeout = d.PushTimeout
	}
	return o
}

// send pings to peer with this period
func (o Options) pingInterval() time.Duration {
	return (o.PongWait * 9) / 10
}

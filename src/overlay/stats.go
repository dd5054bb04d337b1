package overlay

import (
	"time"

	"github.com/mosaicnetworks/overlay/src/wire"
)

// Stats are the counters of one connection.
type Stats struct {
	Received        map[string]int `json:"received"`
	Sent            map[string]int `json:"sent"`
	BuffersQueued   int            `json:"buffers_queued"`
	BuffersWritten  int            `json:"buffers_written"`
	BuffersReleased int            `json:"buffers_released"`
	QueueLen        int            `json:"queue_len"`
	DropReason      string         `json:"drop_reason,omitempty"`
}

func newStats() Stats {
	return Stats{
		Received: make(map[string]int),
		Sent:     make(map[string]int),
	}
}

// RemoteError is the last Error message received from the remote.
type RemoteError struct {
	Code     wire.ErrorCode
	Msg      string
	Received time.Time
}

// Stats returns a copy of the connection counters. It is safe to call from any
// goroutine.
func (p *Peer) Stats() Stats {
	p.statsLock.Lock()
	defer p.statsLock.Unlock()

	res := p.stats
	res.Received = make(map[string]int, len(p.stats.Received))
	for k, v := range p.stats.Received {
		res.Received[k] = v
	}
	res.Sent = make(map[string]int, len(p.stats.Sent))
	for k, v := range p.stats.Sent {
		res.Sent[k] = v
	}
	return res
}

// LastRemoteError returns the last Error message received from the remote, or
// nil.
func (p *Peer) LastRemoteError() *RemoteError {
	p.statsLock.Lock()
	defer p.statsLock.Unlock()

	if p.lastRemoteError == nil {
		return nil
	}
	res := *p.lastRemoteError
	return &res
}

func (p *Peer) countReceived(t wire.MessageType) {
	p.statsLock.Lock()
	p.stats.Received[t.String()]++
	p.statsLock.Unlock()
}

func (p *Peer) countQueued(t wire.MessageType) {
	p.statsLock.Lock()
	p.stats.Sent[t.String()]++
	p.stats.BuffersQueued++
	p.stats.QueueLen = len(p.queue)
	p.statsLock.Unlock()
}

func (p *Peer) countWritten() {
	p.statsLock.Lock()
	p.stats.BuffersWritten++
	p.statsLock.Unlock()
}

func (p *Peer) countReleased(n int) {
	p.statsLock.Lock()
	p.stats.BuffersReleased += n
	p.stats.QueueLen = len(p.queue)
	p.statsLock.Unlock()
}

func (p *Peer) recordRemoteError(body *wire.ErrorBody) {
	p.statsLock.Lock()
	p.lastRemoteError = &RemoteError{
		Code:     body.Code,
		Msg:      body.Msg,
		Received: time.Now(),
	}
	p.statsLock.Unlock()
}

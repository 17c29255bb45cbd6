package clipboard

import (
	"fmt"
	"sync"
	"time"
)

// ClientFormatListPDU is the client-advertised format set.
type ClientFormatListPDU struct {
	Formats []FormatEntry
}

// HostDispatcher runs a client format-list update on the host main loop,
// converting it into whatever native clipboard representation the host
// owner uses. Implemented by the embedding host adapter.
type HostDispatcher interface {
	DispatchFormatList(formats []FormatEntry)
}

const formatDataRequestTimeout = 4 * time.Second

// FormatDataRequestPDU requests client clipboard content in one format.
type FormatDataRequestPDU struct {
	Format FormatID
}

// dataRequest is one queued or in-flight FormatDataRequest.
type dataRequest struct {
	format FormatID
	result chan dataResult
}

type dataResult struct {
	data []byte
	err  error
}

// Consumer drives the client->server direction: serializing
// ClientFormatList delivery to the host main loop and enforcing
// at-most-one outstanding FormatDataRequest.
type Consumer struct {
	mu sync.Mutex

	sink PDUSink
	host HostDispatcher

	responseInFlight bool
	consumeCond      *sync.Cond
	lastConsumed     bool

	supportsLocking bool

	current *dataRequest
	queue   []*dataRequest
}

func NewConsumer(sink PDUSink, host HostDispatcher, supportsLocking bool) *Consumer {
	c := &Consumer{sink: sink, host: host, supportsLocking: supportsLocking, lastConsumed: true}
	c.consumeCond = sync.NewCond(&c.mu)
	return c
}

// OnClientFormatList handles a ClientFormatList PDU. If a previous
// FormatListResponse is still in flight the update is ignored; otherwise
// it waits for the prior mime-type-list update to be consumed by the
// host, then dispatches the new list and replies OK.
func (c *Consumer) OnClientFormatList(formats []FormatEntry) error {
	c.mu.Lock()
	if c.responseInFlight {
		c.mu.Unlock()
		return nil
	}
	c.responseInFlight = true
	for !c.lastConsumed {
		c.consumeCond.Wait()
	}
	c.lastConsumed = false
	c.mu.Unlock()

	c.host.DispatchFormatList(formats)

	c.mu.Lock()
	c.lastConsumed = true
	c.responseInFlight = false
	c.consumeCond.Broadcast()
	c.mu.Unlock()

	return c.sink.SendPDU("CLIPRDR", FormatListResponsePDU{Status: FormatListResponseOK})
}

// RequestData issues (or enqueues) a FormatDataRequest for fmtID,
// blocking the caller until the client responds or the timeout elapses.
func (c *Consumer) RequestData(fmtID FormatID) ([]byte, error) {
	req := &dataRequest{format: fmtID, result: make(chan dataResult, 1)}

	c.mu.Lock()
	if c.current != nil {
		c.queue = append(c.queue, req)
		c.mu.Unlock()
	} else {
		c.current = req
		c.mu.Unlock()
		if err := c.sink.SendPDU("CLIPRDR", FormatDataRequestPDU{Format: req.format}); err != nil {
			c.mu.Lock()
			c.current = nil
			c.mu.Unlock()
			return nil, err
		}
	}

	select {
	case res := <-req.result:
		return res.data, res.err
	case <-time.After(formatDataRequestTimeout):
		c.failRequest(req, fmt.Errorf("format data request for format %d timed out", fmtID))
		return nil, fmt.Errorf("format data request for format %d timed out", fmtID)
	}
}

// OnFormatDataResponse completes the in-flight request and dispatches
// the next queued one, if any.
func (c *Consumer) OnFormatDataResponse(data []byte, err error) {
	c.mu.Lock()
	req := c.current
	c.current = nil
	c.mu.Unlock()

	if req != nil {
		req.result <- dataResult{data: data, err: err}
	}
	c.dispatchNext()
}

func (c *Consumer) failRequest(req *dataRequest, err error) {
	c.mu.Lock()
	if c.current == req {
		c.current = nil
	} else {
		for i, q := range c.queue {
			if q == req {
				c.queue = append(c.queue[:i], c.queue[i+1:]...)
				break
			}
		}
	}
	c.mu.Unlock()
	select {
	case req.result <- dataResult{err: err}:
	default:
	}
	c.dispatchNext()
}

func (c *Consumer) dispatchNext() {
	c.mu.Lock()
	if c.current != nil || len(c.queue) == 0 {
		c.mu.Unlock()
		return
	}
	next := c.queue[0]
	c.queue = c.queue[1:]
	c.current = next
	c.mu.Unlock()

	if err := c.sink.SendPDU("CLIPRDR", FormatDataRequestPDU{Format: next.format}); err != nil {
		c.failRequest(next, err)
	}
}

// SupportsLocking reports whether the client supports clip-data locking;
// FUSE requests lacking a clip-data-id must be discarded when false.
func (c *Consumer) SupportsLocking() bool {
	return c.supportsLocking
}

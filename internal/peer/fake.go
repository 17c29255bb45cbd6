package peer

import (
	"context"
	"sync"
)

// FakeConnection is an in-memory Connection used by package tests across
// the module; it never touches a real socket.
type FakeConnection struct {
	mu sync.Mutex

	joined     map[string]bool
	drdynvc    bool
	closed     bool
	disconnect *ErrorInfoCode

	SentPDUs []SentPDU
}

type SentPDU struct {
	Channel string
	PDU     any
}

func NewFakeConnection() *FakeConnection {
	return &FakeConnection{joined: make(map[string]bool)}
}

func (f *FakeConnection) Initialize(ctx context.Context) error { return nil }

func (f *FakeConnection) CheckFileDescriptor(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed, nil
}

func (f *FakeConnection) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeConnection) Disconnect(code ErrorInfoCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnect = &code
	f.closed = true
	return nil
}

func (f *FakeConnection) IsChannelJoined(channelName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joined[channelName]
}

func (f *FakeConnection) DrdynvcReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drdynvc
}

func (f *FakeConnection) SendPDU(channelName string, pdu any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SentPDUs = append(f.SentPDUs, SentPDU{Channel: channelName, PDU: pdu})
	return nil
}

// JoinChannel simulates the client joining a DVC by name, for tests.
func (f *FakeConnection) JoinChannel(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined[name] = true
}

// SetDrdynvcReady simulates the DRDYNVC multiplexer reaching ready.
func (f *FakeConnection) SetDrdynvcReady(ready bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drdynvc = ready
}

// DisconnectCode returns the error-info code passed to Disconnect, if any.
func (f *FakeConnection) DisconnectCode() (ErrorInfoCode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disconnect == nil {
		return ErrorInfoNone, false
	}
	return *f.disconnect, true
}

func (f *FakeConnection) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

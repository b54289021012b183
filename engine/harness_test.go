package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/sec51/bolt/core"
)

// memDataChannel is an in-memory DataChannel pair used to exercise the
// engine's protocol logic without a real WebRTC transport. Delivery is
// asynchronous (a goroutine per Send) to mirror how a real transport's
// OnMessage callback fires on its own goroutine -- the engine's mu
// discipline, not the test double, is what must make this safe.
type memDataChannel struct {
	mu       sync.Mutex
	peer     *memDataChannel
	inbound  func([]byte)
	openFlag bool
}

func newMemChannelPair() (*memDataChannel, *memDataChannel) {
	a := &memDataChannel{openFlag: true}
	b := &memDataChannel{openFlag: true}
	a.peer = b
	b.peer = a
	return a, b
}

func (c *memDataChannel) Send(data []byte) error {
	cp := append([]byte(nil), data...)
	peer := c.peer
	go peer.deliver(cp)
	return nil
}

func (c *memDataChannel) deliver(data []byte) {
	c.mu.Lock()
	cb := c.inbound
	c.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

func (c *memDataChannel) BufferedAmount() uint64                       { return 0 }
func (c *memDataChannel) SetLowWatermarkHandler(uint64, func())        {}
func (c *memDataChannel) OnMessage(cb func([]byte))                    { c.mu.Lock(); c.inbound = cb; c.mu.Unlock() }
func (c *memDataChannel) OnOpen(cb func())                             {}
func (c *memDataChannel) OnClose(cb func())                            {}
func (c *memDataChannel) OnError(cb func(error))                       {}
func (c *memDataChannel) IsOpen() bool                                 { c.mu.Lock(); defer c.mu.Unlock(); return c.openFlag }
func (c *memDataChannel) Close() error                                 { c.mu.Lock(); c.openFlag = false; c.mu.Unlock(); return nil }

// testPeer bundles one side of a wired session pair: the Engine plus
// channels the test can select on for its callbacks.
type testPeer struct {
	engine        *Engine
	verifications chan VerificationEvent
	progress      chan TransferProgress
	errors        chan error
	received      chan receivedFile
	pinStore      *core.MemoryPinStore
}

type receivedFile struct {
	blob     []byte
	filename string
}

func newTestIdentity(t *testing.T) core.IdentityKeyPair {
	t.Helper()
	kp, err := core.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return core.IdentityKeyPair{Public: kp.Public, Secret: kp.Secret}
}

// newTestPeer builds an Engine wired to dc, with buffered channels
// standing in for the embedder's callbacks.
func newTestPeer(t *testing.T, identityConfigured bool, dc *memDataChannel) *testPeer {
	t.Helper()

	p := &testPeer{
		verifications: make(chan VerificationEvent, 4),
		progress:      make(chan TransferProgress, 64),
		errors:        make(chan error, 16),
		received:      make(chan receivedFile, 4),
		pinStore:      core.NewMemoryPinStore(),
	}

	cfg := NewConfig()
	cfg.IdentityConfigured = identityConfigured
	cfg.HelloTimeout = 2 * time.Second

	callbacks := Callbacks{
		OnVerificationState: func(e VerificationEvent) { p.verifications <- e },
		OnProgress:          func(pr TransferProgress) { p.progress <- pr },
		OnError:             func(err error) { p.errors <- err },
		OnReceiveFile:       func(blob []byte, filename string) { p.received <- receivedFile{blob, filename} },
	}

	identity := newTestIdentity(t)
	e := New(cfg, callbacks, nil, identity, p.pinStore)
	e.dc = dc
	dc.OnMessage(func(data []byte) {
		e.mu.Lock()
		e.onMessageLocked(data)
		e.mu.Unlock()
	})

	p.engine = e
	return p
}

// connectTestPeers wires two engines via an in-memory channel pair,
// assigns each other's ephemeral public keys (standing in for the
// signaling exchange Connect performs), and sets each side's
// remotePeerCode (used for TOFU pin checks when non-empty). It does not
// arm the HELLO flow; tests call armHello on each peer themselves.
func connectTestPeers(t *testing.T, identityConfigured bool, peerCodeA, peerCodeB string) (a, b *testPeer) {
	t.Helper()
	dcA, dcB := newMemChannelPair()
	a = newTestPeer(t, identityConfigured, dcA)
	b = newTestPeer(t, identityConfigured, dcB)

	ephA, err := core.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate ephemeral A: %v", err)
	}
	ephB, err := core.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate ephemeral B: %v", err)
	}

	a.engine.mu.Lock()
	a.engine.ephemeral = ephA
	a.engine.remoteEphemeralPub = ephB.Public
	a.engine.haveRemoteEphemeral = true
	a.engine.remotePeerCode = peerCodeB
	a.engine.mu.Unlock()

	b.engine.mu.Lock()
	b.engine.ephemeral = ephB
	b.engine.remoteEphemeralPub = ephA.Public
	b.engine.haveRemoteEphemeral = true
	b.engine.remotePeerCode = peerCodeA
	b.engine.mu.Unlock()

	return a, b
}

func (p *testPeer) armHello(t *testing.T) {
	t.Helper()
	p.engine.mu.Lock()
	p.engine.armHelloFlow()
	p.engine.mu.Unlock()
}

func awaitVerification(t *testing.T, p *testPeer) VerificationEvent {
	t.Helper()
	select {
	case v := <-p.verifications:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for verification state")
		return VerificationEvent{}
	}
}

func awaitProgress(t *testing.T, p *testPeer) TransferProgress {
	t.Helper()
	select {
	case pr := <-p.progress:
		return pr
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for progress event")
		return TransferProgress{}
	}
}

func awaitError(t *testing.T, p *testPeer) error {
	t.Helper()
	select {
	case err := <-p.errors:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error callback")
		return nil
	}
}

func awaitReceived(t *testing.T, p *testPeer) receivedFile {
	t.Helper()
	select {
	case f := <-p.received:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for received file")
		return receivedFile{}
	}
}

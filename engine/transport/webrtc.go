// Package transport provides a pion/webrtc-backed implementation of the
// engine.PeerConnection and engine.DataChannel interfaces. The engine
// itself never imports pion directly -- it drives negotiation purely
// through those two interfaces -- so any other transport (in-memory
// pipes for tests, a future QUIC datagram channel) can be substituted
// without touching package engine.
package transport

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"

	"github.com/sec51/bolt/engine"
)

// bufferedAmountLowThreshold mirrors the engine's own back-pressure
// watermark default; SetLowWatermarkHandler re-applies the engine's
// configured watermark each time it registers a drain handler.
const bufferedAmountLowThreshold = 512 << 10

// PeerConnection wraps *webrtc.PeerConnection to satisfy
// engine.PeerConnection.
type PeerConnection struct {
	api *webrtc.API
	pc  *webrtc.PeerConnection
}

// NewPeerConnection creates a peer connection configured with the given
// ICE servers (STUN/TURN URLs); empty entries are skipped.
func NewPeerConnection(iceServers []string) (*PeerConnection, error) {
	cfg := webrtc.Configuration{}
	for _, url := range iceServers {
		if url != "" {
			cfg.ICEServers = append(cfg.ICEServers, webrtc.ICEServer{URLs: []string{url}})
		}
	}
	api := webrtc.NewAPI()
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &PeerConnection{api: api, pc: pc}, nil
}

func (p *PeerConnection) CreateDataChannel(label string) (engine.DataChannel, error) {
	ordered := true
	dc, err := p.pc.CreateDataChannel(label, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, err
	}
	return newDataChannel(dc), nil
}

func (p *PeerConnection) CreateOffer() (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", err
	}
	return marshalSDP(offer)
}

// CreateAnswer assumes the caller already applied remoteOfferSDP via
// SetRemoteDescription; it is accepted here only so callers can log or
// assert against it without threading extra state through the engine.
func (p *PeerConnection) CreateAnswer(remoteOfferSDP string) (string, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	return marshalSDP(answer)
}

func (p *PeerConnection) SetRemoteDescription(sdp string, isOffer bool) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal([]byte(sdp), &desc); err != nil {
		return err
	}
	return p.pc.SetRemoteDescription(desc)
}

func (p *PeerConnection) AddICECandidate(candidate string) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(candidate), &init); err != nil {
		return err
	}
	return p.pc.AddICECandidate(init)
}

func (p *PeerConnection) OnICECandidate(cb func(candidate string)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			cb("")
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		cb(string(data))
	})
}

func (p *PeerConnection) OnDataChannel(cb func(engine.DataChannel)) {
	p.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		cb(newDataChannel(dc))
	})
}

func (p *PeerConnection) Close() error {
	return p.pc.Close()
}

func marshalSDP(desc webrtc.SessionDescription) (string, error) {
	data, err := json.Marshal(desc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// dataChannel wraps *webrtc.DataChannel over pion's normal OnMessage
// event dispatch -- engine.DataChannel's Send/OnMessage shape is a
// callback API, not a Reader/Writer, so there is no use for pion's
// Detach()'d io.ReadWriteCloser here.
type dataChannel struct {
	d      *webrtc.DataChannel
	onOpen func()
}

func newDataChannel(d *webrtc.DataChannel) *dataChannel {
	d.SetBufferedAmountLowThreshold(bufferedAmountLowThreshold)
	return &dataChannel{d: d}
}

func (c *dataChannel) Send(data []byte) error {
	return c.d.Send(data)
}

func (c *dataChannel) BufferedAmount() uint64 {
	return uint64(c.d.BufferedAmount())
}

func (c *dataChannel) SetLowWatermarkHandler(watermark uint64, cb func()) {
	c.d.SetBufferedAmountLowThreshold(watermark)
	if cb == nil {
		c.d.OnBufferedAmountLow(func() {})
		return
	}
	c.d.OnBufferedAmountLow(cb)
}

func (c *dataChannel) OnMessage(cb func(data []byte)) {
	if cb == nil {
		c.d.OnMessage(func(msg webrtc.DataChannelMessage) {})
		return
	}
	c.d.OnMessage(func(msg webrtc.DataChannelMessage) {
		cb(msg.Data)
	})
}

func (c *dataChannel) OnOpen(cb func()) {
	c.onOpen = cb
	if cb == nil {
		c.d.OnOpen(func() {})
		return
	}
	c.d.OnOpen(func() {
		cb()
	})
}

func (c *dataChannel) OnClose(cb func()) {
	if cb == nil {
		c.d.OnClose(func() {})
		return
	}
	c.d.OnClose(cb)
}

func (c *dataChannel) OnError(cb func(err error)) {
	if cb == nil {
		c.d.OnError(func(err error) {})
		return
	}
	c.d.OnError(cb)
}

func (c *dataChannel) IsOpen() bool {
	return c.d.ReadyState() == webrtc.DataChannelStateOpen
}

func (c *dataChannel) Close() error {
	return c.d.Close()
}

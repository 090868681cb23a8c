// Package stream plays a frame directory and broadcasts the frames, audio
// commands and player state to websocket clients.
package stream

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/tmpim/asciiplay"
)

// Subscription is a set of packet kinds a client wants.
type Subscription uint32

// Possible subscription flags.
const (
	SubscriptionVideo = Subscription(1 << iota)
	SubscriptionAudio
	SubscriptionMetadata
	SubscriptionAll = Subscription(0)
)

// Possible packet types, sent as the first byte of every message.
const (
	PacketVideo = iota + 1
	PacketAudio
	PacketMetadata
)

// WebsocketControl is the message clients send to (re)subscribe.
type WebsocketControl struct {
	ID           string `json:"id"`
	Subscription uint32 `json:"subscription"`
}

// IsSubscribedTo returns whether or not the client subscription is subscribed
// to the given subscription.
func (s Subscription) IsSubscribedTo(sub Subscription) bool {
	return (s & sub) == sub
}

// Client is a websocket connected client.
type Client struct {
	mutex         *sync.Mutex
	id            string
	conn          *websocket.Conn
	subscriptions Subscription
}

// ID returns the client identifier.
func (c *Client) ID() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.id
}

// VideoPacket is the payload of a PacketVideo message.
type VideoPacket struct {
	Index int    `json:"index"`
	Total int    `json:"total"`
	Text  string `json:"text,omitempty"`
	// Raster is set instead of Text for colored frames.
	Raster *asciiplay.Raster `json:"raster,omitempty"`
}

// Manager owns a session and fans its output out to websocket clients.
type Manager struct {
	clientsMutex *sync.Mutex
	clients      []*Client

	session *Session
	audio   *ClientAudio
	log     logrus.FieldLogger
}

// NewManager creates a manager around a new session built from opts.
// opts.OnUpdate is replaced by the manager.
func NewManager(opts SessionOptions) (*Manager, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	m := &Manager{
		clientsMutex: new(sync.Mutex),
		log:          log.WithField("component", "stream"),
	}
	m.audio = NewClientAudio(m.broadcastAudio)

	opts.OnUpdate = m.handleUpdate
	session, err := NewSession(opts)
	if err != nil {
		return nil, err
	}
	m.session = session

	return m, nil
}

// Session returns the managed session.
func (m *Manager) Session() *Session {
	return m.session
}

// Audio returns the client audio clock.
func (m *Manager) Audio() *ClientAudio {
	return m.audio
}

// Close stops the session and disconnects every client.
func (m *Manager) Close() {
	m.session.Close()

	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()
	for _, c := range m.clients {
		c.conn.Close()
	}
	m.clients = nil
}

// Clients returns the number of connected clients.
func (m *Manager) Clients() int {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()
	return len(m.clients)
}

// Broadcast sends data to every client subscribed to sub.
func (m *Manager) Broadcast(sub Subscription, data ...[]byte) {
	m.clientsMutex.Lock()
	clientCopy := make([]*Client, len(m.clients))
	copy(clientCopy, m.clients)
	m.clientsMutex.Unlock()

	for _, client := range clientCopy {
		client.mutex.Lock()
		if client.subscriptions.IsSubscribedTo(sub) {
			for _, d := range data {
				if err := client.conn.WriteMessage(websocket.BinaryMessage, d); err != nil {
					m.log.WithError(err).WithField("client", client.id).Debug("write failed")
					break
				}
			}
		}
		client.mutex.Unlock()
	}
}

func (m *Manager) broadcastJSON(sub Subscription, packet byte, v interface{}) {
	d, err := json.Marshal(v)
	if err != nil {
		m.log.WithError(err).WithField("packet", packet).Error("failed to encode packet")
		return
	}
	m.Broadcast(sub, append([]byte{packet}, d...))
}

func (m *Manager) broadcastAudio(cmd AudioCommand) {
	m.broadcastJSON(SubscriptionAudio, PacketAudio, cmd)
}

func (m *Manager) broadcastState() {
	m.broadcastJSON(SubscriptionMetadata, PacketMetadata, m.State())
}

func (m *Manager) broadcastFrame(index int) {
	packet, ok := m.FramePacket(index)
	if !ok {
		return
	}
	m.broadcastJSON(SubscriptionVideo, PacketVideo, packet)
}

// FramePacket builds the video packet for index.
func (m *Manager) FramePacket(index int) (VideoPacket, bool) {
	view, ok := m.session.ViewAt(index)
	if !ok {
		return VideoPacket{}, false
	}

	packet := VideoPacket{Index: view.Index, Total: view.Total}
	if view.Surface != nil {
		packet.Raster = view.Surface.Raster
	} else {
		packet.Text = view.Text
	}
	return packet, true
}

func (m *Manager) handleUpdate(u Update) {
	if m.session == nil {
		return
	}

	switch u.Kind {
	case UpdateFrame:
		m.broadcastFrame(u.Event.Index)
		m.broadcastState()
	case UpdateDisplay:
		m.broadcastFrame(m.session.Player().Index())
		m.broadcastState()
	case UpdateState, UpdateProgress:
		m.broadcastState()
	}
}

// HandleConn serves a websocket client until it disconnects.
func (m *Manager) HandleConn(conn *websocket.Conn) {
	m.clientsMutex.Lock()
	client := &Client{
		mutex:         new(sync.Mutex),
		id:            uuid.NewString(),
		conn:          conn,
		subscriptions: 0,
	}
	m.clients = append(m.clients, client)
	m.clientsMutex.Unlock()

	log := m.log.WithField("client", client.id)
	log.Info("client connected")

	defer func() {
		m.clientsMutex.Lock()
		defer m.clientsMutex.Unlock()

		for i, c := range m.clients {
			if c == client {
				m.clients = append(m.clients[:i], m.clients[i+1:]...)
				return
			}
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			log.WithError(err).Info("client disconnected")
			return
		}

		if msgType != websocket.BinaryMessage && msgType != websocket.TextMessage {
			continue
		}

		var controlMsg WebsocketControl
		if err := json.Unmarshal(data, &controlMsg); err != nil {
			log.WithError(err).Warn("failed to unmarshal control message")
			continue
		}

		sub := Subscription(controlMsg.Subscription)

		client.mutex.Lock()
		if controlMsg.ID != "" {
			client.id = controlMsg.ID
		}
		client.subscriptions = sub
		client.mutex.Unlock()

		m.greet(client, sub)
	}
}

// greet sends a freshly subscribed client the current state and frame.
func (m *Manager) greet(client *Client, sub Subscription) {
	var msgs [][]byte

	if sub.IsSubscribedTo(SubscriptionMetadata) {
		if d, err := json.Marshal(m.State()); err == nil {
			msgs = append(msgs, append([]byte{PacketMetadata}, d...))
		}
	}
	if sub.IsSubscribedTo(SubscriptionAudio) {
		if cmd, ok := m.audio.LoadCommand(); ok {
			if d, err := json.Marshal(cmd); err == nil {
				msgs = append(msgs, append([]byte{PacketAudio}, d...))
			}
		}
	}
	if sub.IsSubscribedTo(SubscriptionVideo) {
		if packet, ok := m.FramePacket(m.session.Player().Index()); ok {
			if d, err := json.Marshal(packet); err == nil {
				msgs = append(msgs, append([]byte{PacketVideo}, d...))
			}
		}
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()
	for _, d := range msgs {
		if err := client.conn.WriteMessage(websocket.BinaryMessage, d); err != nil {
			return
		}
	}
}

// Package mqtt exposes the control endpoint over MQTT.
//
// The bridge subscribes to "<prefix>/receive", whose payloads are the same
// JSON objects accepted by POST /receive, and mirrors the display status to
// "<prefix>/status" after every committed update.
package mqtt

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"runtime"
	"time"

	"github.com/harveysanders/picodisplay/textboard/control"
	"github.com/harveysanders/picodisplay/textboard/lcd"
	"github.com/soypat/lneto/tcp"
	"github.com/soypat/lneto/x/xnet"
	mqtt "github.com/soypat/natiu-mqtt"
)

// DefaultPrefix is the topic prefix used when Bridge.Prefix is empty.
const DefaultPrefix = "textboard"

var pubFlags, _ = mqtt.NewPublishFlags(mqtt.QoS0, false, true) // Retained status.

// Endpoint is the control surface driven by the bridge.
type Endpoint interface {
	HandleUpdate(body []byte) control.Response
	HandleStatus() control.Response
}

// Bridge connects an Endpoint to an MQTT broker.
type Bridge struct {
	ID                string
	Prefix            string
	Timeout           time.Duration
	PollTimeout       time.Duration // Bounds each read of incoming packets.
	TCPBufSize        int
	Logger            *slog.Logger
	HeartbeatInterval time.Duration
	Username          string // MQTT broker username (optional)
	Password          string // MQTT broker password (optional, requires Username)
	// LCD, if set, receives connection progress messages.
	LCD chan<- lcd.Message

	statuses chan []byte
	payload  bytes.Buffer
}

// NewBridge returns a Bridge with room for depth queued status snapshots.
func NewBridge(id string, depth int, logger *slog.Logger) *Bridge {
	return &Bridge{
		ID:                id,
		Prefix:            DefaultPrefix,
		Timeout:           5 * time.Second,
		PollTimeout:       50 * time.Millisecond,
		TCPBufSize:        2030, // MTU - ethhdr - iphdr - tcphdr
		Logger:            logger,
		HeartbeatInterval: 500 * time.Millisecond,
		statuses:          make(chan []byte, depth),
	}
}

func (b *Bridge) prefix() string {
	if b.Prefix == "" {
		return DefaultPrefix
	}
	return b.Prefix
}

// ReceiveTopic is where update commands are read from.
func (b *Bridge) ReceiveTopic() string { return b.prefix() + "/receive" }

// StatusTopic is where status snapshots are published.
func (b *Bridge) StatusTopic() string { return b.prefix() + "/status" }

// OnCommit queues st for publishing. It never blocks; if the queue is full
// the snapshot is dropped since a newer one will follow. It is meant to be
// installed as control.Endpoint.OnCommit.
func (b *Bridge) OnCommit(st control.Status) {
	payload, err := st.Encode()
	if err != nil {
		b.Logger.Error("mqtt:encode-status", slog.Any("reason", err))
		return
	}
	b.queue(payload)
}

func (b *Bridge) queue(payload []byte) {
	select {
	case b.statuses <- payload:
	default:
		b.Logger.Warn("mqtt:status-dropped")
	}
}

// handlePublish feeds an incoming command to the endpoint.
func (b *Bridge) handlePublish(endpoint Endpoint, topic []byte, r io.Reader) error {
	if string(topic) != b.ReceiveTopic() {
		b.Logger.Warn("mqtt:unexpected-topic", slog.String("topic", string(topic)))
		return nil
	}
	b.payload.Reset()
	if _, err := b.payload.ReadFrom(r); err != nil {
		return errors.New("read payload:" + err.Error())
	}
	resp := endpoint.HandleUpdate(b.payload.Bytes())
	b.Logger.Info("mqtt:command", slog.Int("status", resp.Status))
	return nil
}

// transport is the broker connection as the connected loop sees it.
// *tcp.Conn implements it.
type transport interface {
	SetDeadline(t time.Time) error
	BufferedInput() int
}

// session is the state of one established broker connection.
type session struct {
	client    *mqtt.Client
	conn      transport
	keepAlive time.Duration
	pubVar    mqtt.VariablesPublish
	lastPoll  time.Time
	pingSent  time.Time
}

func (b *Bridge) newSession(client *mqtt.Client, conn transport, keepAlive time.Duration, now time.Time) *session {
	return &session{
		client:    client,
		conn:      conn,
		keepAlive: keepAlive,
		pubVar:    mqtt.VariablesPublish{TopicName: []byte(b.StatusTopic())},
		lastPoll:  now,
	}
}

// step runs one round of the connected loop: it publishes at most one queued
// status, pings the broker when nothing was sent for half the keepalive and
// reads pending packets. An error means the connection must be dropped.
func (b *Bridge) step(s *session, now time.Time) error {
	select {
	case payload := <-b.statuses:
		s.conn.SetDeadline(now.Add(b.Timeout))
		err := s.client.PublishPayload(pubFlags, s.pubVar, payload)
		if err != nil {
			b.Logger.Error("mqtt:publish-failed", slog.Any("reason", err))
		} else {
			b.Logger.Info("mqtt:published-status", slog.Int("bytes", len(payload)))
		}
	default:
	}

	if s.client.AwaitingPingresp() {
		if now.Sub(s.pingSent) > s.keepAlive {
			return errors.New("no PINGRESP within keepalive")
		}
	} else if now.Sub(s.client.LastTx()) >= s.keepAlive/2 {
		s.conn.SetDeadline(now.Add(b.Timeout))
		if err := s.client.StartPing(); err != nil {
			return errors.New("ping:" + err.Error())
		}
		s.pingSent = now
		b.Logger.Debug("mqtt:ping")
	}

	if s.conn.BufferedInput() > 0 || now.Sub(s.lastPoll) >= b.HeartbeatInterval {
		s.lastPoll = now
		s.conn.SetDeadline(now.Add(b.PollTimeout))
		if err := s.client.HandleNext(); err != nil {
			return errors.New("handle next:" + err.Error())
		}
	}
	return nil
}

func (b *Bridge) newClient(endpoint Endpoint) *mqtt.Client {
	return mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 1024)},
		OnPub: func(pubHead mqtt.Header, varPub mqtt.VariablesPublish, r io.Reader) error {
			return b.handlePublish(endpoint, varPub.TopicName, r)
		},
	})
}

func (b *Bridge) connectVars() mqtt.VariablesConnect {
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(b.ID))
	if b.Username != "" {
		varconn.Username = []byte(b.Username)
		if b.Password != "" {
			varconn.Password = []byte(b.Password)
		}
	}
	return varconn
}

// Run connects to the broker at addr through stack and bridges commands and
// status until the device resets. It only returns on a configuration error.
func (b *Bridge) Run(stack *xnet.StackAsync, addr string, endpoint Endpoint) error {
	const pollTime = 5 * time.Millisecond

	b.Logger.Info("MQTT address: " + addr)
	broker, err := parseBrokerAddr(addr)
	if err != nil {
		return err
	}

	rstack := stack.StackRetrying(pollTime)
	if broker.Host != "" {
		b.Logger.Info("dns:resolving " + broker.Host)
		addrs, err := rstack.DoLookupIP(broker.Host, 5*time.Second, 3)
		if err != nil {
			return errors.New("dns lookup for " + broker.Host + ": " + err.Error())
		}
		if len(addrs) == 0 {
			return errors.New("dns lookup for " + broker.Host + ": no addresses returned")
		}
		broker.IP = addrs[0]
	}
	b.Logger.Info("resolved IP: " + broker.IP.String())

	varconn := b.connectVars()
	keepAlive := time.Duration(varconn.KeepAlive) * time.Second
	mqttClient := b.newClient(endpoint)

	var conn tcp.Conn
	err = conn.Configure(tcp.ConnConfig{
		RxBuf:             make([]byte, b.TCPBufSize),
		TxBuf:             make([]byte, b.TCPBufSize),
		TxPacketQueueSize: 3,
	})
	if err != nil {
		return errors.New("tcp configure:" + err.Error())
	}

	closeConn := func(reason string) {
		b.Logger.Error("tcpconn:closing", slog.String("reason", reason))
		conn.Close()
		for i := 0; i < 50 && !conn.State().IsClosed(); i++ {
			time.Sleep(100 * time.Millisecond)
		}
		conn.Abort()
	}

	serverAddr := netip.AddrPortFrom(broker.IP, broker.Port)
	subTopic := []byte(b.ReceiveTopic())

	for {
		localPort := uint16(stack.Prand32()>>17) + 1024
		b.Logger.Info("socket:dialing", slog.Uint64("localPort", uint64(localPort)))
		lcd.Send(b.LCD, "MQTT", "TCP handshake")
		err = rstack.DoDialTCP(&conn, localPort, serverAddr, 10*time.Second, 3)
		if err != nil {
			b.Logger.Error("socket:dial-failed", slog.String("err", err.Error()))
			closeConn("dial failed: " + err.Error())
			time.Sleep(2 * time.Second)
			continue
		}

		b.Logger.Info("mqtt:start-connecting")
		conn.SetDeadline(time.Now().Add(b.Timeout))
		err = mqttClient.StartConnect(&conn, &varconn)
		if err != nil {
			b.Logger.Error("mqtt:start-connect-failed", slog.String("reason", err.Error()))
			closeConn("connect failed")
			continue
		}
		retries := 50
		for retries > 0 && !mqttClient.IsConnected() {
			time.Sleep(100 * time.Millisecond)
			err = mqttClient.HandleNext()
			if err != nil {
				b.Logger.Error("mqtt:handle-next-failed", slog.String("err", err.Error()))
			}
			retries--
		}
		if !mqttClient.IsConnected() {
			b.Logger.Error("mqtt:connect-failed", slog.Any("reason", mqttClient.Err()))
			lcd.Send(b.LCD, "MQTT", "Timed out")
			closeConn("connect timed out")
			continue
		}

		conn.SetDeadline(time.Now().Add(b.Timeout))
		err = mqttClient.StartSubscribe(mqtt.VariablesSubscribe{
			PacketIdentifier: uint16(stack.Prand32()),
			TopicFilters: []mqtt.SubscribeRequest{
				{TopicFilter: subTopic, QoS: mqtt.QoS0},
			},
		})
		if err != nil {
			b.Logger.Error("mqtt:subscribe-failed", slog.String("err", err.Error()))
			closeConn("subscribe failed")
			continue
		}
		b.Logger.Info("mqtt:subscribed", slog.String("topic", string(subTopic)))
		lcd.Send(b.LCD, "MQTT", "Connected")

		// Publish the current state so retained status is fresh after a reconnect.
		if resp := endpoint.HandleStatus(); resp.Status == control.StatusOK {
			b.queue(resp.Body)
		}

		s := b.newSession(mqttClient, &conn, keepAlive, time.Now())
		for mqttClient.IsConnected() {
			if err = b.step(s, time.Now()); err != nil {
				b.Logger.Error("mqtt:link-failed", slog.String("reason", err.Error()))
				if mqttClient.IsConnected() {
					mqttClient.Disconnect(err)
				}
				break
			}
			// TinyGo runs on a single core, let the HTTP server and
			// packet pump goroutines run.
			runtime.Gosched()
		}

		b.Logger.Error("mqtt:disconnected", slog.Any("reason", mqttClient.Err()))
		lcd.Send(b.LCD, "MQTT", "Reconnecting...")
		closeConn("disconnected")
		runtime.Gosched()
	}
}

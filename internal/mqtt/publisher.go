package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/nugget/chatur/internal/buildinfo"
	"github.com/nugget/chatur/internal/config"
	"github.com/nugget/chatur/internal/events"
	"github.com/nugget/chatur/internal/supervisor"
)

// Options wires a Publisher to the rest of the process. All fields are
// optional.
type Options struct {
	// Bus feeds state transitions and processed commands.
	Bus *events.Bus
	// Commands receives messages from the command topic.
	Commands CommandSink
	// State reports the current activation state for the first publish
	// after a connect.
	State  func() string
	Logger *slog.Logger
}

// publishFunc sends one message. Tests replace it to capture traffic.
type publishFunc func(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error

// Publisher owns the broker connection.
type Publisher struct {
	cfg        config.MQTTConfig
	instanceID string
	device     DeviceInfo
	bus        *events.Bus
	commands   CommandSink
	state      func() string
	counter    *DailyCounter
	limiter    *messageRateLimiter
	logger     *slog.Logger

	cm      *autopaho.ConnectionManager
	publish publishFunc

	mu         sync.Mutex
	lastState  string
	lastIntent string
}

// New creates a Publisher but does not connect. Call [Publisher.Start].
func New(cfg config.MQTTConfig, instanceID string, opts Options) *Publisher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.State == nil {
		opts.State = func() string { return "idle" }
	}
	if cfg.PublishIntervalSec <= 0 {
		cfg.PublishIntervalSec = 60
	}
	if cfg.CommandRateLimit <= 0 {
		cfg.CommandRateLimit = 30
	}
	p := &Publisher{
		cfg:        cfg,
		instanceID: instanceID,
		device:     NewDeviceInfo(instanceID, cfg.DeviceName),
		bus:        opts.Bus,
		commands:   opts.Commands,
		state:      opts.State,
		counter:    NewDailyCounter(nil),
		limiter:    newMessageRateLimiter(int64(cfg.CommandRateLimit), time.Minute, opts.Logger),
		logger:     opts.Logger,
		lastIntent: "none",
	}
	p.publish = p.publishBroker
	return p
}

// Start connects and mirrors bus events until ctx is cancelled. On
// every (re-)connect it publishes discovery, availability and the
// current state, then re-subscribes to the command topic.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	// Subscribe before connecting so no transition is missed.
	var sub <-chan events.Event
	if p.bus != nil {
		sub = p.bus.Subscribe(64)
		defer p.bus.Unsubscribe(sub)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.availabilityTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected to broker", "broker", p.cfg.Broker)
			p.publishDiscovery(ctx)
			p.publishAvailability(ctx, "online")
			p.subscribeCommands(ctx, cm)
			p.setState(ctx, p.state())
			p.publishSensors(ctx)
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "chatur-" + p.cfg.DeviceName,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					go p.onCommand(ctx, pr.Packet.Topic, pr.Packet.Payload)
					return true, nil
				},
			},
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.mu.Lock()
	p.cm = cm
	p.mu.Unlock()

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		// autopaho keeps retrying in the background.
		p.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}

	go p.limiter.start(ctx)
	p.runLoop(ctx, sub)
	return nil
}

// AwaitConnection blocks until the broker connection is up or ctx is
// done. It backs the dependency watcher.
func (p *Publisher) AwaitConnection(ctx context.Context) error {
	cm := p.conn()
	if cm == nil {
		return fmt.Errorf("mqtt publisher not started")
	}
	return cm.AwaitConnection(ctx)
}

// Stop publishes "offline" and disconnects.
func (p *Publisher) Stop(ctx context.Context) error {
	cm := p.conn()
	if cm == nil {
		return nil
	}
	p.publishAvailability(ctx, "offline")
	return cm.Disconnect(ctx)
}

func (p *Publisher) conn() *autopaho.ConnectionManager {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cm
}

func (p *Publisher) publishBroker(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error {
	cm := p.conn()
	if cm == nil {
		return fmt.Errorf("mqtt publisher not started")
	}
	_, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     qos,
		Retain:  retain,
	})
	return err
}

// --- Topic helpers ---

func (p *Publisher) baseTopic() string {
	return "chatur/" + p.cfg.DeviceName
}

func (p *Publisher) availabilityTopic() string {
	return p.baseTopic() + "/availability"
}

// stateTopic carries the activation state (idle, listening, ...).
func (p *Publisher) stateTopic() string {
	return p.baseTopic() + "/state"
}

func (p *Publisher) commandTopic() string {
	return p.baseTopic() + "/command"
}

func (p *Publisher) serviceTopic() string {
	return p.baseTopic() + "/service"
}

func (p *Publisher) sensorTopic(entity string) string {
	return p.baseTopic() + "/sensor/" + entity
}

func (p *Publisher) discoveryTopic(component, entity string) string {
	return p.cfg.DiscoveryPrefix + "/" + component + "/" + p.cfg.DeviceName + "/" + entity + "/config"
}

// --- Discovery ---

type sensorDef struct {
	entity string
	config SensorConfig
}

func (p *Publisher) sensorDefinitions() []sensorDef {
	avail := p.availabilityTopic()
	def := func(entity, name, topic, icon string) sensorDef {
		return sensorDef{entity: entity, config: SensorConfig{
			Name:              p.device.Name + " " + name,
			UniqueID:          p.instanceID + "_" + entity,
			StateTopic:        topic,
			AvailabilityTopic: avail,
			Device:            p.device,
			Icon:              icon,
		}}
	}

	state := def("state", "State", p.stateTopic(), "mdi:microphone-message")
	intent := def("last_intent", "Last Intent", p.sensorTopic("last_intent"), "mdi:target")
	today := def("commands_today", "Commands Today", p.sensorTopic("commands_today"), "mdi:counter")
	today.config.StateClass = "total_increasing"
	today.config.UnitOfMeasurement = "commands"
	failures := def("failures_today", "Failures Today", p.sensorTopic("failures_today"), "mdi:alert-circle-outline")
	failures.config.StateClass = "total_increasing"
	uptime := def("uptime", "Uptime", p.sensorTopic("uptime"), "mdi:clock-outline")
	uptime.config.EntityCategory = "diagnostic"
	version := def("version", "Version", p.sensorTopic("version"), "mdi:tag")
	version.config.EntityCategory = "diagnostic"

	return []sensorDef{state, intent, today, failures, uptime, version}
}

func (p *Publisher) publishDiscovery(ctx context.Context) {
	for _, s := range p.sensorDefinitions() {
		topic := p.discoveryTopic("sensor", s.entity)
		payload, err := json.Marshal(s.config)
		if err != nil {
			p.logger.Error("mqtt marshal discovery payload", "entity", s.entity, "error", err)
			continue
		}
		if err := p.publish(ctx, topic, payload, 1, true); err != nil {
			p.logger.Warn("mqtt discovery publish failed", "entity", s.entity, "topic", topic, "error", err)
		}
	}
}

func (p *Publisher) publishAvailability(ctx context.Context, status string) {
	if err := p.publish(ctx, p.availabilityTopic(), []byte(status), 1, true); err != nil {
		p.logger.Warn("mqtt availability publish failed", "status", status, "error", err)
		return
	}
	p.logger.Info("mqtt availability published", "status", status)
}

func (p *Publisher) subscribeCommands(ctx context.Context, cm *autopaho.ConnectionManager) {
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: p.commandTopic(), QoS: 1}},
	}); err != nil {
		p.logger.Warn("mqtt command subscribe failed", "topic", p.commandTopic(), "error", err)
		return
	}
	p.logger.Debug("mqtt subscribed", "topic", p.commandTopic())
}

// onCommand runs a command and publishes the resulting status. It runs
// off the paho callback goroutine because the supervisor may take
// seconds to restart a service.
func (p *Publisher) onCommand(ctx context.Context, topic string, payload []byte) {
	st, ok := p.handleMessage(ctx, topic, payload)
	if !ok {
		return
	}
	p.publishService(ctx, st)
}

func (p *Publisher) publishService(ctx context.Context, st supervisor.Status) {
	payload, err := json.Marshal(struct {
		supervisor.Status
		State string `json:"state"`
	}{st, st.State()})
	if err != nil {
		return
	}
	if err := p.publish(ctx, p.serviceTopic(), payload, 1, true); err != nil {
		p.logger.Debug("mqtt service status publish failed", "error", err)
	}
}

// --- Event mirroring ---

func (p *Publisher) runLoop(ctx context.Context, sub <-chan events.Event) {
	ticker := time.NewTicker(time.Duration(p.cfg.PublishIntervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub:
			if !ok {
				sub = nil
				continue
			}
			p.handleEvent(ctx, e)
		case <-ticker.C:
			p.publishSensors(ctx)
		}
	}
}

// handleEvent maps one bus event onto the topics it affects.
func (p *Publisher) handleEvent(ctx context.Context, e events.Event) {
	switch e.Kind {
	case events.KindStateChange:
		if s, ok := e.Data["state"].(string); ok {
			p.setState(ctx, s)
		}
	case events.KindCommandProcessed:
		kind, _ := e.Data["intent"].(string)
		failed, _ := e.Data["failed"].(bool)
		p.counter.Record(failed)
		p.mu.Lock()
		if kind != "" {
			p.lastIntent = kind
		}
		p.mu.Unlock()
		p.publishSensors(ctx)
	case events.KindServiceStatus:
		st := supervisor.Status{}
		st.Service, _ = e.Data["service"].(string)
		st.Running, _ = e.Data["running"].(bool)
		st.Error, _ = e.Data["error"].(string)
		p.publishService(ctx, st)
	}
}

// setState publishes s unless it is already the retained value.
func (p *Publisher) setState(ctx context.Context, s string) {
	p.mu.Lock()
	if s == p.lastState {
		p.mu.Unlock()
		return
	}
	p.lastState = s
	p.mu.Unlock()

	if err := p.publish(ctx, p.stateTopic(), []byte(s), 1, true); err != nil {
		p.logger.Debug("mqtt state publish failed", "state", s, "error", err)
		// Publish again on the next attempt.
		p.mu.Lock()
		p.lastState = ""
		p.mu.Unlock()
	}
}

func (p *Publisher) publishSensors(ctx context.Context) {
	total, failures := p.counter.Snapshot()
	p.mu.Lock()
	last := p.lastIntent
	p.mu.Unlock()

	states := map[string]string{
		"last_intent":    last,
		"commands_today": strconv.FormatInt(total, 10),
		"failures_today": strconv.FormatInt(failures, 10),
		"uptime":         buildinfo.Uptime().Truncate(time.Second).String(),
		"version":        buildinfo.Version,
	}
	for entity, value := range states {
		if err := p.publish(ctx, p.sensorTopic(entity), []byte(value), 0, true); err != nil {
			p.logger.Debug("mqtt sensor publish failed", "entity", entity, "error", err)
		}
	}
}

package util

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

var Client MQTT.Client

var subscriptions map[string]MQTT.MessageHandler

var connectHandlers map[string]func(MQTT.Client)

// serializes reconnect attempts from concurrent sessions
var connectMu sync.Mutex

const publishTimeout = 5 * time.Second

// bumped on every successful broker connect, whoever made it
var connections atomic.Uint64

// ConnectionCount lets each session notice a reconnect made by another one.
func ConnectionCount() uint64 {
	return connections.Load()
}

func onlineTopic() string {
	return Config.GetString("topics.online")
}

var connectHandler MQTT.OnConnectHandler = func(client MQTT.Client) {
	Logger.Info().Msg("Connected")
	subscribe()
	if topic := onlineTopic(); topic != "" {
		client.Publish(topic, 0, false, "online").Wait()
	}
	if connectHandlers == nil {
		connectHandlers = make(map[string]func(client MQTT.Client))
	}
	for _, handler := range connectHandlers {
		handler(client)
	}
}

func RegisterMQTTConnectHook(name string, handler func(MQTT.Client)) {
	if connectHandlers == nil {
		connectHandlers = make(map[string]func(client MQTT.Client))
	}
	if handler == nil {
		delete(connectHandlers, name)
	} else {
		connectHandlers[name] = handler
	}
}

func subscribe() {
	if subscriptions == nil {
		subscriptions = make(map[string]MQTT.MessageHandler)
	}
	for topic, handler := range subscriptions {
		if token := Client.Subscribe(topic, 0, handler); token.Wait() && token.Error() != nil {
			Logger.Error().Msgf("Error Subscribing to %s: %v", topic, token.Error())
		}
	}
}

func RegisterMQTTSubscription(topic string, handler MQTT.MessageHandler) {
	if subscriptions == nil {
		subscriptions = make(map[string]MQTT.MessageHandler)
	}
	if handler == nil {
		delete(subscriptions, topic)
	} else {
		subscriptions[topic] = handler
	}
}

func receiver(client MQTT.Client, message MQTT.Message) {
	Logger.Warn().Msgf("Received message on %v but no handler", message.Topic())
}

var connectLostHandler MQTT.ConnectionLostHandler = func(client MQTT.Client, err error) {
	Logger.Warn().Msgf("Connect lost: %v", err)
}

// MqttInit builds the client and makes a first connection attempt. A failed
// attempt is logged; sessions keep retrying through EnsureConnected.
func MqttInit() {
	opts := MQTT.NewClientOptions()
	opts.AddBroker(Config.GetString("broker_uri"))
	opts.SetClientID(Config.GetString("id_base") + "-" + GetRandString(6))
	opts.SetUsername(Config.GetString("username"))
	opts.SetPassword(Config.GetString("password"))
	opts.SetCleanSession(Config.GetBool("cleansess"))
	opts.SetKeepAlive(30 * time.Second)
	opts.SetAutoReconnect(false)
	if topic := onlineTopic(); topic != "" {
		opts.SetWill(topic, "offline", 0, false)
	}
	opts.OnConnectionLost = connectLostHandler
	opts.OnConnect = connectHandler
	opts.SetDefaultPublishHandler(receiver)

	connectMu.Lock()
	defer connectMu.Unlock()

	if Client != nil {
		Logger.Debug().Msg("Client exists - destroying")
		if Client.IsConnected() {
			Client.Disconnect(1000)
		}
		Client = nil
	}

	Client = MQTT.NewClient(opts)

	if token := Client.Connect(); token.Wait() && token.Error() != nil {
		Logger.Error().Msgf("initial broker connection failed: %v", token.Error())
	} else {
		connections.Add(1)
	}
}

func MQTTConnected() bool {
	return Client != nil && Client.IsConnected()
}

// MQTTConnect makes one connection attempt if the client is not connected.
func MQTTConnect() error {
	connectMu.Lock()
	defer connectMu.Unlock()
	if Client == nil {
		return fmt.Errorf("mqtt client not initialized")
	}
	if Client.IsConnected() {
		return nil
	}
	token := Client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	connections.Add(1)
	return nil
}

// Publish sends a QoS 0 message and waits for it to leave the client.
func Publish(topic string, payload interface{}) error {
	if !MQTTConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	token := Client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

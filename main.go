package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/elijahnyp/roomsense/ble"
	"github.com/elijahnyp/roomsense/imu"
	"github.com/elijahnyp/roomsense/notify"
	"github.com/elijahnyp/roomsense/state"
	. "github.com/elijahnyp/roomsense/util"
)

// replaced whole on config reload, never mutated in place
var model atomic.Pointer[Model]

func reloadModel() error {
	var m Model
	if err := m.BuildModel(); err != nil {
		return err
	}
	model.Store(&m)
	return nil
}

type session interface {
	Run(ctx context.Context) error
}

func main() {
	LogInit("trace")
	SetupConfig()
	RegisterNewConfigListener(func() { LogInit(Config.GetString("log_level")) })
	OnNewConfig()
	if err := reloadModel(); err != nil {
		Logger.Fatal().Msgf("invalid configuration: %v", err)
	}
	// sessions keep the zones they started with; a reload only refreshes
	// discovery and the status API
	RegisterNewConfigListener(func() {
		if err := reloadModel(); err != nil {
			Logger.Error().Msgf("Error building model: %v", err)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := &inboundRouter{}
	for _, topic := range model.Load().SubscribeTopics() {
		RegisterMQTTSubscription(topic, router.handler)
	}
	if Config.GetBool("ha_discovery") {
		RegisterMQTTConnectHook("haadvertise", func(client MQTT.Client) {
			AdvertiseHA(*model.Load(), client)
		})
	}
	MqttInit()
	RegisterNewConfigListener(MqttInit)

	store := state.NewStore()
	sink, err := NewInfluxSink()
	if err != nil {
		Logger.Error().Msgf("influx disabled: %v", err)
	}
	defer sink.Close()

	notifiers, notifySettings, err := notify.FromConfig()
	if err != nil {
		Logger.Error().Msgf("notifications disabled: %v", err)
	}
	if len(notifiers) == 0 {
		Logger.Warn().Msg("no notifier configured, alerts will only be logged")
	}
	dispatcher := notify.NewDispatcher(notifiers, notifySettings.Workers)
	dispatcher.Start(ctx)

	hub := NewHub()
	go hub.Run()

	monitor := NewMonitorServer()
	monitor.AddHandler("/api/status", APISystemStatus(store))
	monitor.AddHandler("/api/zone", APIZoneDetail(store, model.Load))
	monitor.AddHandler("/ws", ServeWebSocket(hub))
	if err := monitor.Start(); err != nil {
		Logger.Error().Msgf("Error starting monitor server: %v", err)
	}
	RegisterNewConfigListener(func() { monitor.Restart() })

	deps := sessionDeps{
		publish: Publish,
		store:   store,
		sink:    sink,
		hub:     hub,
	}
	sessions := buildSessions(ctx, deps, router, dispatcher)
	if len(sessions) == 0 {
		Logger.Fatal().Msg("no session enabled")
	}

	go OnlinePinger(ctx, store)
	go HAAdvertiser(ctx)
	Logger.Info().Msg("ready")

	var wg sync.WaitGroup
	for name, s := range sessions {
		wg.Add(1)
		go func(name string, s session) {
			defer wg.Done()
			if err := s.Run(ctx); err != nil && ctx.Err() == nil {
				Logger.Error().Msgf("%s session stopped: %v", name, err)
			}
		}(name, s)
	}
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := monitor.Shutdown(shutdownCtx); err != nil {
		Logger.Warn().Msgf("monitor shutdown: %v", err)
	}
	if Client != nil && Client.IsConnected() {
		Client.Disconnect(250)
	}
	Logger.Info().Msg("stopped")
}

func buildSessions(ctx context.Context, shared sessionDeps, router *inboundRouter, alerts alerter) map[string]session {
	sessions := make(map[string]session)
	m := *model.Load()
	// every session tracks reconnects on its own reconnector
	withConn := func() sessionDeps {
		deps := shared
		deps.conn = NewMQTTReconnector()
		return deps
	}

	if Config.GetBool("presence.enabled") && len(m.Zones) > 0 {
		var cfg PresenceConfig
		if err := Config.UnmarshalKey("presence", &cfg); err != nil {
			Logger.Fatal().Msgf("presence config: %v", err)
		}
		p := NewPresenceSession(cfg, m, ble.NewScanner(), withConn())
		router.add(p.inbound)
		sessions["presence"] = p
	}

	if Config.GetBool("imu.enabled") {
		var cfg IMUConfig
		if err := Config.UnmarshalKey("imu", &cfg); err != nil {
			Logger.Fatal().Msgf("imu config: %v", err)
		}
		source, err := imu.OpenI2C(imu.I2CConfig{Bus: cfg.I2CBus, Address: cfg.Address})
		if err != nil {
			Logger.Error().Msgf("imu session disabled: %v", err)
		} else {
			go func() {
				<-ctx.Done()
				if err := source.Close(); err != nil {
					Logger.Debug().Msgf("close imu: %v", err)
				}
			}()
			if cfg.AdvertiseName != "" {
				if stopAdv, err := ble.Advertise(cfg.AdvertiseName); err != nil {
					Logger.Warn().Msgf("ble advertising unavailable: %v", err)
				} else {
					go func() {
						<-ctx.Done()
						stopAdv()
					}()
				}
			}
			i := NewIMUSession(cfg, m, source, withConn())
			router.add(i.inbound)
			sessions["imu"] = i
		}
	}

	if Config.GetBool("wheelchair.enabled") {
		var cfg WheelchairConfig
		if err := Config.UnmarshalKey("wheelchair", &cfg); err != nil {
			Logger.Fatal().Msgf("wheelchair config: %v", err)
		}
		link := &uartLink{client: ble.NewUARTClient(cfg.Target, time.Duration(cfg.ScanTime)*time.Second)}
		w := NewWheelchairSession(cfg, m, link, alerts, withConn())
		router.add(w.inbound)
		sessions["wheelchair"] = w
	}

	return sessions
}

// OnlinePinger keeps the availability topic fresh and mirrors broker
// reachability into the status store.
func OnlinePinger(ctx context.Context, store *state.Store) {
	interval := time.Duration(Config.GetInt("online_interval")) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		store.SetBroker(MQTTConnected())
		if topic := Config.GetString("topics.online"); topic != "" && MQTTConnected() {
			if err := Publish(topic, "online"); err != nil {
				Logger.Error().Msgf("Error publishing online message: %v", err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// HAAdvertiser repeats Home Assistant discovery every 5 minutes.
func HAAdvertiser(ctx context.Context) {
	if !Config.GetBool("ha_discovery") {
		return
	}
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if MQTTConnected() {
				Logger.Debug().Msg("Advertising Home Assistant discovery messages")
				AdvertiseHA(*model.Load(), Client)
			}
		}
	}
}

package util

import (
	"crypto/rand"
	"fmt"
	"reflect"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "ROOMSENSE"

var Config = viper.New()

var config_listeners []func()

func RegisterNewConfigListener(new_listener func()) {
	for _, listener := range config_listeners {
		if reflect.ValueOf(new_listener).Pointer() == reflect.ValueOf(listener).Pointer() {
			Logger.Warn().Msg("config listener already registered")
			return
		}
	}
	config_listeners = append(config_listeners, new_listener)
}

func OnNewConfig() {
	for _, listener := range config_listeners {
		listener()
	}
}

func GetRandString(n int) string {
	const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, n)
	for i := range b {
		randBytes := make([]byte, 1)
		if _, err := rand.Read(randBytes); err != nil {
			b[i] = letterBytes[i%len(letterBytes)]
		} else {
			b[i] = letterBytes[int(randBytes[0])%len(letterBytes)]
		}
	}
	return string(b)
}

func setDefaults() {
	Config.SetDefault("log_level", "info")
	Config.SetDefault("log_format", "console")

	// broker
	Config.SetDefault("broker_uri", "tcp://broker.emqx.io:1883")
	Config.SetDefault("id_base", "roomsense")
	Config.SetDefault("username", "")
	Config.SetDefault("password", "")
	Config.SetDefault("cleansess", true)
	Config.SetDefault("reconnect_interval", 5)
	Config.SetDefault("online_interval", 10)

	Config.SetDefault("topics.imu", "ton/server/m5")
	Config.SetDefault("topics.devices", "ton/server/devices")
	Config.SetDefault("topics.post", "ton/server/post")
	Config.SetDefault("topics.get", "ton/server/get")
	Config.SetDefault("topics.online", "ton/server/online")

	Config.SetDefault("details_port", 8080)
	Config.SetDefault("insecure_tls", false)
	Config.SetDefault("ha_discovery", true)

	Config.SetDefault("presence.enabled", true)
	Config.SetDefault("presence.scan_time", 2)
	Config.SetDefault("presence.cycle_delay_ms", 2000)

	Config.SetDefault("imu.enabled", false)
	Config.SetDefault("imu.address", 0x68)
	Config.SetDefault("imu.interval_ms", 100)
	Config.SetDefault("imu.batch_size", 5)
	Config.SetDefault("imu.suffix", "m")
	Config.SetDefault("imu.advertise_name", "M5Capsule")

	Config.SetDefault("wheelchair.enabled", false)
	Config.SetDefault("wheelchair.target", "M5")
	Config.SetDefault("wheelchair.scan_time", 5)
	Config.SetDefault("wheelchair.interval_ms", 100)
	Config.SetDefault("wheelchair.link_timeout", 30)
	Config.SetDefault("wheelchair.batch_size", 5)
	Config.SetDefault("wheelchair.suffix", "1")
	Config.SetDefault("wheelchair.fall_threshold", 0.7)
	Config.SetDefault("wheelchair.fall_count", 5)
	Config.SetDefault("wheelchair.alert_message", "Alert Wheelchair has Fallen")
	Config.SetDefault("wheelchair.forward_raw", true)

	Config.SetDefault("notify.workers", 1)
	Config.SetDefault("notify.http.url", "https://notify-api.line.me/api/notify")
	Config.SetDefault("notify.http.timeout", 10)
}

func SetupConfig() {
	Config.SetEnvPrefix(ENV_PREFIX)
	setDefaults()

	// config file
	Config.SetConfigName("roomsense")
	Config.AddConfigPath("/")
	Config.AddConfigPath("./")
	Config.AddConfigPath("./config")
	Config.AddConfigPath("/etc")
	Config.AddConfigPath("/roomsense")
	Config.AddConfigPath("/roomsense/config")

	err := Config.ReadInConfig()
	if err != nil {
		Logger.Error().Msgf("unable to read config file: %v", fmt.Errorf("%v", err))
	}

	// environment variables
	Config.AutomaticEnv()

	// watch for changes
	Config.WatchConfig()
	Config.OnConfigChange(func(e fsnotify.Event) {
		Logger.Info().Msgf("Config file changed: %v", e.Name)
		Logger.Debug().Msgf("Config Additional Info: %v", e.String())
		OnNewConfig()
	})
}

package util

import (
	"encoding/json"
	"fmt"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/elijahnyp/roomsense/presence"
)

type HAAvdvertisementAvailability struct {
	Topic               string `json:"topic"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`
}

type HADeviceSpec struct {
	Name        string   `json:"name"`
	Identifiers []string `json:"ids"`
}

type HAAdvertisement struct { //nolint:govet // struct layout optimized for JSON field order
	HAAvdvertisementAvailability []HAAvdvertisementAvailability `json:"availability"`
	Device                       HADeviceSpec                   `json:"device"`
	UniqueID                     string                         `json:"uniq_id"`
	Name                         string                         `json:"name"`
	StateTopic                   string                         `json:"state_topic"`
	ValueTemplate                string                         `json:"value_template"`
	PayloadOn                    string                         `json:"payload_on"`
	PayloadOff                   string                         `json:"payload_off"`
	DeviceClass                  string                         `json:"device_class"`
	Platform                     string                         `json:"platform"`
	Qos                          int                            `json:"qos"`
}

func (ha HAAdvertisement) ToJson() string {
	data, err := json.Marshal(ha)
	if err != nil {
		Logger.Error().Msgf("Error marshalling HAAdvertisement: %v", err)
		return ""
	}
	return string(data)
}

// roomTemplate picks this room's status out of the shared devices topic and
// keeps the last value for other rooms' messages.
func roomTemplate(room string) string {
	return fmt.Sprintf(
		"{%% if value_json.room == '%s' %%}{{ value_json.status }}{%% elif this.state == 'on' %%}%s{%% else %%}%s{%% endif %%}",
		room, presence.In, presence.Out,
	)
}

func ConstructHAAdvertisement(room, stateTopic string) HAAdvertisement {
	return HAAdvertisement{
		Name:          room,
		StateTopic:    stateTopic,
		ValueTemplate: roomTemplate(room),
		PayloadOn:     presence.In.String(),
		PayloadOff:    presence.Out.String(),
		HAAvdvertisementAvailability: []HAAvdvertisementAvailability{
			{
				Topic:               onlineTopic(),
				PayloadAvailable:    "online",
				PayloadNotAvailable: "offline",
			},
		},
		Qos:         0,
		UniqueID:    "roomsense_presence-" + room,
		DeviceClass: "occupancy",
		Platform:    "binary_sensor",
		Device: HADeviceSpec{
			Name:        "roomsense",
			Identifiers: []string{"roomsense_" + Config.GetString("id_base")},
		},
	}
}

func AdvertiseHA(m Model, client MQTT.Client) {
	if m.Topics.Devices == "" {
		return
	}
	for _, zone := range m.Zones {
		ha := ConstructHAAdvertisement(zone.Room, m.Topics.Devices)
		if token := client.Publish("homeassistant/binary_sensor/"+zone.Room+"/occupancy/config", 0, false, ha.ToJson()); token.Wait() && token.Error() != nil {
			Logger.Error().Msgf("Error Publishing: %v", fmt.Errorf("%v", token.Error()))
		}
	}
}

package ble

import (
	"fmt"

	. "github.com/elijahnyp/roomsense/util"
	"tinygo.org/x/bluetooth"
)

// Advertise broadcasts a fixed local name so presence gateways can find this
// host. The returned func stops advertising.
func Advertise(name string) (func(), error) {
	adapter := bluetooth.DefaultAdapter
	if err := enable(adapter); err != nil {
		return nil, err
	}
	adv := adapter.DefaultAdvertisement()
	if err := adv.Configure(bluetooth.AdvertisementOptions{LocalName: name}); err != nil {
		return nil, fmt.Errorf("configure advertisement: %w", err)
	}
	if err := adv.Start(); err != nil {
		return nil, fmt.Errorf("start advertisement: %w", err)
	}
	Logger.Info().Msgf("advertising as %q", name)
	return func() {
		if err := adv.Stop(); err != nil {
			Logger.Debug().Msgf("stop advertisement: %v", err)
		}
	}, nil
}

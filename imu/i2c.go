package imu

import (
	"encoding/binary"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Source produces IMU samples on demand.
type Source interface {
	Read() (Sample, error)
	Close() error
}

// MPU-6050 register map, default full-scale ranges (±2 g, ±250 dps).
const (
	regPowerMgmt1  = 0x6B
	regAccelXoutH  = 0x3B
	burstLen       = 14
	accelLSBPerG   = 16384.0
	gyroLSBPerDPS  = 131.0
	DefaultAddress = 0x68
)

type I2CConfig struct {
	Bus     string `mapstructure:"i2c_bus"`
	Address uint16 `mapstructure:"address"`
}

// I2CSource reads an MPU-6050 compatible IMU over Linux I2C.
type I2CSource struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

func OpenI2C(cfg I2CConfig) (*I2CSource, error) {
	if cfg.Address == 0 {
		cfg.Address = DefaultAddress
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.Bus, err)
	}
	dev := &i2c.Dev{Addr: cfg.Address, Bus: bus}
	// clear sleep bit
	if err := dev.Tx([]byte{regPowerMgmt1, 0x00}, nil); err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("wake imu at 0x%02X: %w", cfg.Address, err)
	}
	return &I2CSource{bus: bus, dev: dev}, nil
}

func (s *I2CSource) Read() (Sample, error) {
	raw := make([]byte, burstLen)
	if err := s.dev.Tx([]byte{regAccelXoutH}, raw); err != nil {
		return Sample{}, fmt.Errorf("read imu registers: %w", err)
	}
	return decodeBurst(raw), nil
}

func (s *I2CSource) Close() error {
	return s.bus.Close()
}

// decodeBurst converts the accel/temp/gyro register burst (big-endian
// int16s) into scaled units. Temperature is skipped.
func decodeBurst(raw []byte) Sample {
	word := func(i int) float64 {
		return float64(int16(binary.BigEndian.Uint16(raw[i : i+2])))
	}
	return Sample{
		Ax: word(0) / accelLSBPerG,
		Ay: word(2) / accelLSBPerG,
		Az: word(4) / accelLSBPerG,
		Gx: word(8) / gyroLSBPerDPS,
		Gy: word(10) / gyroLSBPerDPS,
		Gz: word(12) / gyroLSBPerDPS,
	}
}

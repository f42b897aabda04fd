// Package config provides configuration helpers for go-senxor commands.
package config

import (
	"os"
)

// Default bus and pin assignments for a Raspberry Pi 5 with the MI48
// breakout wired to SPI0 CE1 and the default I2C bus.
const (
	DefaultI2CBus   = "1"
	DefaultI2CAddr  = 0x40
	DefaultSPIPort  = "SPI0.1"
	DefaultReadyPin = "GPIO24"
	DefaultResetPin = "GPIO23"
)

// I2CBus returns the I2C bus name from THERMAL_I2C or the default.
func I2CBus() string {
	if bus := os.Getenv("THERMAL_I2C"); bus != "" {
		return bus
	}
	return DefaultI2CBus
}

// SPIPort returns the SPI port name from THERMAL_SPI or the default.
func SPIPort() string {
	if port := os.Getenv("THERMAL_SPI"); port != "" {
		return port
	}
	return DefaultSPIPort
}

// ReadyPin returns the data-ready GPIO name from THERMAL_DATA_READY_PIN
// or the default.
func ReadyPin() string {
	if pin := os.Getenv("THERMAL_DATA_READY_PIN"); pin != "" {
		return pin
	}
	return DefaultReadyPin
}

// ResetPin returns the sensor reset GPIO name from THERMAL_RESET_PIN
// or the default.
func ResetPin() string {
	if pin := os.Getenv("THERMAL_RESET_PIN"); pin != "" {
		return pin
	}
	return DefaultResetPin
}

//go:build !usbmini

package config

import "github.com/clktmr/ps2/drivers/modules"

const defaultUSB = modules.USBStandard

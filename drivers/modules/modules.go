// Package modules names the IOP modules of the bring-up and groups them into
// batches.
//
// A batch is loaded as a whole and in order, since later modules import from
// earlier ones. Which batches exist is a closed set, variants are picked by
// configuration before the bring-up starts.
package modules

import "fmt"

// Module names as reported by the IRX headers of the platform SDK.
const (
	IOManX  = "iomanX"
	FileXio = "fileXio"
	Sio2man = "sio2man"
	Padman  = "padman"
	Libsd   = "libsd"
	Audsrv  = "audsrv"

	USBD          = "usbd"
	USBMassBD     = "usbmass_bd"
	USBDMini      = "usbd_mini"
	USBMassBDMini = "usbmass_bd_mini"
	BDM           = "bdm"
	BDMFSFatFS    = "bdmfs_fatfs"
	PS2HDD        = "ps2hdd"
	PS2FS         = "ps2fs"
	PS2Dev9       = "ps2dev9"
	PS2Atad       = "ps2atad"
)

// Batch is an ordered list of modules.
type Batch []string

// USBVariant selects the USB host driver flavour.
type USBVariant string

const (
	USBStandard USBVariant = "standard"
	USBMini     USBVariant = "mini"
)

func (v USBVariant) Valid() bool {
	return v == USBStandard || v == USBMini
}

// Required returns the modules every bring-up loads, in load order: I/O
// manager extensions, serial I/O, pad input and the sound library.
func Required() Batch {
	return Batch{IOManX, FileXio, Sio2man, Padman, Libsd}
}

// USB returns the USB mass storage stack for variant.
func USB(variant USBVariant) (Batch, error) {
	var b Batch
	switch variant {
	case USBStandard:
		b = Batch{USBD, USBMassBD}
	case USBMini:
		b = Batch{USBDMini, USBMassBDMini}
	default:
		return nil, fmt.Errorf("unknown usb variant %q", variant)
	}
	return append(b, BDM, BDMFSFatFS), nil
}

// HDD returns the internal hard disk stack. The legacy ATA driver is appended
// if legacyATA is set.
func HDD(legacyATA bool) Batch {
	b := Batch{PS2HDD, PS2FS, PS2Dev9}
	if legacyATA {
		b = append(b, PS2Atad)
	}
	return b
}

// AudioServer is loaded last, after all optional batches.
func AudioServer() Batch {
	return Batch{Audsrv}
}

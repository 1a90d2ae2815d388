// Package usbdevice implements the USB-to-UART bridge transport described
// in spec.md §6: a CP210x control sequence for bring-up, bulk OUT/IN
// transfers for the Icarus-family work/nonce wire format.
//
// Kept+adapted from the source module's internal/driver/device/usb_device.go:
// the gousb.Context/Device/Config/Interface/Endpoint open sequence and the
// SendPacket/ReadPacket bulk-transfer helpers are structurally the same.
// BuildTxTaskFromHeader/ParseRxNonce and the Bitmain CRC16 framing are
// replaced outright with spec.md §6's CP210x control sequence and the
// no-CRC, no-header-byte Icarus-family wire format (pkg/mining/wire.go).
package usbdevice

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/gousb"

	"hashwork/internal/minererr"
	"hashwork/pkg/mining"
)

// USB identifiers and endpoint numbers per spec.md §6.
const (
	VendorID  gousb.ID = 0x10c4
	ProductID gousb.ID = 0xea60

	EndpointOut = 0x01
	EndpointIn  = 0x81

	configNum    = 1
	interfaceNum = 0
	altSetting   = 0
)

// CP210x control-transfer constants per spec.md §6.
const (
	cp210xRequestType = 0x41

	cp210xIFCEnable    = 0x00
	cp210xIFCEnableOn  = 0x0001
	cp210xSetLineCtl   = 0x07
	cp210xLineCtl8N1   = 0x0303
	cp210xSetBaudRate  = 0x1e
	cp210xBaudRate     = 115200
	cp210xControlDelay = 5 * time.Millisecond
)

// Device wraps a bulk-transfer USB-to-UART bridge connection to one
// Icarus-family hashing device.
type Device struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	epOut  *gousb.OutEndpoint
	epIn   *gousb.InEndpoint
}

// Open finds, claims, and initializes the device at VendorID/ProductID,
// running the reset / detach-kernel-driver / select-config / enable-UART /
// set-line-coding / set-baud-rate sequence spec.md §6 names. Every step
// failure is wrapped as a fatal minererr.KindUsb error.
func Open() (*Device, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(VendorID, ProductID)
	if err != nil {
		ctx.Close()
		return nil, minererr.New(minererr.KindUsb, "open device").WithCause(err)
	}
	if dev == nil {
		ctx.Close()
		return nil, minererr.New(minererr.KindUsb, "device not found").
			WithDetail("vid=0x%04x pid=0x%04x", VendorID, ProductID)
	}

	if err := dev.Reset(); err != nil {
		dev.Close()
		ctx.Close()
		return nil, minererr.New(minererr.KindUsb, "reset device").WithCause(err)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return nil, minererr.New(minererr.KindUsb, "detach kernel driver").WithCause(err)
	}

	config, err := dev.Config(configNum)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, minererr.New(minererr.KindUsb, "select configuration").WithCause(err)
	}

	intf, err := config.Interface(interfaceNum, altSetting)
	if err != nil {
		config.Close()
		dev.Close()
		ctx.Close()
		return nil, minererr.New(minererr.KindUsb, "claim interface").WithCause(err)
	}

	epOut, err := intf.OutEndpoint(EndpointOut)
	if err != nil {
		intf.Close()
		config.Close()
		dev.Close()
		ctx.Close()
		return nil, minererr.New(minererr.KindUsb, "open OUT endpoint").WithCause(err)
	}

	epIn, err := intf.InEndpoint(EndpointIn)
	if err != nil {
		intf.Close()
		config.Close()
		dev.Close()
		ctx.Close()
		return nil, minererr.New(minererr.KindUsb, "open IN endpoint").WithCause(err)
	}

	d := &Device{ctx: ctx, dev: dev, config: config, intf: intf, epOut: epOut, epIn: epIn}

	if err := d.enableUART(); err != nil {
		d.Close()
		return nil, err
	}

	return d, nil
}

// enableUART runs the CP210x bring-up sequence: enable UART, set line
// coding to 8N1, set the baud rate to 115200.
func (d *Device) enableUART() error {
	if _, err := d.dev.Control(cp210xRequestType, cp210xIFCEnable, cp210xIFCEnableOn, 0, nil); err != nil {
		return minererr.New(minererr.KindUsb, "enable UART").WithCause(err)
	}
	time.Sleep(cp210xControlDelay)

	if _, err := d.dev.Control(cp210xRequestType, cp210xSetLineCtl, cp210xLineCtl8N1, 0, nil); err != nil {
		return minererr.New(minererr.KindUsb, "set line coding").WithCause(err)
	}
	time.Sleep(cp210xControlDelay)

	baud := make([]byte, 4)
	binary.LittleEndian.PutUint32(baud, cp210xBaudRate)
	if _, err := d.dev.Control(cp210xRequestType, cp210xSetBaudRate, 0, 0, baud); err != nil {
		return minererr.New(minererr.KindUsb, "set baud rate").WithCause(err)
	}
	time.Sleep(cp210xControlDelay)

	return nil
}

// CheckDeviceState probes for the expected VID/PID without claiming the
// device, so a caller can report an actionable "not present" error instead
// of an opaque failure partway through Open's control-transfer sequence.
// Grounded on controller.go's CheckDeviceState diagnostics map, narrowed
// from that function's kernel-module/sysfs inspection (meaningless for a
// plain USB bulk device) to what gousb can actually observe: bus presence.
func CheckDeviceState() (map[string]string, error) {
	state := make(map[string]string)

	ctx := gousb.NewContext()
	defer ctx.Close()

	dev, err := ctx.OpenDeviceWithVIDPID(VendorID, ProductID)
	if err != nil {
		state["device_present"] = "false"
		state["open_error"] = err.Error()
		return state, minererr.New(minererr.KindUsb, "probe device").WithCause(err)
	}
	if dev == nil {
		state["device_present"] = "false"
		return state, minererr.New(minererr.KindUsb, "device not found").
			WithDetail("vid=0x%04x pid=0x%04x", VendorID, ProductID)
	}
	defer dev.Close()

	state["device_present"] = "true"
	state["bus"] = fmt.Sprintf("%v", dev.Desc.Bus)
	state["address"] = fmt.Sprintf("%v", dev.Desc.Address)
	return state, nil
}

// Close releases the USB handle. Safe to call on a partially-initialized
// Device (Open calls it on its own failure paths).
func (d *Device) Close() error {
	if d.intf != nil {
		d.intf.Close()
		d.intf = nil
	}
	if d.config != nil {
		d.config.Close()
		d.config = nil
	}
	if d.dev != nil {
		d.dev.Close()
		d.dev = nil
	}
	if d.ctx != nil {
		d.ctx.Close()
		d.ctx = nil
	}
	return nil
}

// SendWork writes a 64-byte work payload to the device's bulk OUT endpoint.
func (d *Device) SendWork(payload []byte) error {
	if _, err := d.epOut.Write(payload); err != nil {
		return minererr.New(minererr.KindUsb, "bulk write").WithCause(err)
	}
	return nil
}

// ReadNonce reads a nonce reply from the device's bulk IN endpoint within
// timeout. A context deadline exceeded is surfaced unwrapped so callers can
// distinguish "no nonce yet" (expected, non-fatal) from a genuine transport
// failure.
func (d *Device) ReadNonce(ctx context.Context, timeout time.Duration) (uint32, error) {
	readCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	buf := make([]byte, 64)
	n, err := d.epIn.ReadContext(readCtx, buf)
	if err != nil {
		if readCtx.Err() != nil {
			return 0, readCtx.Err()
		}
		return 0, minererr.New(minererr.KindUsb, "bulk read").WithCause(err)
	}

	// A short read here is a contract violation, not a transport error:
	// DecodeNonceReply panics rather than returning one, so it can't be
	// mistaken downstream for an ordinary timeout.
	return mining.DecodeNonceReply(buf[:n]), nil
}

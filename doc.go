// Package mn864xx controls the Panasonic MN864xx DisplayPort to HDMI bridge.
//
// The bridge sits behind the southbridge of PlayStation 4 consoles. The host
// never touches its registers directly: it sends batches of register
// operations to the southbridge firmware, which runs them against the bridge
// and answers with one consolidated reply.
//
// # Bridge Variants
//
// Two revisions exist and are selected from the board model:
//
//	Board      Southbridge id  Bridge
//	CUH-11xx   0x9920          MN86471A
//	CUH-12xx   0x9922          MN864729
//	CUH-2xxx   0x9923          MN864729
//	CUH-7xxx   0x9924          MN864729
//
// # Basic Usage
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"periph.io/x/conn/v3/i2c"
//		"periph.io/x/conn/v3/i2c/i2creg"
//		"periph.io/x/devices/v3/mn864xx"
//		"periph.io/x/devices/v3/mn864xx/icc"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		if _, err := host.Init(); err != nil {
//			log.Fatal(err)
//		}
//		bus, err := i2creg.Open("")
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer bus.Close()
//
//		inv := icc.NewConn(&i2c.Dev{Bus: bus, Addr: 0x40}, nil)
//		dev, err := mn864xx.New(inv, &mn864xx.Opts{Model: mn864xx.CUH12xx})
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer dev.Halt()
//
//		ctx := context.Background()
//		if ok, _ := dev.Detect(ctx); !ok {
//			log.Fatal("no sink connected")
//		}
//		if err := dev.PreEnable(ctx); err != nil {
//			log.Fatal(err)
//		}
//		if err := dev.Enable(ctx, 16); err != nil { // 1920x1080p60
//			log.Print(err)
//		}
//	}
//
// # Transactions
//
// Every method runs one or more transactions. A transaction holds the device
// lock from the moment its queue is reset until the reply has been copied,
// so methods may be called from several goroutines.
//
// Hot-plug detection is a single register read; a failing probe is reported
// as disconnected together with the error.
//
// # Video Modes
//
// Only CEA modes 4 (1280x720p60), 16 (1920x1080p60) and 63 (1920x1080p120)
// are supported; see ModeValid.
package mn864xx

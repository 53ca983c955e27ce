package icc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"
)

// USBConfig describes a USB bulk link to the host controller.
type USBConfig struct {
	VendorID    uint16        `mapstructure:"vendor_id"`
	ProductID   uint16        `mapstructure:"product_id"`
	OutEndpoint int           `mapstructure:"out_endpoint"`
	InEndpoint  int           `mapstructure:"in_endpoint"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// USB is a cmdq.Invoker over a pair of bulk endpoints. Each frame travels as
// one bulk transfer.
type USB struct {
	mu      sync.Mutex
	ctx     *gousb.Context
	dev     *gousb.Device
	done    func()
	out     *gousb.OutEndpoint
	in      *gousb.InEndpoint
	timeout time.Duration
	log     *zap.Logger
	buf     []byte
	rbuf    []byte
}

// OpenUSB claims the default interface of the first device matching cfg.
// log may be nil.
func OpenUSB(cfg USBConfig, log *zap.Logger) (*USB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(
		zap.String("transport", "usb"),
		zap.String("vid", fmt.Sprintf("%04x", cfg.VendorID)),
		zap.String("pid", fmt.Sprintf("%04x", cfg.ProductID)),
	)
	if cfg.OutEndpoint == 0 {
		cfg.OutEndpoint = 1
	}
	if cfg.InEndpoint == 0 {
		cfg.InEndpoint = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(cfg.VendorID), gousb.ID(cfg.ProductID))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("icc: open usb device: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("icc: usb device %04x:%04x not found", cfg.VendorID, cfg.ProductID)
	}
	if err := dev.SetAutoDetach(true); err != nil {
		log.Warn("auto detach unavailable", zap.Error(err))
	}
	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("icc: claim usb interface: %w", err)
	}
	u := &USB{
		ctx:     ctx,
		dev:     dev,
		done:    done,
		timeout: cfg.Timeout,
		log:     log,
		buf:     make([]byte, 0, MaxFrame),
		rbuf:    make([]byte, MaxFrame),
	}
	if u.out, err = intf.OutEndpoint(cfg.OutEndpoint); err != nil {
		u.Close()
		return nil, fmt.Errorf("icc: out endpoint %d: %w", cfg.OutEndpoint, err)
	}
	if u.in, err = intf.InEndpoint(cfg.InEndpoint); err != nil {
		u.Close()
		return nil, fmt.Errorf("icc: in endpoint %d: %w", cfg.InEndpoint, err)
	}
	log.Info("usb link open")
	return u, nil
}

// Invoke implements cmdq.Invoker.
func (u *USB) Invoke(ctx context.Context, channel, sub uint8, req, reply []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.dev == nil {
		return 0, ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	frame, err := appendRequest(u.buf[:0], channel, sub, req)
	if err != nil {
		return 0, err
	}
	if _, err := u.out.WriteContext(ctx, frame); err != nil {
		return 0, fmt.Errorf("icc: write request: %w", err)
	}

	// The reply may span several packets; read until the announced length
	// has arrived.
	got := 0
	want := -1
	for want < 0 || got < ReplyFrameHeaderSize+want {
		m, err := u.in.ReadContext(ctx, u.rbuf[got:])
		if err != nil {
			return 0, fmt.Errorf("icc: read reply: %w", err)
		}
		got += m
		if want < 0 && got >= ReplyFrameHeaderSize {
			if want, err = replyLen(u.rbuf[:ReplyFrameHeaderSize], len(reply)); err != nil {
				return 0, err
			}
		}
		if m == 0 {
			return 0, ErrTimeout
		}
	}
	n := copy(reply, u.rbuf[ReplyFrameHeaderSize:ReplyFrameHeaderSize+want])
	u.log.Debug("icc round trip",
		zap.Uint8("channel", channel),
		zap.Int("request_bytes", len(req)),
		zap.Int("reply_bytes", n),
	)
	return n, nil
}

// Close releases the interface, the device and the USB context.
func (u *USB) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done != nil {
		u.done()
		u.done = nil
	}
	var err error
	if u.dev != nil {
		err = u.dev.Close()
		u.dev = nil
	}
	if u.ctx != nil {
		if cerr := u.ctx.Close(); err == nil {
			err = cerr
		}
		u.ctx = nil
	}
	return err
}

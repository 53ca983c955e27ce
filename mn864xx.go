package mn864xx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"

	"periph.io/x/devices/v3/mn864xx/cmdq"
)

// Model is the PCI device id of the southbridge, which identifies the
// console board and thereby the bridge variant.
type Model uint16

// Known console boards.
const (
	CUH11xx Model = 0x9920 // MN86471A
	CUH12xx Model = 0x9922 // MN864729
	CUH2xxx Model = 0x9923 // MN864729
	CUH7xxx Model = 0x9924 // MN864729
)

// Variant is the bridge chip revision.
type Variant int

const (
	MN86471A Variant = iota
	MN864729
)

func (v Variant) String() string {
	switch v {
	case MN86471A:
		return "MN86471A"
	case MN864729:
		return "MN864729"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// Variant returns the bridge revision fitted to boards of model m.
func (m Model) Variant() Variant {
	if m == CUH11xx {
		return MN86471A
	}
	return MN864729
}

// Opts is the configuration for the bridge.
type Opts struct {
	Model Model

	// Session tag placed in every request (default: 4)
	Code uint8
	// ICC channel of the command queue service (default: cmdq.DefaultChannel)
	Channel uint8

	// Optional hardware reset pin
	RST gpio.PinIO

	Logger *zap.Logger
}

// Dev is a handle to the bridge.
type Dev struct {
	s     *cmdq.Session
	code  uint8
	model Model
	rst   gpio.PinIO
	log   *zap.Logger

	mu     sync.Mutex
	vic    byte
	halted bool
}

// New returns a handle to the bridge reachable through inv.
//
// opts can be nil to use defaults (CUH-11xx board).
func New(inv cmdq.Invoker, opts *Opts) (*Dev, error) {
	if inv == nil {
		return nil, errors.New("mn864xx: nil invoker")
	}

	// Apply defaults and validate options
	if opts == nil {
		opts = &Opts{Model: CUH11xx}
	}
	switch opts.Model {
	case CUH11xx, CUH12xx, CUH2xxx, CUH7xxx:
	default:
		return nil, fmt.Errorf("mn864xx: unknown board %#04x", uint16(opts.Model))
	}
	code := opts.Code
	if code == 0 {
		code = 4
	}
	channel := opts.Channel
	if channel == 0 {
		channel = cmdq.DefaultChannel
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("device", opts.Model.Variant().String()))

	// Create device
	d := &Dev{
		s:     cmdq.NewSession(inv, channel, log),
		code:  code,
		model: opts.Model,
		rst:   opts.RST,
		log:   log,
	}
	// Bring the bridge out of reset
	if err := d.reset(); err != nil {
		return nil, err
	}
	return d, nil
}

// reset pulses the reset pin, if any.
func (d *Dev) reset() error {
	if d.rst == nil {
		return nil
	}
	if err := d.rst.Out(gpio.Low); err != nil {
		return fmt.Errorf("mn864xx: failed to pull RST low: %w", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := d.rst.Out(gpio.High); err != nil {
		return fmt.Errorf("mn864xx: failed to pull RST high: %w", err)
	}
	time.Sleep(10 * time.Millisecond)
	return nil
}

// run executes ops as one transaction.
func (d *Dev) run(ctx context.Context, ops []cmdq.Op) (cmdq.Reply, error) {
	return d.s.Do(ctx, d.code, func(q *cmdq.Queue) error {
		return q.Append(ops...)
	})
}

func (d *Dev) check() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return errors.New("mn864xx: halted")
	}
	return nil
}

// Variant returns the bridge revision.
func (d *Dev) Variant() Variant {
	return d.model.Variant()
}

// ModeValid reports whether the bridge can output CEA video mode vic:
// 1280x720p60 (4), 1920x1080p60 (16) or 1920x1080p120 (63).
func ModeValid(vic int) bool {
	return vic == 4 || vic == 16 || vic == 63
}

// PreEnable disables InfoFrames and resets HDCP ahead of a mode change.
func (d *Dev) PreEnable(ctx context.Context) error {
	if err := d.check(); err != nil {
		return err
	}
	if _, err := d.run(ctx, preEnableSeq); err != nil {
		d.log.Error("failed to run pre-enable sequence", zap.Error(err))
		return fmt.Errorf("mn864xx: pre-enable: %w", err)
	}
	return nil
}

// Enable programs CEA video mode vic and starts HDMI audio.
//
// A failing audio sequence does not stop the remaining ones; their errors
// are joined into the result.
func (d *Dev) Enable(ctx context.Context, vic int) error {
	if err := d.check(); err != nil {
		return err
	}
	if !ModeValid(vic) {
		return fmt.Errorf("mn864xx: unsupported mode VIC %d", vic)
	}
	d.log.Info("enabling bridge", zap.Int("vic", vic))

	// Pick the sequences for this bridge revision
	var mode []cmdq.Op
	var audio [2][]cmdq.Op
	switch d.Variant() {
	case MN86471A:
		dp, err := d.ReadDPStatus(ctx)
		if err != nil {
			d.log.Error("could not read DP status", zap.Error(err))
			return err
		}
		mode = mn86471aModeSeq(byte(vic), dp)
		audio = mn86471aAudioSeq
	default:
		mode = mn864729ModeSeq(byte(vic), d.model)
		audio = mn864729AudioSeq
	}

	// Program the video mode
	if _, err := d.run(ctx, mode); err != nil {
		d.log.Error("failed to configure mode", zap.Int("vic", vic), zap.Error(err))
		return fmt.Errorf("mn864xx: configure VIC %d: %w", vic, err)
	}
	d.mu.Lock()
	d.vic = byte(vic)
	d.mu.Unlock()

	// Start audio; keep going if one sequence fails
	var errs []error
	for i, seq := range audio {
		if _, err := d.run(ctx, seq); err != nil {
			d.log.Warn("failed to run audio sequence", zap.Int("seq", i), zap.Error(err))
			errs = append(errs, fmt.Errorf("mn864xx: audio sequence %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// ReadDPStatus returns the three DisplayPort receiver status bytes of the
// MN86471A.
func (d *Dev) ReadDPStatus(ctx context.Context) ([3]byte, error) {
	var dp [3]byte
	if err := d.check(); err != nil {
		return dp, err
	}
	r, err := d.s.Do(ctx, d.code, func(q *cmdq.Queue) error {
		return q.Read(regDPStatus, 3)
	})
	if err != nil {
		return dp, fmt.Errorf("mn864xx: read DP status: %w", err)
	}
	// Reply data is {count, addr_hi, addr_lo, bytes...}.
	if r.N < cmdq.ReplyHeaderSize+3+3 || len(r.Data) < 6 {
		return dp, fmt.Errorf("mn864xx: read DP status: short reply of %d bytes", r.N)
	}
	copy(dp[:], r.Data[3:6])
	return dp, nil
}

// Disable mutes video and disables InfoFrames.
func (d *Dev) Disable(ctx context.Context) error {
	if err := d.check(); err != nil {
		return err
	}
	if _, err := d.run(ctx, disableSeq); err != nil {
		d.log.Error("failed to disable bridge", zap.Error(err))
		return fmt.Errorf("mn864xx: disable: %w", err)
	}
	d.mu.Lock()
	d.vic = 0
	d.mu.Unlock()
	return nil
}

// Detect reports whether a sink is connected, from the hot-plug bit of
// TMONREG.
//
// A failed probe is reported as disconnected together with the error, so
// callers that only care about presence can ignore the error.
func (d *Dev) Detect(ctx context.Context) (bool, error) {
	if err := d.check(); err != nil {
		return false, err
	}
	r, err := d.s.Do(ctx, d.code, func(q *cmdq.Queue) error {
		return q.Read(regTMONREG, 1)
	})
	if err == nil && (r.N < cmdq.ReplyHeaderSize+3+1 || len(r.Data) < 4) {
		err = fmt.Errorf("short reply of %d bytes", r.N)
	}
	if err != nil {
		d.log.Warn("could not read TMONREG", zap.Error(err))
		return false, fmt.Errorf("mn864xx: detect: %w", err)
	}
	reg := r.Data[3]
	d.log.Debug("TMONREG", zap.Uint8("value", reg))
	return reg&tmonregHPD != 0, nil
}

// Mode returns the VIC programmed by the last successful Enable, or 0.
func (d *Dev) Mode() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.vic)
}

// Halt mutes the output. After calling Halt, the device rejects further
// operations, even when muting failed. Halting twice is a no-op.
func (d *Dev) Halt() error {
	d.mu.Lock()
	halted := d.halted
	d.mu.Unlock()
	if halted {
		return nil
	}
	err := d.Disable(context.Background())
	d.mu.Lock()
	d.halted = true
	d.mu.Unlock()
	return err
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("mn864xx.Dev{%s, board %#04x}", d.Variant(), uint16(d.model))
}

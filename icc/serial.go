package icc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// SerialConfig describes a UART link to the host controller.
type SerialConfig struct {
	Port     string        `mapstructure:"port"`
	BaudRate int           `mapstructure:"baud_rate"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Serial is a cmdq.Invoker over a serial port.
type Serial struct {
	mu     sync.Mutex
	port   serial.Port
	stream *Stream
	log    *zap.Logger
}

// OpenSerial opens the port described by cfg. log may be nil.
func OpenSerial(cfg SerialConfig, log *zap.Logger) (*Serial, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("transport", "serial"), zap.String("port", cfg.Port))
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	log.Info("opening serial port", zap.Int("baud_rate", cfg.BaudRate))
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("icc: open %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(cfg.Timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("icc: set read timeout: %w", err)
	}
	return &Serial{
		port:   port,
		stream: NewStream(port, log),
		log:    log,
	}, nil
}

// Invoke implements cmdq.Invoker. Stale input is discarded before each
// request so a reply can never be attributed to the wrong request.
func (s *Serial) Invoke(ctx context.Context, channel, sub uint8, req, reply []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return 0, ErrClosed
	}
	if err := s.port.ResetInputBuffer(); err != nil {
		return 0, fmt.Errorf("icc: flush input: %w", err)
	}
	return s.stream.Invoke(ctx, channel, sub, req, reply)
}

// Close releases the port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.log.Info("serial port closed")
	return err
}

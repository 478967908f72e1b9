package logger

import (
	"fmt"
	"time"

	"github.com/Nwagbara-Group-LLC/LoggingEngine/config"
	"github.com/Nwagbara-Group-LLC/LoggingEngine/transport"
)

// buildTransports maps output configurations onto transport instances.
// Network transports connect lazily, so building never dials.
func buildTransports(cfg config.Config) ([]transport.Transport, error) {
	out := make([]transport.Transport, 0, len(cfg.Outputs))
	for _, o := range cfg.Outputs {
		t, err := buildTransport(o, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func buildTransport(o config.OutputConfig, cfg config.Config) (transport.Transport, error) {
	timeout := time.Duration(cfg.TimeoutMillis) * time.Millisecond
	switch o.Type {
	case "stdout", "console":
		return transport.NewStdout(), nil
	case "stderr":
		return transport.NewStderr(), nil
	case "file":
		return transport.NewFile(transport.FileConfig{
			Path:            o.Path,
			MaxSizeBytes:    o.MaxFileSizeBytes,
			MaxFiles:        o.MaxFiles,
			CompressRotated: o.CompressRotated,
		})
	case "redis":
		return transport.NewRedis(transport.RedisConfig{
			Addr:        o.Addr(),
			Channel:     o.Channel,
			Password:    o.Password,
			PoolSize:    o.PoolSize,
			DialTimeout: timeout,
		})
	case "tcp":
		return transport.NewTCP(o.Addr(), timeout)
	case "udp":
		return transport.NewUDP(o.Addr())
	}
	return nil, fmt.Errorf("config: unknown output type %q", o.Type)
}

package config

import (
	"fmt"
	"log/slog"
	"strings"

	"nftickets/native/fees"
	"nftickets/native/platform"
)

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	if _, _, err := platform.Address(c.Platform.Name); err != nil {
		return fmt.Errorf("config: Platform.Name: %w", err)
	}
	if c.Platform.FeeBps > fees.MaxBps {
		return fmt.Errorf("config: Platform.FeeBps must be <= %d", fees.MaxBps)
	}
	if c.RPC.RequestsPerMinute < 0 || c.RPC.Burst < 0 {
		return fmt.Errorf("config: RPC rate limits must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("config: Telemetry.SampleRatio must be within [0, 1]")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses the configured log level.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	raw := strings.TrimSpace(l.Level)
	if raw == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("config: Log.Level: %w", err)
	}
	return level, nil
}

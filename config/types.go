package config

// Platform identifies the marketplace served by the node and the key that
// initialises it on first start.
type Platform struct {
	Name            string `toml:"Name"`
	FeeBps          uint16 `toml:"FeeBps"`
	ManagerKeystore string `toml:"ManagerKeystore"`
	// PassphraseEnv names the environment variable holding the keystore
	// passphrase. Empty means the keystore is unencrypted.
	PassphraseEnv string `toml:"PassphraseEnv,omitempty"`
}

// RPC tunes the JSON-RPC server.
type RPC struct {
	// AuthSecret signs admin bearer tokens (HS256). Admin methods are
	// disabled while it is empty.
	AuthSecret        string   `toml:"AuthSecret"`
	RequestsPerMinute float64  `toml:"RequestsPerMinute"`
	Burst             int      `toml:"Burst"`
	AllowedOrigins    []string `toml:"AllowedOrigins"`
	ReadHeaderTimeout int      `toml:"ReadHeaderTimeoutSeconds"`
	ShutdownTimeout   int      `toml:"ShutdownTimeoutSeconds"`
}

// Log configures structured logging.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Metrics     bool    `toml:"Metrics"`
	Traces      bool    `toml:"Traces"`
	SampleRatio float64 `toml:"SampleRatio"`
}

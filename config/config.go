package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nftickets/crypto"

	"github.com/BurntSushi/toml"
)

// EnvAuthSecret overrides RPC.AuthSecret when set.
const EnvAuthSecret = "NFT_RPC_AUTH_SECRET"

type Config struct {
	ListenAddress string    `toml:"ListenAddress"`
	DataDir       string    `toml:"DataDir"`
	NetworkName   string    `toml:"NetworkName"`
	HistoryDB     string    `toml:"HistoryDB"`
	RentPerByte   uint64    `toml:"RentPerByte"`
	PausedModules []string  `toml:"PausedModules"`
	EnableFaucet  bool      `toml:"EnableFaucet"`
	Platform      Platform  `toml:"platform"`
	RPC           RPC       `toml:"rpc"`
	Log           Log       `toml:"log"`
	Telemetry     Telemetry `toml:"telemetry"`
}

// Load loads the configuration from the given path, writing a default file
// and a fresh platform manager keystore on first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err = createDefault(path)
		if err != nil {
			return nil, err
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
		}
		applyDefaults(cfg)
		if err := ensureKeystore(path, cfg); err != nil {
			return nil, err
		}
	}
	if secret := strings.TrimSpace(os.Getenv(EnvAuthSecret)); secret != "" {
		cfg.RPC.AuthSecret = secret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the settings of a fresh local node.
func Default() *Config {
	return &Config{
		ListenAddress: ":8547",
		DataDir:       "./nft-data",
		NetworkName:   "nftickets-local",
		HistoryDB:     "",
		PausedModules: []string{},
		Platform: Platform{
			Name:   "NF-Tickets",
			FeeBps: 500,
		},
		RPC: RPC{
			RequestsPerMinute: 600,
			Burst:             20,
			AllowedOrigins:    []string{"*"},
			ReadHeaderTimeout: 5,
			ShutdownTimeout:   10,
		},
		Log: Log{Level: "info", MaxSizeMB: 100, MaxBackups: 3},
	}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = def.NetworkName
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
	if cfg.RPC.RequestsPerMinute == 0 {
		cfg.RPC.RequestsPerMinute = def.RPC.RequestsPerMinute
	}
	if cfg.RPC.Burst == 0 {
		cfg.RPC.Burst = def.RPC.Burst
	}
	if cfg.RPC.ReadHeaderTimeout <= 0 {
		cfg.RPC.ReadHeaderTimeout = def.RPC.ReadHeaderTimeout
	}
	if cfg.RPC.ShutdownTimeout <= 0 {
		cfg.RPC.ShutdownTimeout = def.RPC.ShutdownTimeout
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = def.Log.MaxSizeMB
	}
}

// ManagerPassphrase returns the keystore passphrase from the configured
// environment variable.
func (c *Config) ManagerPassphrase() string {
	if env := strings.TrimSpace(c.Platform.PassphraseEnv); env != "" {
		return os.Getenv(env)
	}
	return ""
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.Platform.ManagerKeystore
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, cfg.ManagerPassphrase()); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.Platform.ManagerKeystore != keystorePath {
		cfg.Platform.ManagerKeystore = keystorePath
		return persist(configPath, cfg)
	}

	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "manager.keystore")
}

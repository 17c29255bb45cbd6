// Package config loads the rdp-sessiond settings: the peer TLS material,
// login credentials, screen-share mode, and the operational timeouts that
// spec.md leaves as fixed constants but which this daemon exposes as
// tunable knobs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/logging"
)

var log = logging.L("config")

// ScreenShareMode selects how the Layout Manager maps monitors to surfaces.
type ScreenShareMode string

const (
	ScreenShareModeMirrorPrimary ScreenShareMode = "mirror-primary"
	ScreenShareModeExtend        ScreenShareMode = "extend"
)

type Config struct {
	// TLS material for the RDP security layer (x.224/TLS handshake).
	RDPServerCert string `mapstructure:"rdp_server_cert"`
	RDPServerKey  string `mapstructure:"rdp_server_key"`

	// Static login credentials presented to connecting clients.
	RDPCredentialUsername string `mapstructure:"rdp_credential_username"`
	RDPCredentialPassword string `mapstructure:"rdp_credential_password"`

	RDPScreenShareMode ScreenShareMode `mapstructure:"rdp_screen_share_mode"`
	RDPViewOnly        bool            `mapstructure:"rdp_view_only"`

	// Operational timeouts and limits, named in spec.md as constants.
	LayoutRecreationTimeoutMS    int `mapstructure:"layout_recreation_timeout_ms"`
	FormatListTimeoutSeconds     int `mapstructure:"format_list_timeout_seconds"`
	FormatDataRequestTimeoutSecs int `mapstructure:"format_data_request_timeout_seconds"`
	ClipDataDropTimeoutSeconds   int `mapstructure:"clip_data_drop_timeout_seconds"`
	AudioTrainingTimeoutSeconds  int `mapstructure:"audio_training_timeout_seconds"`
	AudioInputOpenReplyTimeoutS  int `mapstructure:"audio_input_open_reply_timeout_seconds"`

	MaxMonitorCount    int `mapstructure:"max_monitor_count"`
	PointerCacheSize   int `mapstructure:"pointer_cache_size"`
	WorkerPoolSize     int `mapstructure:"worker_pool_size"`
	WorkerPoolQueueCap int `mapstructure:"worker_pool_queue_capacity"`

	// Logging configuration
	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`
	LogFile      string `mapstructure:"log_file"`
	LogMaxSizeMB int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int   `mapstructure:"log_max_backups"`

	ListenAddress string `mapstructure:"listen_address"`
}

func Default() *Config {
	return &Config{
		RDPScreenShareMode: ScreenShareModeMirrorPrimary,
		RDPViewOnly:        false,

		LayoutRecreationTimeoutMS:    50,
		FormatListTimeoutSeconds:     4,
		FormatDataRequestTimeoutSecs: 4,
		ClipDataDropTimeoutSeconds:   60,
		AudioTrainingTimeoutSeconds:  10,
		AudioInputOpenReplyTimeoutS:  10,

		MaxMonitorCount:    16,
		PointerCacheSize:   32,
		WorkerPoolSize:     runtime.NumCPU(),
		WorkerPoolQueueCap: 256,

		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  100,
		LogMaxBackups: 3,

		ListenAddress: "0.0.0.0:3389",
	}
}

func (c *Config) RecreationTimer() time.Duration {
	return time.Duration(c.LayoutRecreationTimeoutMS) * time.Millisecond
}

func (c *Config) FormatListTimeout() time.Duration {
	return time.Duration(c.FormatListTimeoutSeconds) * time.Second
}

func (c *Config) FormatDataRequestTimeout() time.Duration {
	return time.Duration(c.FormatDataRequestTimeoutSecs) * time.Second
}

func (c *Config) ClipDataDropTimeout() time.Duration {
	return time.Duration(c.ClipDataDropTimeoutSeconds) * time.Second
}

func (c *Config) AudioTrainingTimeout() time.Duration {
	return time.Duration(c.AudioTrainingTimeoutSeconds) * time.Second
}

func (c *Config) AudioInputOpenReplyTimeout() time.Duration {
	return time.Duration(c.AudioInputOpenReplyTimeoutS) * time.Second
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("rdp-sessiond")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("GRD_RDP")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}
	if result.HasFatals() {
		for _, err := range result.Fatals {
			log.Error("config validation fatal", "error", err)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("rdp_server_cert", cfg.RDPServerCert)
	viper.Set("rdp_server_key", cfg.RDPServerKey)
	viper.Set("rdp_credential_username", cfg.RDPCredentialUsername)
	viper.Set("rdp_credential_password", cfg.RDPCredentialPassword)
	viper.Set("rdp_screen_share_mode", string(cfg.RDPScreenShareMode))
	viper.Set("rdp_view_only", cfg.RDPViewOnly)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "rdp-sessiond.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	// Config file carries the RDP login password, so keep it owner-only.
	return os.Chmod(cfgPath, 0600)
}

// GetDataDir returns the platform-specific data directory for rdp-sessiond.
func GetDataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "gnome-remote-desktop", "data")
	case "darwin":
		return "/Library/Application Support/gnome-remote-desktop/data"
	default:
		return "/var/lib/gnome-remote-desktop"
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "gnome-remote-desktop")
	case "darwin":
		return "/Library/Application Support/gnome-remote-desktop"
	default:
		return "/etc/gnome-remote-desktop"
	}
}

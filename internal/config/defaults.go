package config

const (
	defaultConfigPath          = "~/.config/scriptview/config.toml"
	defaultFeedPath            = "/tmp/mpv-subtitles.json"
	defaultStateDir            = "~/.local/share/scriptview"
	defaultAPIBind             = "127.0.0.1:7488"
	defaultFeedMaxBytes        = 16 << 20
	defaultMinReloadIntervalMS = 100
	defaultDisplayCount        = 10
	defaultCompanionScriptPath = "~/.config/mpv/scripts/subtitle-monitor.lua"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30

	// MinDisplayCount and MaxDisplayCount bound the number of entries a
	// reader may ask for by default.
	MinDisplayCount = 1
	MaxDisplayCount = 50
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			FeedPath: defaultFeedPath,
			StateDir: defaultStateDir,
			APIBind:  defaultAPIBind,
		},
		Feed: Feed{
			MaxBytes:            defaultFeedMaxBytes,
			MinReloadIntervalMS: defaultMinReloadIntervalMS,
		},
		Display: Display{
			Count: defaultDisplayCount,
		},
		Companion: Companion{
			ScriptPath: defaultCompanionScriptPath,
		},
		Archive: Archive{
			Enabled: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

package config

import (
	"fmt"
	"os"
	"strings"
)

// FeedPathEnv overrides paths.feed_path when set.
const FeedPathEnv = "SCRIPTVIEW_FEED_PATH"

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFeed()
	if err := c.normalizeCompanion(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv(FeedPathEnv); ok && strings.TrimSpace(value) != "" {
		c.Paths.FeedPath = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.FeedPath) == "" {
		c.Paths.FeedPath = defaultFeedPath
	}
	var err error
	if c.Paths.FeedPath, err = expandPath(strings.TrimSpace(c.Paths.FeedPath)); err != nil {
		return fmt.Errorf("paths.feed_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeFeed() {
	if c.Feed.MaxBytes <= 0 {
		c.Feed.MaxBytes = defaultFeedMaxBytes
	}
	if c.Feed.MinReloadIntervalMS < 0 {
		c.Feed.MinReloadIntervalMS = 0
	}
	if c.Feed.PollIntervalSeconds < 0 {
		c.Feed.PollIntervalSeconds = 0
	}
}

func (c *Config) normalizeCompanion() error {
	if strings.TrimSpace(c.Companion.ScriptPath) == "" {
		c.Companion.ScriptPath = defaultCompanionScriptPath
	}
	var err error
	if c.Companion.ScriptPath, err = expandPath(strings.TrimSpace(c.Companion.ScriptPath)); err != nil {
		return fmt.Errorf("companion.script_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

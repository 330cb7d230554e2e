package cliconfig

import "os"

// ApplyEnv merges TELEMLOG_* environment variables into cfg. Env overrides
// the config file but is overridden by explicitly set flags.
func ApplyEnv(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("log-root", os.Getenv("TELEMLOG_LOG_ROOT"), &cfg.LogRoot)
	s.setString("boot-file", os.Getenv("TELEMLOG_BOOT_FILE"), &cfg.BootFile)

	if err := s.setBoolFromString("debug", os.Getenv("TELEMLOG_DEBUG"), &cfg.Debug); err != nil {
		return err
	}
	return s.setBoolFromString("once", os.Getenv("TELEMLOG_ONCE"), &cfg.Once)
}

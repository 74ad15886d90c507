package profile

import "github.com/matheus3301/inbox/internal/config"

const DefaultName = "main"

// Resolve determines the active profile name using precedence:
// 1. flagOverride (--profile flag)
// 2. config.toml default_profile
// 3. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	cfg, err := config.Load(GlobalConfigPath())
	if err == nil && cfg.DefaultProfile != "" {
		return cfg.DefaultProfile
	}
	return DefaultName
}

// SetDefault records name as default_profile in the global config.
func SetDefault(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return config.Update(GlobalConfigPath(), func(c *config.Config) error {
		c.DefaultProfile = name
		return nil
	})
}

package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取 YAML 配置并应用默认值与基础校验。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if c.Risk.MaxWeightPct < 0 || c.Risk.MaxWeightPct > 1 {
		return fmt.Errorf("risk.max_weight_pct must be in [0,1], got %v", c.Risk.MaxWeightPct)
	}
	if c.Risk.MaxDailyBuyAmount < 0 {
		return fmt.Errorf("risk.max_daily_buy_amount must be >= 0")
	}
	if err := c.Broker.validate(); err != nil {
		return err
	}
	return nil
}

func (b *BrokerConfig) validate() error {
	if b.AppKey == "" || b.AppSecret == "" {
		return fmt.Errorf("broker.app_key / broker.app_secret are required")
	}
	if b.AccountNo == "" || b.AccountCode == "" {
		return fmt.Errorf("broker.account_no / broker.account_code are required")
	}
	return nil
}

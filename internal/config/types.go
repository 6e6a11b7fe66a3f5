package config

// Config 为进程级配置根节点。
type Config struct {
	App      AppConfig      `toml:"app"`
	Broker   BrokerConfig   `toml:"broker"`
	Store    StoreConfig    `toml:"store"`
	Risk     RiskConfig     `toml:"risk"`
	Strategy StrategyConfig `toml:"strategy"`
	Poll     PollConfig     `toml:"poll"`
	Backtest BacktestConfig `toml:"backtest"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
	// APIKey 为空时不校验请求头 X-API-Key。
	APIKey string `toml:"api_key"`
}

// BrokerConfig 描述券商网关接入参数。
// 下单/查询用的交易 ID 因券商文档而异，模拟/实盘各自独立，
// 所以全部通过配置注入，不在代码里写死。
type BrokerConfig struct {
	RealMode    bool   `toml:"real_mode"`
	BaseURL     string `toml:"base_url"` // 留空时按 real_mode 选择默认地址
	AppKey      string `toml:"app_key"`
	AppSecret   string `toml:"app_secret"`
	AccountNo   string `toml:"account_no"`
	AccountCode string `toml:"account_code"`

	TRIDOrderBuy  string `toml:"tr_id_order_buy"`
	TRIDOrderSell string `toml:"tr_id_order_sell"`
	TRIDBalance   string `toml:"tr_id_balance"`

	TimeoutSeconds int `toml:"timeout_seconds"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

// RiskConfig 为进程级默认风控阈值，DB 中的 risk_settings 可覆盖。
type RiskConfig struct {
	MaxPositionShares int64   `toml:"max_position_shares"`
	MaxWeightPct      float64 `toml:"max_weight_pct"`
	MaxDailyBuyAmount float64 `toml:"max_daily_buy_amount"` // 0 表示不启用
}

type StrategyConfig struct {
	ParamsPath string `toml:"params_path"`
}

type PollConfig struct {
	// Interval 形如 "30s" / "5m"，余额轮询周期。
	Interval string `toml:"interval"`
}

type BacktestConfig struct {
	DataRoot  string `toml:"data_root"`
	ReportDir string `toml:"report_dir"`
}

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":8000"
	defaultStorePath   = "data/kairos.db"
	defaultParamsPath  = "configs/strategy_params.yaml"
	defaultPollEvery   = "5m"
	defaultDataRoot    = "data/bars"
	defaultReportDir   = "data/reports"

	defaultMaxPositionShares = 10
	defaultMaxWeightPct      = 0.5

	defaultBrokerTimeout = 15
)

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = defaultAppEnv
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultAppLogLevel
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = defaultAppHTTPAddr
	}
	if c.Store.Path == "" {
		c.Store.Path = defaultStorePath
	}
	if c.Risk.MaxPositionShares <= 0 {
		c.Risk.MaxPositionShares = defaultMaxPositionShares
	}
	if c.Risk.MaxWeightPct <= 0 {
		c.Risk.MaxWeightPct = defaultMaxWeightPct
	}
	if c.Strategy.ParamsPath == "" {
		c.Strategy.ParamsPath = defaultParamsPath
	}
	if c.Poll.Interval == "" {
		c.Poll.Interval = defaultPollEvery
	}
	if c.Backtest.DataRoot == "" {
		c.Backtest.DataRoot = defaultDataRoot
	}
	if c.Backtest.ReportDir == "" {
		c.Backtest.ReportDir = defaultReportDir
	}
	if c.Broker.TimeoutSeconds <= 0 {
		c.Broker.TimeoutSeconds = defaultBrokerTimeout
	}
}

package config

// Config 是一次回测运行的完整配置。字段用 toml tag 标注，
// 实际文件格式由 viper 识别（yaml / toml 均可）。
type Config struct {
	App        AppConfig        `toml:"app"`
	Data       DataConfig       `toml:"data"`
	Broker     BrokerConfig     `toml:"broker"`
	Commission CommissionConfig `toml:"commission"`
	Model      ModelConfig      `toml:"model"`
	Store      StoreConfig      `toml:"store"`
	Report     ReportConfig     `toml:"report"`
	Web        WebConfig        `toml:"web"`
}

type AppConfig struct {
	LogLevel    string `toml:"log_level"`
	LogFile     string `toml:"log_file"`
	FillLogFile string `toml:"fill_log_file"`
}

type DataConfig struct {
	// Feed 目前只有 discountdata 一种 CSV 源。
	Feed string `toml:"feed"`
	Path string `toml:"path"`
}

type BrokerConfig struct {
	// InitialBalance 是 "10000.00" 这样的十进制美元串。
	InitialBalance string `toml:"initial_balance"`
	MarginMode     string `toml:"margin_mode"`
}

type CommissionConfig struct {
	Schedule string `toml:"schedule"`
}

type ModelConfig struct {
	Name   string `toml:"name"`
	Symbol string `toml:"symbol"`
	// SMAPeriod 只有 trend 策略使用。
	SMAPeriod int `toml:"sma_period"`
}

type StoreConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type ReportConfig struct {
	Enabled  bool   `toml:"enabled"`
	HTMLPath string `toml:"html_path"`
	// PNGPath 非空时额外用无头浏览器截图，需要本机有 Chrome。
	PNGPath string `toml:"png_path"`
}

type WebConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

package config

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Data.Feed == "" {
		c.Data.Feed = "discountdata"
	}
	if c.Broker.InitialBalance == "" {
		c.Broker.InitialBalance = "10000.00"
	}
	if c.Broker.MarginMode == "" {
		c.Broker.MarginMode = "advisory"
	}
	if c.Commission.Schedule == "" {
		c.Commission.Schedule = "null"
	}
	if c.Model.Name == "" {
		c.Model.Name = "dummy"
	}
	if c.Model.SMAPeriod == 0 {
		c.Model.SMAPeriod = 20
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/results.db"
	}
	if c.Report.HTMLPath == "" {
		c.Report.HTMLPath = "data/reports/equity.html"
	}
	if c.Web.Addr == "" {
		c.Web.Addr = ":9991"
	}
}

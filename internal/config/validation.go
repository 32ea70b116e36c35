package config

import (
	"fmt"

	"optback/internal/money"
)

func validate(c *Config) error {
	if c.Data.Path == "" {
		return fmt.Errorf("data.path 不能为空")
	}
	if c.Data.Feed != "discountdata" {
		return fmt.Errorf("未知 data.feed: %s", c.Data.Feed)
	}

	balance, err := money.Parse(c.Broker.InitialBalance)
	if err != nil {
		return fmt.Errorf("broker.initial_balance 非法: %w", err)
	}
	if !balance.IsPositive() {
		return fmt.Errorf("broker.initial_balance 必须 > 0 (got %s)", balance)
	}
	switch c.Broker.MarginMode {
	case "advisory", "strict":
	default:
		return fmt.Errorf("broker.margin_mode 只能是 advisory 或 strict (got %s)", c.Broker.MarginMode)
	}

	switch c.Model.Name {
	case "dummy":
	case "pmcc", "trend":
		if c.Model.Symbol == "" {
			return fmt.Errorf("model.symbol 不能为空 (model %s)", c.Model.Name)
		}
	default:
		return fmt.Errorf("未知 model.name: %s", c.Model.Name)
	}
	if c.Model.Name == "trend" && c.Model.SMAPeriod < 2 {
		return fmt.Errorf("model.sma_period 必须 >= 2 (got %d)", c.Model.SMAPeriod)
	}

	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store.path 不能为空")
	}
	if c.Web.Enabled && !c.Store.Enabled {
		return fmt.Errorf("web API 依赖结果库，请同时开启 store.enabled")
	}
	if c.Report.Enabled && !c.Store.Enabled {
		return fmt.Errorf("报告依赖每日净值快照，请同时开启 store.enabled")
	}
	return nil
}

// InitialBalance 返回解析后的初始资金，validate 之后调用必定成功。
func (c *Config) InitialBalance() money.Money {
	m, err := money.Parse(c.Broker.InitialBalance)
	if err != nil {
		return money.Zero()
	}
	return m
}

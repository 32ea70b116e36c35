// Package commission 定义券商佣金表。费率是纯函数：只看成交单本身，
// 与策略、账户状态无关，因此可以在不同回测之间随意替换。
package commission

import (
	"fmt"
	"strings"

	"optback/internal/market"
	"optback/internal/money"
)

// Schedule 为一笔成交计算佣金，返回值必须非负。
type Schedule interface {
	Name() string
	CommissionFor(f *market.FilledOrder) money.Money
}

// Null 不收任何佣金，用于隔离策略本身的盈亏。
type Null struct{}

func NewNull() Null { return Null{} }

func (Null) Name() string { return "null" }

func (Null) CommissionFor(*market.FilledOrder) money.Money {
	return money.Zero()
}

// ForName 按配置名构造佣金表。
func ForName(name string) (Schedule, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "null", "none":
		return NewNull(), nil
	case "charles_schwab", "schwab":
		return NewCharlesSchwab(), nil
	default:
		return nil, fmt.Errorf("未知佣金表: %s", name)
	}
}

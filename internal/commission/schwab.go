package commission

import (
	"optback/internal/market"
	"optback/internal/money"
)

// CharlesSchwab 按嘉信期权费率计费：每单 $4.95 底佣 + 每张 $0.65。
// 成交价 ≤ $0.05 的 buy-to-close 免佣（券商让利条款，方便清掉残值空头）。
type CharlesSchwab struct {
	baseFee     money.Money
	perContract money.Money
}

func NewCharlesSchwab() *CharlesSchwab {
	return &CharlesSchwab{
		baseFee:     money.FromCents(495),
		perContract: money.FromCents(65),
	}
}

func (*CharlesSchwab) Name() string { return "charles_schwab" }

func (c *CharlesSchwab) CommissionFor(f *market.FilledOrder) money.Money {
	if f.BuyToClose() && !f.FillPrice().GreaterThan(money.FromCents(5)) {
		return money.Zero()
	}
	return c.baseFee.Add(c.perContract.MulInt(int64(f.Quantity())))
}

package market

import (
	"fmt"
	"time"

	"optback/internal/money"
)

// FilledOrder 把一张 Order 与它的成交永久绑定：成交行情、成交价、佣金、
// 成交日，以及是否由 broker 强平。只有 broker 的撮合流程会构造它，
// 策略拿到的永远是只读引用。
type FilledOrder struct {
	order *Order

	fillQuote    *Quote
	fillPrice    money.Money
	fillDate     time.Time
	commission   money.Money
	brokerClosed bool
}

func NewFilledOrder(order *Order, quote *Quote, fillPrice money.Money, fillDate time.Time) *FilledOrder {
	return &FilledOrder{
		order:     order,
		fillQuote: quote,
		fillPrice: fillPrice,
		fillDate:  fillDate,
	}
}

// SetCommission 记录佣金。负佣金不是可恢复状态。
func (f *FilledOrder) SetCommission(c money.Money) error {
	if c.IsNegative() {
		return fmt.Errorf("佣金不能为负 (got %s)", c)
	}
	f.commission = c
	return nil
}

// SetClosedByBroker 标记这笔成交由引擎强平（到期或回测结束），而非策略主动。
func (f *FilledOrder) SetClosedByBroker() {
	f.brokerClosed = true
}

func (f *FilledOrder) Commission() money.Money { return f.commission }
func (f *FilledOrder) FillPrice() money.Money  { return f.fillPrice }
func (f *FilledOrder) FillDate() time.Time     { return f.fillDate }
func (f *FilledOrder) FillQuote() *Quote       { return f.fillQuote }
func (f *FilledOrder) ClosedByBroker() bool    { return f.brokerClosed }

// CostBasis 返回无符号成交金额：成交价 × 合约乘数 × 数量。
func (f *FilledOrder) CostBasis() money.Money {
	return f.fillPrice.MulInt(ContractMultiplier * int64(f.order.Quantity()))
}

// CanonicalCostBasis 返回带符号现金影响：买入为负（出金），卖出为正（入金）。
func (f *FilledOrder) CanonicalCostBasis() money.Money {
	if f.IsBuy() {
		return f.CostBasis().Neg()
	}
	return f.CostBasis()
}

// UnrealizedValue 以当前行情估算这笔成交的平仓价值：
// 买入的仓位按 bid 估、卖出的按 ask 估，即"现在按最不利的现价平掉值多少"。
func (f *FilledOrder) UnrealizedValue(current *Quote) money.Money {
	price := current.Ask()
	if f.IsBuy() {
		price = current.Bid()
	}
	return price.MulInt(ContractMultiplier * int64(f.CanonicalQuantity()))
}

// ===== Order 透传 =====

func (f *FilledOrder) Name() string            { return f.order.Name() }
func (f *FilledOrder) Symbol() string          { return f.order.Symbol() }
func (f *FilledOrder) Quantity() int           { return f.order.Quantity() }
func (f *FilledOrder) CanonicalQuantity() int  { return f.order.CanonicalQuantity() }
func (f *FilledOrder) IsBuy() bool             { return f.order.IsBuy() }
func (f *FilledOrder) IsSell() bool            { return f.order.IsSell() }
func (f *FilledOrder) IsOpen() bool            { return f.order.IsOpen() }
func (f *FilledOrder) IsClose() bool           { return f.order.IsClose() }
func (f *FilledOrder) BuyToOpen() bool         { return f.order.BuyToOpen() }
func (f *FilledOrder) SellToOpen() bool        { return f.order.SellToOpen() }
func (f *FilledOrder) BuyToClose() bool        { return f.order.BuyToClose() }
func (f *FilledOrder) SellToClose() bool       { return f.order.SellToClose() }
func (f *FilledOrder) SideString() string      { return f.order.SideString() }
func (f *FilledOrder) IntentString() string    { return f.order.IntentString() }

func (f *FilledOrder) MarginRequirement(price money.Money) money.Money {
	return f.order.MarginRequirement(price)
}

package market

import (
	"fmt"

	"optback/internal/money"
)

// Order 是尚未成交的交易意图。四个构造函数共享一个基础构造，
// 只翻转 buy/open 两个布尔位，保证 {buy,sell}×{open,close} 之外的状态
// 根本无法被构造出来。
type Order struct {
	name     string
	symbol   string
	buy      bool
	open     bool
	quantity int
	limit    money.Money
	strike   money.Money
}

func newOrder(q *Quote, quantity int, limit money.Money) (*Order, error) {
	if q == nil {
		return nil, fmt.Errorf("order 必须基于一份行情")
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("order quantity 必须 > 0 (got %d)", quantity)
	}
	if limit.IsNegative() {
		return nil, fmt.Errorf("order limit 不能为负 (got %s)", limit)
	}
	return &Order{
		name:     q.Name(),
		symbol:   q.Symbol(),
		buy:      true,
		open:     true,
		quantity: quantity,
		limit:    limit,
		strike:   q.StrikePrice(),
	}, nil
}

func BuyOpen(q *Quote, quantity int, limit money.Money) (*Order, error) {
	return newOrder(q, quantity, limit)
}

func SellOpen(q *Quote, quantity int, limit money.Money) (*Order, error) {
	o, err := newOrder(q, quantity, limit)
	if err != nil {
		return nil, err
	}
	o.buy = false
	return o, nil
}

func BuyClose(q *Quote, quantity int, limit money.Money) (*Order, error) {
	o, err := newOrder(q, quantity, limit)
	if err != nil {
		return nil, err
	}
	o.open = false
	return o, nil
}

func SellClose(q *Quote, quantity int, limit money.Money) (*Order, error) {
	o, err := newOrder(q, quantity, limit)
	if err != nil {
		return nil, err
	}
	o.buy = false
	o.open = false
	return o, nil
}

func (o *Order) Name() string            { return o.name }
func (o *Order) Symbol() string          { return o.symbol }
func (o *Order) Quantity() int           { return o.quantity }
func (o *Order) Limit() money.Money      { return o.limit }
func (o *Order) StrikePrice() money.Money { return o.strike }

func (o *Order) IsBuy() bool   { return o.buy }
func (o *Order) IsSell() bool  { return !o.buy }
func (o *Order) IsOpen() bool  { return o.open }
func (o *Order) IsClose() bool { return !o.open }

func (o *Order) BuyToOpen() bool   { return o.buy && o.open }
func (o *Order) SellToOpen() bool  { return !o.buy && o.open }
func (o *Order) BuyToClose() bool  { return o.buy && !o.open }
func (o *Order) SellToClose() bool { return !o.buy && !o.open }

func (o *Order) SideString() string {
	if o.buy {
		return "buy"
	}
	return "sell"
}

func (o *Order) IntentString() string {
	if o.open {
		return "open"
	}
	return "close"
}

// CanonicalQuantity 返回带符号数量：买为正，卖为负。
func (o *Order) CanonicalQuantity() int {
	if o.buy {
		return o.quantity
	}
	return -o.quantity
}

// MarginRequirement 按给定价格估算这笔单要占用的资金。
func (o *Order) MarginRequirement(price money.Money) money.Money {
	return price.MulInt(ContractMultiplier * int64(o.quantity))
}

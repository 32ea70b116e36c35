package market

import (
	"time"

	"optback/internal/money"
)

// Position 是单个合约的流水账：所有作用到它上面的成交、净数量。
// 首次成交时惰性创建，之后从不删除——平掉的仓位靠 IsOpen 谓词过滤，
// 不做物理移除。成本与已实现盈亏都从 fills 折算得出，不单独存储。
type Position struct {
	name       string
	symbol     string
	expiration time.Time
	quantity   int
	fills      []*FilledOrder
}

// NewPosition 以建仓当时生效的行情为基准记录合约的 symbol 与到期日。
func NewPosition(q *Quote) *Position {
	return &Position{
		name:       q.Name(),
		symbol:     q.Symbol(),
		expiration: q.ExpirationDate(),
	}
}

// ApplyFill 追加一笔成交并按其带符号数量更新净持仓。
// broker 在撮合前已完成校验，这里无条件接受。
func (p *Position) ApplyFill(f *FilledOrder) {
	p.fills = append(p.fills, f)
	p.quantity += f.CanonicalQuantity()
}

func (p *Position) Name() string            { return p.name }
func (p *Position) Symbol() string          { return p.symbol }
func (p *Position) ExpirationDate() time.Time { return p.expiration }
func (p *Position) Quantity() int           { return p.quantity }
func (p *Position) Fills() []*FilledOrder   { return p.fills }
func (p *Position) OrderCount() int         { return len(p.fills) }

// IsOpen 以净数量非零判定仓位在册。
func (p *Position) IsOpen() bool  { return p.quantity != 0 }
func (p *Position) IsLong() bool  { return p.quantity > 0 }
func (p *Position) IsShort() bool { return p.quantity < 0 }

// IsExpired 判断合约是否在 asOf 之前（严格早于）到期。
// 到期当天不算到期：策略在到期日当天还有最后一次操作机会，
// 翻日之后才会被强平。
func (p *Position) IsExpired(asOf time.Time) bool {
	return daysBetween(p.expiration, asOf) > 0
}

// RealizedProfit 折算全部成交：买入记借、卖出记贷。
// 与 CanonicalCostBasis 口径一致，但独立计算，互为交叉校验。
func (p *Position) RealizedProfit() money.Money {
	total := money.Zero()
	for _, f := range p.fills {
		total = total.Sub(f.FillPrice().MulInt(ContractMultiplier * int64(f.CanonicalQuantity())))
	}
	return total
}

func (p *Position) CommissionPaid() money.Money {
	total := money.Zero()
	for _, f := range p.fills {
		total = total.Add(f.Commission())
	}
	return total
}

// CurrentValue 按给定的当日行情对全部成交逐笔盯市求和。
// 不能只用净数量折算：不同批次的买卖要分别按 bid/ask 取价。
func (p *Position) CurrentValue(q *Quote) money.Money {
	total := money.Zero()
	for _, f := range p.fills {
		total = total.Add(f.UnrealizedValue(q))
	}
	return total
}

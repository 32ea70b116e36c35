package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money 以最小货币单位（美分）的整数表示金额。回测逐日累加成千上万次，
// 用浮点会漂移，所以所有价格、成本、余额一律走这里的定点运算。
type Money struct {
	cents int64
}

func FromCents(cents int64) Money {
	return Money{cents: cents}
}

func FromDollars(dollars int64) Money {
	return Money{cents: dollars * 100}
}

// FromDecimal 将 decimal 金额折算成美分，超出美分精度的部分四舍五入。
func FromDecimal(d decimal.Decimal) Money {
	return Money{cents: d.Shift(2).Round(0).IntPart()}
}

// Parse 解析 "10.55"、"-4.95" 这类十进制金额字符串。
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("金额无法解析 (%q): %w", s, err)
	}
	return FromDecimal(d), nil
}

func Zero() Money {
	return Money{}
}

func (m Money) Cents() int64 {
	return m.cents
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.cents, -2)
}

func (m Money) Add(o Money) Money {
	return Money{cents: m.cents + o.cents}
}

func (m Money) Sub(o Money) Money {
	return Money{cents: m.cents - o.cents}
}

func (m Money) Neg() Money {
	return Money{cents: -m.cents}
}

func (m Money) MulInt(n int64) Money {
	return Money{cents: m.cents * n}
}

// DivInt 按最小单位四舍五入（round half to nearest，远离零）。
func (m Money) DivInt(n int64) Money {
	if n == 0 {
		panic("money: division by zero")
	}
	a, b := m.cents, n
	neg := false
	if a < 0 {
		a, neg = -a, !neg
	}
	if b < 0 {
		b, neg = -b, !neg
	}
	q := (a + b/2) / b
	if neg {
		q = -q
	}
	return Money{cents: q}
}

func (m Money) Cmp(o Money) int {
	switch {
	case m.cents < o.cents:
		return -1
	case m.cents > o.cents:
		return 1
	default:
		return 0
	}
}

func (m Money) LessThan(o Money) bool    { return m.cents < o.cents }
func (m Money) GreaterThan(o Money) bool { return m.cents > o.cents }
func (m Money) IsZero() bool             { return m.cents == 0 }
func (m Money) IsNegative() bool         { return m.cents < 0 }
func (m Money) IsPositive() bool         { return m.cents > 0 }

func Sum(ms ...Money) Money {
	var total int64
	for _, m := range ms {
		total += m.cents
	}
	return Money{cents: total}
}

// String 输出 $1,234.56 / -$0.01 这样的报表格式。
func (m Money) String() string {
	cents := m.cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%s.%02d", sign, groupThousands(cents/100), cents%100)
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// Package feed 统一历史行情数据源的读取行为。
package feed

import (
	"optback/internal/market"
)

// Feed 逐条产出行情快照，数据耗尽时返回 io.EOF。
// 约定：产出的 quote 日期单调不减。broker 只检测日期变化，
// 不会修复乱序输入——乱序会导致换日被提前或错误触发。
type Feed interface {
	Next() (*market.Quote, error)
}

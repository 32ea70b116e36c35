// Package discountdata 解析 DiscountOptionData 导出的期权日线 CSV。
//
// 列布局（18 列）：
// Symbol,ExpirationDate,AskPrice,AskSize,BidPrice,BidSize,LastPrice,PutCall,
// StrikePrice,Volume,ImpliedVolatility,Delta,Gamma,Vega,Rho,OpenInterest,
// UnderlyingPrice,DataDate
package discountdata

import (
	"fmt"
	"io"
	"os"
	"time"

	"optback/internal/market"
	"optback/internal/money"

	"github.com/gocarina/gocsv"
)

const dateLayout = "2006-01-02"

// record 只映射引擎用到的列，gocsv 按表头名匹配，多余的列被忽略。
type record struct {
	Symbol          string `csv:"Symbol"`
	ExpirationDate  string `csv:"ExpirationDate"`
	AskPrice        string `csv:"AskPrice"`
	BidPrice        string `csv:"BidPrice"`
	PutCall         string `csv:"PutCall"`
	StrikePrice     string `csv:"StrikePrice"`
	UnderlyingPrice string `csv:"UnderlyingPrice"`
	DataDate        string `csv:"DataDate"`
}

// Feed 把 CSV 行惰性转换为 Quote：文件一次读入，字段解析推迟到 Next，
// 坏数据在被消费到的那一刻报错。
type Feed struct {
	records []*record
	pos     int
}

func New(path string) (*Feed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开行情文件失败: %w", err)
	}
	defer f.Close()
	return NewFromReader(f)
}

func NewFromReader(r io.Reader) (*Feed, error) {
	var records []*record
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("解析行情 CSV 失败: %w", err)
	}
	return &Feed{records: records}, nil
}

// Next 产出下一条行情，数据耗尽返回 io.EOF。
func (f *Feed) Next() (*market.Quote, error) {
	if f.pos >= len(f.records) {
		return nil, io.EOF
	}
	rec := f.records[f.pos]
	f.pos++

	q, err := rec.toQuote()
	if err != nil {
		return nil, fmt.Errorf("行情第 %d 条解析失败: %w", f.pos, err)
	}
	return q, nil
}

func (r *record) toQuote() (*market.Quote, error) {
	var call bool
	switch r.PutCall {
	case "call":
		call = true
	case "put":
		call = false
	default:
		return nil, fmt.Errorf("PutCall 字段应为 call/put，实际是 %q", r.PutCall)
	}

	bid, err := money.Parse(r.BidPrice)
	if err != nil {
		return nil, fmt.Errorf("BidPrice: %w", err)
	}
	ask, err := money.Parse(r.AskPrice)
	if err != nil {
		return nil, fmt.Errorf("AskPrice: %w", err)
	}
	strike, err := money.Parse(r.StrikePrice)
	if err != nil {
		return nil, fmt.Errorf("StrikePrice: %w", err)
	}
	underlying, err := money.Parse(r.UnderlyingPrice)
	if err != nil {
		return nil, fmt.Errorf("UnderlyingPrice: %w", err)
	}
	expiration, err := time.Parse(dateLayout, r.ExpirationDate)
	if err != nil {
		return nil, fmt.Errorf("ExpirationDate: %w", err)
	}
	date, err := time.Parse(dateLayout, r.DataDate)
	if err != nil {
		return nil, fmt.Errorf("DataDate: %w", err)
	}

	return market.NewQuote(market.QuoteParams{
		Symbol:          r.Symbol,
		Strike:          strike,
		Bid:             bid,
		Ask:             ask,
		Call:            call,
		Expiration:      expiration,
		UnderlyingPrice: underlying,
		Date:            date,
	})
}

package logger

import (
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
)

// 成交流水单独落盘：主日志记录引擎运行状态，这里只记录每一笔成交的
// 完整账目（方向、数量、成交价、佣金、余额变化），方便事后对账。

var (
	fillMu  sync.Mutex
	fillLog *log.Logger
)

// SetFillWriter 指定成交流水的输出目标，传 nil 关闭。
func SetFillWriter(w io.Writer) {
	fillMu.Lock()
	defer fillMu.Unlock()
	if w == nil {
		fillLog = nil
		return
	}
	fillLog = log.New(w, "", log.LstdFlags)
}

type FillRecord struct {
	Contract     string
	Side         string // buy / sell
	Intent       string // open / close
	Quantity     int
	FillPrice    string
	Commission   string
	Balance      string
	Date         string
	BrokerClosed bool
}

func LogFill(rec FillRecord) {
	fillMu.Lock()
	logger := fillLog
	fillMu.Unlock()
	if logger == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[FILL]")
	if rec.BrokerClosed {
		b.WriteString("[forced]")
	}
	b.WriteString(" ")
	b.WriteString(rec.Date)
	b.WriteString(" ")
	b.WriteString(rec.Contract)
	b.WriteString(" ")
	b.WriteString(rec.Side)
	b.WriteString("-")
	b.WriteString(rec.Intent)
	b.WriteString(" x")
	b.WriteString(strconv.Itoa(rec.Quantity))
	b.WriteString(" @ ")
	b.WriteString(rec.FillPrice)
	b.WriteString(" 佣金 ")
	b.WriteString(rec.Commission)
	b.WriteString(" 余额 ")
	b.WriteString(rec.Balance)
	logger.Print(b.String())
}

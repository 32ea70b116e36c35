// Package report 把一次回测的每日净值快照画成净值曲线：
// 产出自包含的 HTML 报告，可选再用无头浏览器截成 PNG。
package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"optback/internal/store"
)

const (
	colorBackground = "#060c1b"
	colorText       = "#eceff4"
	colorTextDim    = "#9ca3af"
	colorRealized   = "#3b82f6"
	colorUnrealized = "#34d399"

	chartWidthPx  = 1200
	chartHeightPx = 560
)

type EquityCurveInput struct {
	RunID  string
	Model  string
	Symbol string
	Days   []store.DaySnapshot
}

// BuildEquityCurveHTML 渲染已实现 / 未实现两条净值曲线的自包含页面。
func BuildEquityCurveHTML(in EquityCurveInput) ([]byte, error) {
	if len(in.Days) == 0 {
		return nil, fmt.Errorf("没有净值快照，无法生成报告 (run %s)", in.RunID)
	}

	xAxis := make([]string, len(in.Days))
	realized := make([]opts.LineData, len(in.Days))
	unrealized := make([]opts.LineData, len(in.Days))
	for i, d := range in.Days {
		xAxis[i] = d.Date
		realized[i] = opts.LineData{Value: float64(d.Balance) / 100}
		unrealized[i] = opts.LineData{Value: float64(d.Unrealized) / 100}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("%s / %s 净值曲线", in.Model, in.Symbol),
			Subtitle:      fmt.Sprintf("run %s", in.RunID),
			TitleStyle:    &opts.TextStyle{Color: colorText, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextDim},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorText}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Color: colorTextDim}}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextDim},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextDim, Opacity: opts.Float(0.2)}},
		}),
	)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	line.SetXAxis(xAxis)
	line.AddSeries("已实现余额", realized, charts.WithLineStyleOpts(opts.LineStyle{Color: colorRealized, Width: 2}))
	line.AddSeries("未实现净值", unrealized, charts.WithLineStyleOpts(opts.LineStyle{Color: colorUnrealized, Width: 2}))

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteEquityCurve 把 HTML 报告写到 path，目录不存在时自动创建。
func WriteEquityCurve(path string, in EquityCurveInput) error {
	html, err := BuildEquityCurveHTML(in)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, html, 0o644)
}

var (
	headlessOnce sync.Once
	headlessErr  error
)

// EnsureHeadlessAvailable 预热无头浏览器，没装 Chrome 时尽早失败。
func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		targetCtx := ctx
		if targetCtx == nil {
			targetCtx = context.Background()
		}
		parent, cancel := chromedp.NewContext(targetCtx)
		if cancel != nil {
			defer cancel()
		}
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

// RenderEquityCurvePNG 用无头浏览器把净值曲线截成 PNG。
func RenderEquityCurvePNG(ctx context.Context, in EquityCurveInput) ([]byte, error) {
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		return nil, err
	}
	html, err := BuildEquityCurveHTML(in)
	if err != nil {
		return nil, err
	}
	return renderHTMLToPNG(ctx, html, chartWidthPx, chartHeightPx+80)
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}

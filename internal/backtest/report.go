package backtest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteEquityReport 把净值曲线渲染为单页 HTML，返回文件路径。
func WriteEquityReport(dir string, res *Result) (string, error) {
	if res == nil || len(res.Curve) == 0 {
		return "", fmt.Errorf("empty backtest result")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	xAxis := make([]string, len(res.Curve))
	points := make([]opts.LineData, len(res.Curve))
	for i, p := range res.Curve {
		xAxis[i] = time.UnixMilli(p.TS).Format("2006-01-02")
		points[i] = opts.LineData{Value: p.Equity}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s equity", res.Instrument),
			Subtitle: fmt.Sprintf("return %.2f%%  maxDD %.2f%%  sharpe %.2f  trades %d",
				res.Metrics.TotalReturn*100, res.Metrics.MaxDrawdown*100, res.Metrics.Sharpe, res.Trades),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("equity", points,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.html", res.Instrument, res.RunID))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := line.Render(f); err != nil {
		return "", err
	}
	return path, nil
}

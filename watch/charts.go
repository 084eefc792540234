package watch

import (
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	echarts "github.com/go-echarts/go-echarts/v2/types"
)

// Charts 收敛历史曲线绘制
type Charts struct {
	Record
}

// Render 格式化
func (c *Charts) Render(w io.Writer) error {
	// 残差范数曲线
	lineR := charts.NewLine()
	lineR.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: echarts.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "残差范数曲线",
			Subtitle: "各耦合数据残差范数随迭代变化曲线",
		}),
		charts.WithLegendOpts(opts.Legend{
			Type:   "scroll",
			Orient: "vertical",
			Right:  "10",
			Top:    "20",
			Bottom: "20",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			SplitNumber: 20,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale: opts.Bool(true),
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "inside",
			Start:      0,
			End:        100,
			XAxisIndex: []int{0},
		}),
		charts.WithAnimation(true),
	)
	// 松弛因子曲线
	lineW := charts.NewLine()
	lineW.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: echarts.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "松弛因子曲线",
			Subtitle: "动态松弛因子随迭代变化曲线",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			SplitNumber: 20,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale: opts.Bool(true),
		}),
		charts.WithAnimation(true),
	)
	// 迭代次数曲线
	lineI := charts.NewLine()
	lineI.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: echarts.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "迭代次数曲线",
			Subtitle: "每个时间步的隐式迭代次数",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale: opts.Bool(true),
		}),
		charts.WithAnimation(true),
	)
	// 处理数据
	{
		// 残差信息
		axis := make([]string, len(c.Iterations))
		for i, it := range c.Iterations {
			axis[i] = fmt.Sprintf("%d/%d", it.Timestep, it.Iteration)
		}
		lineR.SetXAxis(axis)
		ids := c.Record.DataIDs()
		itemsR := make([][]opts.LineData, len(ids))
		seriesR := make([]charts.SingleSeries, len(ids))
		for i, id := range ids {
			itemsR[i] = make([]opts.LineData, len(c.Iterations))
			for x, it := range c.Iterations {
				itemsR[i][x].Value = it.Norms[id]
			}
			seriesR[i] = charts.SingleSeries{
				Name: fmt.Sprintf("Data(%d)", id),
				Data: itemsR[i],
				Type: echarts.ChartLine,
			}
			seriesR[i].InitSeriesDefaultOpts(lineR.BaseConfiguration)
		}
		lineR.MultiSeries = seriesR
		// 松弛因子信息
		lineW.SetXAxis(axis)
		itemsW := make([]opts.LineData, len(c.Iterations))
		for x, it := range c.Iterations {
			itemsW[x].Value = it.Omega
		}
		seriesW := []charts.SingleSeries{{
			Name: "omega",
			Data: itemsW,
			Type: echarts.ChartLine,
		}}
		seriesW[0].InitSeriesDefaultOpts(lineW.BaseConfiguration)
		lineW.MultiSeries = seriesW
		// 迭代次数信息
		timesteps, counts := c.Record.IterationsPerTimestep()
		axisT := make([]string, len(timesteps))
		itemsI := make([]opts.LineData, len(counts))
		for i, ts := range timesteps {
			axisT[i] = fmt.Sprintf("%d", ts)
			itemsI[i].Value = counts[i]
		}
		lineI.SetXAxis(axisT)
		seriesI := []charts.SingleSeries{{
			Name: "iterations",
			Data: itemsI,
			Type: echarts.ChartLine,
		}}
		seriesI[0].InitSeriesDefaultOpts(lineI.BaseConfiguration)
		lineI.MultiSeries = seriesI
	}
	// 构建界面
	page := components.NewPage()
	page.AddCharts(
		lineR,
		lineW,
		lineI,
	)
	return page.Render(w)
}

// Handler 发布到网页面
func (c *Charts) Handler(w http.ResponseWriter, _ *http.Request) {
	c.Render(w)
}

func (c *Charts) Error(err error) { log.Println(err) }

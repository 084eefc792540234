// Package export 把收敛历史导出为图片。
package export

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"coupling/watch"
)

// ConvergencePlot 把残差范数历史绘制为PNG
// 每个耦合数据一条曲线,横轴为全局迭代序号.
func ConvergencePlot(rec *watch.Record, filename string) error {
	if len(rec.Iterations) == 0 {
		return fmt.Errorf("没有可导出的迭代记录")
	}
	p := plot.New()
	p.Title.Text = "收敛历史"
	p.X.Label.Text = "迭代"
	p.Y.Label.Text = "残差范数"

	for _, id := range rec.DataIDs() {
		pts := make(plotter.XYs, 0, len(rec.Iterations))
		for i, it := range rec.Iterations {
			if norm, ok := it.Norms[id]; ok {
				pts = append(pts, plotter.XY{X: float64(i + 1), Y: norm})
			}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("Data(%d)", id), line)
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, filename)
}

// OmegaPlot 把松弛因子历史绘制为PNG
func OmegaPlot(rec *watch.Record, filename string) error {
	if len(rec.Iterations) == 0 {
		return fmt.Errorf("没有可导出的迭代记录")
	}
	p := plot.New()
	p.Title.Text = "松弛因子历史"
	p.X.Label.Text = "迭代"
	p.Y.Label.Text = "omega"

	pts := make(plotter.XYs, len(rec.Iterations))
	for i, it := range rec.Iterations {
		pts[i] = plotter.XY{X: float64(i + 1), Y: it.Omega}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(line)
	return p.Save(6*vg.Inch, 4*vg.Inch, filename)
}

package main

import (
	"fmt"
	"os"

	"coupling/acceleration"
	"coupling/com"
	"coupling/cplscheme"
	"coupling/export"
	"coupling/m2n"
	"coupling/types"
	"coupling/watch"
)

// 单进程内的双参与者演示:
// 流体侧计算 y = 0.5x + 1,固体侧计算 x = y,
// 隐式串行耦合加动态松弛,收敛到定点 x* = 2。
func main() {
	chA, chB := com.Pair(64)
	mesh := types.NewMesh(0, "interface", 4, 1)

	cfg := cplscheme.Config{
		MaxTime:           -1,
		MaxTimesteps:      5,
		TimestepLength:    0.1,
		FirstParticipant:  "Fluid",
		SecondParticipant: "Solid",
		MaxIterations:     30,
	}

	done := make(chan error, 1)
	go func() { done <- runFluid(cfg, chA, mesh) }()

	rec := &watch.Record{}
	if err := runSolid(cfg, chB, mesh, rec); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := <-done; err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	// 收敛历史输出
	html, err := os.Create("convergence.html")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer html.Close()
	charts := &watch.Charts{Record: *rec}
	fmt.Println(charts.Render(html))
	fmt.Println(export.ConvergencePlot(rec, "convergence.png"))
	fmt.Println(export.OmegaPlot(rec, "omega.png"))
}

// runFluid 第一参与者:先发送后接收
func runFluid(cfg cplscheme.Config, ch *com.LocalChannel, mesh *types.Mesh) error {
	cfg.LocalParticipant = "Fluid"
	m := m2n.New(ch, com.NewSingleRank(), nil, false)
	if err := m.RequestLeaderConnection("Solid", "Fluid"); err != nil {
		return err
	}
	s, err := cplscheme.NewSerial(cfg, cplscheme.ModeImplicit, m, com.NewSingleRank())
	if err != nil {
		return err
	}
	sd := types.NewCouplingData(1, mesh, 1, false) // y
	rd := types.NewCouplingData(2, mesh, 1, false) // x
	s.AddSendData(sd)
	s.AddReceiveData(rd)
	if err := s.Initialize(0, 0); err != nil {
		return err
	}
	for s.IsCouplingOngoing() {
		if s.IsActionRequired(types.ActionWriteIterationCheckpoint) {
			if err := s.MarkActionFulfilled(types.ActionWriteIterationCheckpoint); err != nil {
				return err
			}
		}
		for i := 0; i < sd.Values.Len(); i++ {
			sd.Values.SetVec(i, 0.5*rd.Values.AtVec(i)+1)
		}
		if err := s.AddComputedTime(s.GetMaxTimestepLength()); err != nil {
			return err
		}
		if err := s.Advance(); err != nil {
			return err
		}
		if s.IsActionRequired(types.ActionReadIterationCheckpoint) {
			if err := s.MarkActionFulfilled(types.ActionReadIterationCheckpoint); err != nil {
				return err
			}
		}
	}
	return s.Finalize()
}

// runSolid 第二参与者:持有判据与加速器
func runSolid(cfg cplscheme.Config, ch *com.LocalChannel, mesh *types.Mesh, rec *watch.Record) error {
	cfg.LocalParticipant = "Solid"
	m := m2n.New(ch, com.NewSingleRank(), nil, false)
	if err := m.AcceptLeaderConnection("Solid", "Fluid"); err != nil {
		return err
	}
	s, err := cplscheme.NewSerial(cfg, cplscheme.ModeImplicit, m, com.NewSingleRank())
	if err != nil {
		return err
	}
	sd := types.NewCouplingData(2, mesh, 1, false) // x
	rd := types.NewCouplingData(1, mesh, 1, false) // y
	s.AddSendData(sd)
	s.AddReceiveData(rd)
	acc, err := acceleration.NewAitken(0.5, []types.DataID{2}, com.NewSingleRank())
	if err != nil {
		return err
	}
	s.SetAcceleration(acc)
	meas, err := cplscheme.NewRelativeMeasure(1e-8, com.NewSingleRank())
	if err != nil {
		return err
	}
	if err := s.AddConvergenceMeasure(2, false, meas); err != nil {
		return err
	}
	s.SetWatcher(rec)
	if err := s.Initialize(0, 0); err != nil {
		return err
	}
	for s.IsCouplingOngoing() {
		if s.IsActionRequired(types.ActionWriteIterationCheckpoint) {
			if err := s.MarkActionFulfilled(types.ActionWriteIterationCheckpoint); err != nil {
				return err
			}
		}
		for i := 0; i < sd.Values.Len(); i++ {
			sd.Values.SetVec(i, rd.Values.AtVec(i))
		}
		if err := s.AddComputedTime(s.GetMaxTimestepLength()); err != nil {
			return err
		}
		if err := s.Advance(); err != nil {
			return err
		}
		rec.RecordOmega(acc.Factor())
		if s.IsActionRequired(types.ActionReadIterationCheckpoint) {
			if err := s.MarkActionFulfilled(types.ActionReadIterationCheckpoint); err != nil {
				return err
			}
		}
	}
	if err := s.Finalize(); err != nil {
		return err
	}
	fmt.Printf("收敛结果 x = %v, 完成时间步 %d\n", sd.Values.RawVector().Data, s.GetTimesteps())
	return nil
}

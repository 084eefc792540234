package cplscheme

import (
	"math"
	"strings"
	"testing"

	"coupling/acceleration"
	"coupling/com"
	"coupling/m2n"
	"coupling/types"
)

// coupledM2N 建立耦合模式下互联的一对复用器
func coupledM2N(t *testing.T) (*m2n.M2N, *m2n.M2N) {
	t.Helper()
	a, b := com.Pair(64)
	ma := m2n.New(a, com.NewSingleRank(), nil, false)
	mb := m2n.New(b, com.NewSingleRank(), nil, false)
	if err := ma.RequestLeaderConnection("B", "A"); err != nil {
		t.Fatal(err)
	}
	if err := mb.AcceptLeaderConnection("B", "A"); err != nil {
		t.Fatal(err)
	}
	return ma, mb
}

// scriptChannel 建立一个方案用复用器和对端的裸通道脚本端点
func scriptChannel(t *testing.T) (*m2n.M2N, *com.LocalChannel) {
	t.Helper()
	a, b := com.Pair(64)
	m := m2n.New(a, com.NewSingleRank(), nil, false)
	if err := m.RequestLeaderConnection("B", "A"); err != nil {
		t.Fatal(err)
	}
	_ = b.Accept("B", "A")
	return m, b
}

// newConfig 双参与者基础配置
func newConfig(local string, maxTimesteps, maxIterations int) Config {
	return Config{
		MaxTime:            -1,
		MaxTimesteps:       maxTimesteps,
		TimestepLength:     0.1,
		FirstParticipant:   "Fluid",
		SecondParticipant:  "Solid",
		LocalParticipant:   local,
		MaxIterations:      maxIterations,
		ExtrapolationOrder: 0,
	}
}

// TestSerialExplicitOneShot 显式模式单次交换。
// 双方各有长度3的发送数据,一次 Advance 后时间步完成,
// 计数为1,没有待完成动作。
func TestSerialExplicitOneShot(t *testing.T) {
	ma, mb := coupledM2N(t)
	mesh := types.NewMesh(0, "interface", 3, 1)

	run := func(local string, m *m2n.M2N, send, want []float64, done chan error) {
		cfg := newConfig(local, 1, 1)
		s, err := NewSerial(cfg, ModeExplicit, m, com.NewSingleRank())
		if err != nil {
			done <- err
			return
		}
		sd := types.NewCouplingData(1, mesh, 1, false)
		rd := types.NewCouplingData(2, mesh, 1, false)
		if local == "Fluid" {
			sd.ID, rd.ID = 1, 2
		} else {
			sd.ID, rd.ID = 2, 1
		}
		s.AddSendData(sd)
		s.AddReceiveData(rd)
		if err := s.Initialize(0, 0); err != nil {
			done <- err
			return
		}
		for i, v := range send {
			sd.Values.SetVec(i, v)
		}
		if err := s.AddComputedTime(0.1); err != nil {
			done <- err
			return
		}
		if err := s.Advance(); err != nil {
			done <- err
			return
		}
		if !s.IsCouplingTimestepComplete() {
			t.Errorf("%s: expected timestep complete", local)
		}
		if s.GetTimesteps() != 1 {
			t.Errorf("%s: expected timestep counter 1, got %d", local, s.GetTimesteps())
		}
		if !s.actions.Empty() {
			t.Errorf("%s: expected no pending actions, got %v", local, s.actions.List())
		}
		if local == "Fluid" {
			for i, w := range want {
				if rd.Values.AtVec(i) != w {
					t.Errorf("%s: receive[%d] expected %f, got %f", local, i, w, rd.Values.AtVec(i))
				}
			}
		}
		done <- s.Finalize()
	}

	doneA := make(chan error, 1)
	doneB := make(chan error, 1)
	go run("Fluid", ma, []float64{1, 2, 3}, []float64{4, 5, 6}, doneA)
	go run("Solid", mb, []float64{4, 5, 6}, nil, doneB)
	if err := <-doneA; err != nil {
		t.Fatal(err)
	}
	if err := <-doneB; err != nil {
		t.Fatal(err)
	}
}

// TestSerialImplicitFixedPoint 双参与者隐式求解定点 x = 0.5x + 1:
// 第二参与者带动态松弛与绝对判据,两个时间步都应收敛到 x*=2,
// 检查点动作在每个时间步恰好提出一次。
func TestSerialImplicitFixedPoint(t *testing.T) {
	ma, mb := coupledM2N(t)
	mesh := types.NewMesh(0, "interface", 2, 1)

	first := func(done chan error) {
		cfg := newConfig("Fluid", 2, 50)
		s, err := NewSerial(cfg, ModeImplicit, ma, com.NewSingleRank())
		if err != nil {
			done <- err
			return
		}
		sd := types.NewCouplingData(1, mesh, 1, false) // y
		rd := types.NewCouplingData(2, mesh, 1, false) // x
		s.AddSendData(sd)
		s.AddReceiveData(rd)
		if err := s.Initialize(0, 0); err != nil {
			done <- err
			return
		}
		checkpoints := 0
		for s.IsCouplingOngoing() {
			if s.IsActionRequired(types.ActionWriteIterationCheckpoint) {
				checkpoints++
				if err := s.MarkActionFulfilled(types.ActionWriteIterationCheckpoint); err != nil {
					done <- err
					return
				}
			}
			// 求解器:y = 0.5x + 1
			for i := 0; i < sd.Values.Len(); i++ {
				sd.Values.SetVec(i, 0.5*rd.Values.AtVec(i)+1)
			}
			if err := s.AddComputedTime(0.1); err != nil {
				done <- err
				return
			}
			if err := s.Advance(); err != nil {
				done <- err
				return
			}
			if s.IsActionRequired(types.ActionReadIterationCheckpoint) {
				if err := s.MarkActionFulfilled(types.ActionReadIterationCheckpoint); err != nil {
					done <- err
					return
				}
			}
		}
		if checkpoints != 2 {
			t.Errorf("Fluid: expected one checkpoint per timestep (2), got %d", checkpoints)
		}
		if math.Abs(rd.Values.AtVec(0)-2) > 1e-6 {
			t.Errorf("Fluid: expected converged x near 2, got %f", rd.Values.AtVec(0))
		}
		if math.Abs(s.GetTime()-0.2) > 1e-12 {
			t.Errorf("Fluid: expected final time 0.2, got %f", s.GetTime())
		}
		done <- s.Finalize()
	}

	second := func(done chan error) {
		cfg := newConfig("Solid", 2, 50)
		s, err := NewSerial(cfg, ModeImplicit, mb, com.NewSingleRank())
		if err != nil {
			done <- err
			return
		}
		sd := types.NewCouplingData(2, mesh, 1, false) // x
		rd := types.NewCouplingData(1, mesh, 1, false) // y
		s.AddSendData(sd)
		s.AddReceiveData(rd)
		acc, err := acceleration.NewAitken(0.5, []types.DataID{2}, com.NewSingleRank())
		if err != nil {
			done <- err
			return
		}
		s.SetAcceleration(acc)
		meas, err := NewAbsoluteMeasure(1e-10, com.NewSingleRank())
		if err != nil {
			done <- err
			return
		}
		if err := s.AddConvergenceMeasure(2, false, meas); err != nil {
			done <- err
			return
		}
		if err := s.Initialize(0, 0); err != nil {
			done <- err
			return
		}
		for s.IsCouplingOngoing() {
			if s.IsActionRequired(types.ActionWriteIterationCheckpoint) {
				if err := s.MarkActionFulfilled(types.ActionWriteIterationCheckpoint); err != nil {
					done <- err
					return
				}
			}
			// 求解器:x = y
			for i := 0; i < sd.Values.Len(); i++ {
				sd.Values.SetVec(i, rd.Values.AtVec(i))
			}
			if err := s.AddComputedTime(0.1); err != nil {
				done <- err
				return
			}
			if err := s.Advance(); err != nil {
				done <- err
				return
			}
			if s.IsActionRequired(types.ActionReadIterationCheckpoint) {
				if err := s.MarkActionFulfilled(types.ActionReadIterationCheckpoint); err != nil {
					done <- err
					return
				}
			}
		}
		if math.Abs(sd.Values.AtVec(0)-2) > 1e-6 {
			t.Errorf("Solid: expected converged x near 2, got %f", sd.Values.AtVec(0))
		}
		if s.GetTimesteps() != 2 {
			t.Errorf("Solid: expected 2 completed timesteps, got %d", s.GetTimesteps())
		}
		done <- s.Finalize()
	}

	doneA := make(chan error, 1)
	doneB := make(chan error, 1)
	go first(doneA)
	go second(doneB)
	if err := <-doneA; err != nil {
		t.Fatal(err)
	}
	if err := <-doneB; err != nil {
		t.Fatal(err)
	}
}

// TestSerialCheckpointRollback 第二参与者首次迭代未收敛。
// Advance 后要求回读检查点,写检查点不会在时间步内重复提出,
// 时间不变,迭代序号递增。
func TestSerialCheckpointRollback(t *testing.T) {
	m, peer := scriptChannel(t)
	mesh := types.NewMesh(0, "interface", 2, 1)

	cfg := newConfig("Solid", 1, 50)
	s, err := NewSerial(cfg, ModeImplicit, m, com.NewSingleRank())
	if err != nil {
		t.Fatal(err)
	}
	sd := types.NewCouplingData(2, mesh, 1, false)
	rd := types.NewCouplingData(1, mesh, 1, false)
	s.AddSendData(sd)
	s.AddReceiveData(rd)
	meas, err := NewAbsoluteMeasure(1e-10, com.NewSingleRank())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddConvergenceMeasure(2, false, meas); err != nil {
		t.Fatal(err)
	}

	// 脚本:第二参与者在 Initialize 时接收 dt 与数据
	if err := peer.SendFloat64(0.1); err != nil {
		t.Fatal(err)
	}
	if err := peer.SendFloat64s([]float64{1, 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Initialize(0, 0); err != nil {
		t.Fatal(err)
	}
	if !s.IsActionRequired(types.ActionWriteIterationCheckpoint) {
		t.Fatal("Expected write-iteration-checkpoint required after Initialize")
	}
	if err := s.MarkActionFulfilled(types.ActionWriteIterationCheckpoint); err != nil {
		t.Fatal(err)
	}

	// 脚本:迭代未收敛,对端会再发下一迭代的 dt 与数据
	if err := peer.SendFloat64(0.1); err != nil {
		t.Fatal(err)
	}
	if err := peer.SendFloat64s([]float64{1, 1}); err != nil {
		t.Fatal(err)
	}

	// 残差非零:判据必然失败
	sd.Values.SetVec(0, 3)
	sd.Values.SetVec(1, 3)
	if err := s.AddComputedTime(0.1); err != nil {
		t.Fatal(err)
	}
	if err := s.Advance(); err != nil {
		t.Fatal(err)
	}

	if !s.IsActionRequired(types.ActionReadIterationCheckpoint) {
		t.Errorf("Expected read-iteration-checkpoint required after unconverged iteration")
	}
	if s.IsActionRequired(types.ActionWriteIterationCheckpoint) {
		t.Errorf("Expected write-iteration-checkpoint not re-raised within a timestep")
	}
	if s.GetTime() != 0 {
		t.Errorf("Expected time rolled back to 0, got %f", s.GetTime())
	}
	if s.iterations != 2 {
		t.Errorf("Expected iteration counter advanced to 2, got %d", s.iterations)
	}
	if s.IsCouplingTimestepComplete() {
		t.Errorf("Expected timestep not complete")
	}

	// 对端应收到裁决 false 与粗模型标记 false,随后是数据
	conv, err := peer.ReceiveBool()
	if err != nil || conv {
		t.Errorf("Expected convergence false on the wire, got %v (err %v)", conv, err)
	}
	coarse, err := peer.ReceiveBool()
	if err != nil || coarse {
		t.Errorf("Expected coarse flag false on the wire, got %v (err %v)", coarse, err)
	}
}

// TestSerialMaxIterationsForcesConvergence 到达迭代上限时
// 即使判据不满足也广播收敛,时间步完成,不要求回读检查点。
func TestSerialMaxIterationsForcesConvergence(t *testing.T) {
	m, peer := scriptChannel(t)
	mesh := types.NewMesh(0, "interface", 1, 1)

	cfg := newConfig("Solid", 1, 1) // 上限为1,首次迭代即强制收敛
	s, err := NewSerial(cfg, ModeImplicit, m, com.NewSingleRank())
	if err != nil {
		t.Fatal(err)
	}
	sd := types.NewCouplingData(2, mesh, 1, false)
	rd := types.NewCouplingData(1, mesh, 1, false)
	s.AddSendData(sd)
	s.AddReceiveData(rd)
	meas, err := NewAbsoluteMeasure(1e-10, com.NewSingleRank())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddConvergenceMeasure(2, false, meas); err != nil {
		t.Fatal(err)
	}

	if err := peer.SendFloat64(0.1); err != nil {
		t.Fatal(err)
	}
	if err := peer.SendFloat64s([]float64{0}); err != nil {
		t.Fatal(err)
	}
	if err := s.Initialize(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkActionFulfilled(types.ActionWriteIterationCheckpoint); err != nil {
		t.Fatal(err)
	}

	sd.Values.SetVec(0, 5) // 残差大,判据不满足
	if err := s.AddComputedTime(0.1); err != nil {
		t.Fatal(err)
	}
	if err := s.Advance(); err != nil {
		t.Fatal(err)
	}

	if !s.IsCouplingTimestepComplete() {
		t.Errorf("Expected forced convergence to complete the timestep")
	}
	if s.IsActionRequired(types.ActionReadIterationCheckpoint) {
		t.Errorf("Expected no rollback after forced convergence")
	}
	if s.IsCouplingOngoing() {
		t.Errorf("Expected coupling finished after last timestep")
	}
	conv, err := peer.ReceiveBool()
	if err != nil || !conv {
		t.Errorf("Expected convergence true broadcast, got %v (err %v)", conv, err)
	}
}

// TestSerialAccelerationRoleGuard 加速器的角色约束:
// 第一参与者上配置了作用于其发送数据的加速,初始化报错并指名数据。
func TestSerialAccelerationRoleGuard(t *testing.T) {
	m, _ := scriptChannel(t)
	mesh := types.NewMesh(0, "interface", 1, 1)

	cfg := newConfig("Fluid", 1, 50)
	s, err := NewSerial(cfg, ModeImplicit, m, com.NewSingleRank())
	if err != nil {
		t.Fatal(err)
	}
	sd := types.NewCouplingData(1, mesh, 1, false)
	rd := types.NewCouplingData(2, mesh, 1, false)
	s.AddSendData(sd)
	s.AddReceiveData(rd)
	acc, err := acceleration.NewAitken(0.5, []types.DataID{1}, com.NewSingleRank())
	if err != nil {
		t.Fatal(err)
	}
	s.SetAcceleration(acc)

	err = s.Initialize(0, 0)
	if err == nil {
		t.Fatal("Expected initialization to fail for acceleration on first participant send data")
	}
	if got := err.Error(); !strings.Contains(got, "数据 1") {
		t.Errorf("Expected error to name data id 1, got %q", got)
	}
}

// TestSerialExtrapolationOnConvergence 收敛迭代的时间外推:
// 一阶外推下的收敛迭代,历史首列等于收敛时刻的值,
// 原首列移动到第二列,值向量被外推预测覆盖。
func TestSerialExtrapolationOnConvergence(t *testing.T) {
	m, peer := scriptChannel(t)
	mesh := types.NewMesh(0, "interface", 1, 1)

	cfg := newConfig("Solid", 2, 50)
	cfg.ExtrapolationOrder = 1
	s, err := NewSerial(cfg, ModeImplicit, m, com.NewSingleRank())
	if err != nil {
		t.Fatal(err)
	}
	sd := types.NewCouplingData(2, mesh, 1, false)
	rd := types.NewCouplingData(1, mesh, 1, false)
	s.AddSendData(sd)
	s.AddReceiveData(rd)
	meas, err := NewAbsoluteMeasure(1e-3, com.NewSingleRank())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddConvergenceMeasure(2, false, meas); err != nil {
		t.Fatal(err)
	}

	if err := peer.SendFloat64(0.1); err != nil {
		t.Fatal(err)
	}
	if err := peer.SendFloat64s([]float64{0}); err != nil {
		t.Fatal(err)
	}
	if err := s.Initialize(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkActionFulfilled(types.ActionWriteIterationCheckpoint); err != nil {
		t.Fatal(err)
	}
	if s.sendData.Get(2).Cols() != 2 {
		t.Fatalf("Expected 2 history columns for extrapolation order 1, got %d", s.sendData.Get(2).Cols())
	}

	// 历史首列与当前值接近:判据满足,走外推分支
	sd.OldValues.SetCol(0, []float64{4})
	sd.Values.SetVec(0, 4)

	// 耦合未结束:对端还会发下一时间步的 dt 与数据
	if err := peer.SendFloat64(0.1); err != nil {
		t.Fatal(err)
	}
	if err := peer.SendFloat64s([]float64{0}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddComputedTime(0.1); err != nil {
		t.Fatal(err)
	}
	if err := s.Advance(); err != nil {
		t.Fatal(err)
	}

	if !s.IsCouplingTimestepComplete() {
		t.Fatalf("Expected converged timestep")
	}
	// 收敛时刻的值 4 进入首列,原首列 4 移到第二列
	if sd.OldValues.At(0, 0) != 4 {
		t.Errorf("Expected history column 0 to hold converged value 4, got %f", sd.OldValues.At(0, 0))
	}
	if sd.OldValues.At(0, 1) != 4 {
		t.Errorf("Expected previous column shifted to column 1, got %f", sd.OldValues.At(0, 1))
	}
	// 一阶外推:2·4 - 4 = 4
	if sd.Values.AtVec(0) != 4 {
		t.Errorf("Expected extrapolated value 4, got %f", sd.Values.AtVec(0))
	}
}

// TestSerialInitialDataProtocol 初始数据协议:
// 第二参与者声明初始化发送数据后必须先完成写初始数据动作,
// 否则 InitializeData 报错;完成后初值被移入历史列并发送。
func TestSerialInitialDataProtocol(t *testing.T) {
	m, peer := scriptChannel(t)
	mesh := types.NewMesh(0, "interface", 2, 1)

	cfg := newConfig("Solid", 1, 50)
	s, err := NewSerial(cfg, ModeImplicit, m, com.NewSingleRank())
	if err != nil {
		t.Fatal(err)
	}
	sd := types.NewCouplingData(2, mesh, 1, true) // 第二参与者初始化发送数据
	rd := types.NewCouplingData(1, mesh, 1, false)
	s.AddSendData(sd)
	s.AddReceiveData(rd)
	meas, err := NewAbsoluteMeasure(1e-10, com.NewSingleRank())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddConvergenceMeasure(2, false, meas); err != nil {
		t.Fatal(err)
	}

	// 第二参与者要初始化数据:Initialize 不做接收
	if err := s.Initialize(0, 0); err != nil {
		t.Fatal(err)
	}
	if !s.IsActionRequired(types.ActionWriteInitialData) {
		t.Fatal("Expected write-initial-data required")
	}

	// 动作未完成即调用 InitializeData 属于协议违规
	if err := s.InitializeData(); err == nil {
		t.Fatal("Expected InitializeData to fail before initial data was written")
	}

	// 求解器写入初值并确认动作
	sd.Values.SetVec(0, 7)
	sd.Values.SetVec(1, 8)
	if err := s.MarkActionFulfilled(types.ActionWriteInitialData); err != nil {
		t.Fatal(err)
	}

	// 脚本:对端接收初值后发来 dt 与第一时间步数据
	if err := peer.SendFloat64(0.1); err != nil {
		t.Fatal(err)
	}
	if err := peer.SendFloat64s([]float64{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := s.InitializeData(); err != nil {
		t.Fatal(err)
	}

	// 初值进入历史首列
	if sd.OldValues.At(0, 0) != 7 || sd.OldValues.At(1, 0) != 8 {
		t.Errorf("Expected initial values shifted into history, got [%f %f]",
			sd.OldValues.At(0, 0), sd.OldValues.At(1, 0))
	}
	// 对端收到初值
	buf := make([]float64, 2)
	if err := peer.ReceiveFloat64s(buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 7 || buf[1] != 8 {
		t.Errorf("Expected initial values [7 8] on the wire, got %v", buf)
	}
	// 接收数据已就位
	if rd.Values.AtVec(0) != 1 || rd.Values.AtVec(1) != 2 {
		t.Errorf("Expected received data [1 2], got [%f %f]", rd.Values.AtVec(0), rd.Values.AtVec(1))
	}
}

// TestSerialInitialDataRoleGuards 初始数据的角色约束:
// 第一参与者不能初始化发送数据,第二参与者不能初始化接收数据。
func TestSerialInitialDataRoleGuards(t *testing.T) {
	mesh := types.NewMesh(0, "interface", 1, 1)

	m1, _ := scriptChannel(t)
	cfg := newConfig("Fluid", 1, 50)
	s1, err := NewSerial(cfg, ModeImplicit, m1, com.NewSingleRank())
	if err != nil {
		t.Fatal(err)
	}
	s1.AddSendData(types.NewCouplingData(1, mesh, 1, true))
	s1.AddReceiveData(types.NewCouplingData(2, mesh, 1, false))
	if err := s1.Initialize(0, 0); err == nil {
		t.Errorf("Expected first participant initializing send data to fail")
	}

	m2, _ := scriptChannel(t)
	cfg2 := newConfig("Solid", 1, 50)
	s2, err := NewSerial(cfg2, ModeImplicit, m2, com.NewSingleRank())
	if err != nil {
		t.Fatal(err)
	}
	s2.AddSendData(types.NewCouplingData(2, mesh, 1, false))
	s2.AddReceiveData(types.NewCouplingData(1, mesh, 1, true))
	meas, err := NewAbsoluteMeasure(1e-6, com.NewSingleRank())
	if err != nil {
		t.Fatal(err)
	}
	if err := s2.AddConvergenceMeasure(2, false, meas); err != nil {
		t.Fatal(err)
	}
	if err := s2.Initialize(0, 0); err == nil {
		t.Errorf("Expected second participant initializing receive data to fail")
	}
}

// TestSerialSubcyclingNoExchange 子循环未完成(剩余时间非零)时
// Advance 不交换数据也不提出动作。
func TestSerialSubcyclingNoExchange(t *testing.T) {
	m, peer := scriptChannel(t)
	mesh := types.NewMesh(0, "interface", 1, 1)

	cfg := newConfig("Solid", 1, 50)
	s, err := NewSerial(cfg, ModeImplicit, m, com.NewSingleRank())
	if err != nil {
		t.Fatal(err)
	}
	sd := types.NewCouplingData(2, mesh, 1, false)
	s.AddSendData(sd)
	s.AddReceiveData(types.NewCouplingData(1, mesh, 1, false))
	meas, err := NewAbsoluteMeasure(1e-10, com.NewSingleRank())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddConvergenceMeasure(2, false, meas); err != nil {
		t.Fatal(err)
	}

	if err := peer.SendFloat64(0.1); err != nil {
		t.Fatal(err)
	}
	if err := peer.SendFloat64s([]float64{0}); err != nil {
		t.Fatal(err)
	}
	if err := s.Initialize(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkActionFulfilled(types.ActionWriteIterationCheckpoint); err != nil {
		t.Fatal(err)
	}

	// 只计算了半个时间步
	if err := s.AddComputedTime(0.05); err != nil {
		t.Fatal(err)
	}
	if err := s.Advance(); err != nil {
		t.Fatal(err)
	}
	if s.IsCouplingTimestepComplete() {
		t.Errorf("Expected timestep not complete during subcycling")
	}
	if s.IsActionRequired(types.ActionReadIterationCheckpoint) {
		t.Errorf("Expected no rollback action during subcycling")
	}
}

// TestSerialUnfulfilledActionFatal 未完成动作时 Advance 报致命协议违规。
func TestSerialUnfulfilledActionFatal(t *testing.T) {
	m, peer := scriptChannel(t)
	mesh := types.NewMesh(0, "interface", 1, 1)

	cfg := newConfig("Solid", 1, 50)
	s, err := NewSerial(cfg, ModeImplicit, m, com.NewSingleRank())
	if err != nil {
		t.Fatal(err)
	}
	s.AddSendData(types.NewCouplingData(2, mesh, 1, false))
	s.AddReceiveData(types.NewCouplingData(1, mesh, 1, false))
	meas, err := NewAbsoluteMeasure(1e-10, com.NewSingleRank())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddConvergenceMeasure(2, false, meas); err != nil {
		t.Fatal(err)
	}

	if err := peer.SendFloat64(0.1); err != nil {
		t.Fatal(err)
	}
	if err := peer.SendFloat64s([]float64{0}); err != nil {
		t.Fatal(err)
	}
	if err := s.Initialize(0, 0); err != nil {
		t.Fatal(err)
	}
	// 写检查点动作未完成
	if err := s.Advance(); err == nil {
		t.Errorf("Expected Advance to fail with unfulfilled actions")
	}
}

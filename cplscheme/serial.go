package cplscheme

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"coupling/acceleration"
	"coupling/com"
	"coupling/m2n"
	"coupling/maths"
	"coupling/types"
)

// Serial 串行耦合方案
// @ 每次迭代第一参与者先发送后接收;第二参与者先接收输入,
// @ 执行收敛测量与加速,再把裁决与新数据发回.
// @ 这一次序避免死锁,并保证加速总是使用最新输入.
type Serial struct {
	*baseScheme
	mode Mode
}

var _ Scheme = (*Serial)(nil)

// NewSerial 创建串行耦合方案
// 显式模式要求迭代上限为1,隐式模式要求迭代上限至少为1.
func NewSerial(cfg Config, mode Mode, m *m2n.M2N, intra com.IntraComm) (*Serial, error) {
	if mode != ModeExplicit && mode != ModeImplicit {
		return nil, fmt.Errorf("串行方案的耦合模式必须为显式或隐式")
	}
	if mode == ModeExplicit && cfg.MaxIterations != 1 {
		return nil, fmt.Errorf("显式模式的迭代上限必须为1: %d", cfg.MaxIterations)
	}
	if mode == ModeImplicit && cfg.MaxIterations < 1 {
		return nil, fmt.Errorf("隐式模式的迭代上限必须至少为1: %d", cfg.MaxIterations)
	}
	base, err := newBaseScheme(cfg, m, intra)
	if err != nil {
		return nil, err
	}
	return &Serial{baseScheme: base, mode: mode}, nil
}

// Initialize 建立方案状态并协商初始数据
// 隐式模式下在第二参与者上装配收敛测量与加速器,
// 并在时间步开始前提出写检查点动作.
func (s *Serial) Initialize(startTime float64, startTimestep int) error {
	if s.initialized {
		return fmt.Errorf("方案已初始化")
	}
	if startTime < 0 {
		return fmt.Errorf("起始时间必须非负: %g", startTime)
	}
	if startTimestep < 0 {
		return fmt.Errorf("起始时间步必须非负: %d", startTimestep)
	}
	s.time = startTime
	s.timesteps = startTimestep

	if s.mode == ModeImplicit {
		if s.sendData.Len() == 0 {
			return fmt.Errorf("隐式耦合没有配置发送数据,单向耦合请使用显式模式")
		}
		if !s.doesFirstStep {
			if len(s.measures) == 0 {
				return fmt.Errorf("隐式耦合必须至少配置一个收敛判据")
			}
			s.setupDataMatrices()
			if s.acc != nil {
				if err := s.acc.Initialize(s.sendData); err != nil {
					return err
				}
			}
		} else if s.acc != nil && len(s.acc.DataIDs()) > 0 {
			// 串行方案中加速只能作用于第二参与者的数据
			id := s.acc.DataIDs()[0]
			if s.sendData.Contains(id) {
				return fmt.Errorf("串行耦合的加速只能配置在第二参与者的数据上: 数据 %d", id)
			}
		}
		s.requireAction(types.ActionWriteIterationCheckpoint)
	}

	var roleErr error
	s.sendData.Each(func(d *types.CouplingData) {
		if d.Initialize {
			if s.doesFirstStep {
				roleErr = fmt.Errorf("只有第二参与者能初始化发送数据: 数据 %d", d.ID)
				return
			}
			s.hasToSendInitData = true
		}
	})
	if roleErr != nil {
		return roleErr
	}
	s.receiveData.Each(func(d *types.CouplingData) {
		if d.Initialize {
			if !s.doesFirstStep {
				roleErr = fmt.Errorf("只有第一参与者能接收初始数据: 数据 %d", d.ID)
				return
			}
			s.hasToReceiveInitData = true
		}
	})
	if roleErr != nil {
		return roleErr
	}

	// 第二参与者不初始化数据时,第一次接收在这里完成;
	// 否则推迟到 InitializeData.
	if !s.doesFirstStep && !s.hasToSendInitData && s.IsCouplingOngoing() {
		if err := s.receiveAndSetDt(); err != nil {
			return err
		}
		if err := s.receiveAllData(); err != nil {
			return err
		}
		s.hasDataBeenExchanged = true
	}

	if s.hasToSendInitData {
		s.requireAction(types.ActionWriteInitialData)
	}
	s.initialized = true
	return nil
}

// InitializeData 交换初始数据
// 双方都不初始化时为空操作.第二参与者把初值移入历史列
// 后发送,再接收自己的下一步输入,保持与后续时间步一致的收发次序.
func (s *Serial) InitializeData() error {
	if !s.initialized {
		return fmt.Errorf("InitializeData 只能在 Initialize 之后调用")
	}
	if !s.hasToSendInitData && !s.hasToReceiveInitData {
		return nil
	}
	if s.hasToSendInitData && s.IsActionRequired(types.ActionWriteInitialData) {
		return fmt.Errorf("调用 InitializeData 前必须先写入初始数据")
	}
	s.hasDataBeenExchanged = false

	if s.hasToReceiveInitData && s.IsCouplingOngoing() {
		if !s.doesFirstStep {
			return fmt.Errorf("只有第一参与者能接收初始数据")
		}
		if err := s.receiveAllData(); err != nil {
			return err
		}
		s.hasDataBeenExchanged = true
	}

	if s.hasToSendInitData && s.IsCouplingOngoing() {
		if s.doesFirstStep {
			return fmt.Errorf("只有第二参与者能发送初始数据")
		}
		s.sendData.Each(func(d *types.CouplingData) {
			if d.Cols() == 0 {
				return
			}
			// 外推把初值视为上一时间步值
			d.OldValues.SetCol(0, rawOf(d.Values))
			maths.ShiftSetFirst(d.OldValues, d.Values)
		})
		if err := s.sendAllData(); err != nil {
			return err
		}
		if err := s.receiveAndSetDt(); err != nil {
			return err
		}
		// 这次接收取代 Initialize 中被推迟的接收
		if err := s.receiveAllData(); err != nil {
			return err
		}
		s.hasDataBeenExchanged = true
	}

	s.hasToSendInitData = false
	s.hasToReceiveInitData = false
	return nil
}

// Advance 执行一次迭代尝试
// 求解器仍在子循环内(剩余时间非零)时不做任何交换.
func (s *Serial) Advance() error {
	if err := s.checkCompletenessRequiredActions(); err != nil {
		return err
	}
	if s.hasToReceiveInitData || s.hasToSendInitData {
		return fmt.Errorf("存在待交换的初始数据,必须先调用 InitializeData")
	}
	s.hasDataBeenExchanged = false
	s.isCouplingTimestepComplete = false

	if !maths.EqualsEps(s.GetThisTimestepRemainder(), 0.0, s.eps) {
		return nil
	}
	if s.mode == ModeExplicit {
		return s.advanceExplicit()
	}
	return s.advanceImplicit()
}

// advanceExplicit 显式分支:单次交换即完成时间步
func (s *Serial) advanceExplicit() error {
	s.timestepCompleted()
	if err := s.sendDt(); err != nil {
		return err
	}
	if err := s.sendAllData(); err != nil {
		return err
	}
	// 最后一个时间步第二参与者不再需要新数据
	if s.IsCouplingOngoing() || s.doesFirstStep {
		if err := s.receiveAndSetDt(); err != nil {
			return err
		}
		if err := s.receiveAllData(); err != nil {
			return err
		}
		s.hasDataBeenExchanged = true
	}
	s.computedTimestepPart = 0
	return nil
}

// advanceImplicit 隐式分支:一次定点迭代
func (s *Serial) advanceImplicit() error {
	convergence := true
	if s.doesFirstStep {
		if err := s.sendDt(); err != nil {
			return err
		}
		if err := s.sendAllData(); err != nil {
			return err
		}
		var err error
		convergence, err = s.m.ReceiveBool()
		if err != nil {
			return err
		}
		s.isCoarseModelOptimizationActive, err = s.m.ReceiveBool()
		if err != nil {
			return err
		}
		if convergence {
			s.timestepCompleted()
		}
		if err := s.receiveAllData(); err != nil {
			return err
		}
		s.hasDataBeenExchanged = true
	} else {
		var err error
		convergence, err = s.advanceSecondParticipant()
		if err != nil {
			return err
		}
	}

	if !convergence {
		s.requireAction(types.ActionReadIterationCheckpoint)
	} else if s.IsCouplingOngoing() {
		// 新时间步开始前要求新的检查点
		s.requireAction(types.ActionWriteIterationCheckpoint)
	}
	s.updateTimeAndIterations(convergence)
	s.computedTimestepPart = 0
	return nil
}

// advanceSecondParticipant 第二参与者的迭代:
// 测量收敛,执行或复位加速,存储历史,发回裁决与数据.
func (s *Serial) advanceSecondParticipant() (bool, error) {
	convergence := true
	doOnlySolverEvaluation := false

	var specs map[types.DataID]*mat.VecDense
	if s.acc != nil {
		var err error
		specs, err = s.acc.DesignSpecification(s.sendData)
		if err != nil {
			return false, err
		}
	}

	if s.isCoarseModelOptimizationActive {
		// 多层分支:只测量粗模型优化的收敛
		convergenceCoarse, err := s.measureConvergenceCoarse(specs)
		if err != nil {
			return false, err
		}
		if s.maxIterationsReached() {
			convergenceCoarse = true
		}
		convergence = false
		if convergenceCoarse {
			s.isCoarseModelOptimizationActive = false
			doOnlySolverEvaluation = true
		}
	} else {
		var err error
		convergence, err = s.measureConvergence(specs)
		if err != nil {
			return false, err
		}
		if s.maxIterationsReached() {
			convergence = true
		}
	}

	// 可选的多层能力:标记按值传入并取回更新后的值
	if cs, ok := s.acc.(acceleration.CoarseSteering); ok {
		s.isCoarseModelOptimizationActive = cs.SteerCoarse(s.isCoarseModelOptimizationActive)
	}

	if !doOnlySolverEvaluation {
		if convergence {
			if s.acc != nil {
				s.acc.Converged(s.sendData)
			}
			s.newConvergenceMeasurements()
			s.timestepCompleted()
		} else if s.acc != nil {
			if err := s.acc.Accelerate(s.sendData); err != nil {
				return false, err
			}
		}

		if convergence && s.cfg.ExtrapolationOrder > 0 {
			if err := s.extrapolateData(s.sendData); err != nil {
				return false, err
			}
		} else {
			s.storeIterationValues()
		}
	}

	if err := s.m.SendBool(convergence); err != nil {
		return false, err
	}
	if err := s.m.SendBool(s.isCoarseModelOptimizationActive); err != nil {
		return false, err
	}
	if err := s.sendAllData(); err != nil {
		return false, err
	}

	// 最后一个时间步的收敛迭代后不再需要新数据
	if s.IsCouplingOngoing() || !convergence {
		if err := s.receiveAndSetDt(); err != nil {
			return false, err
		}
		if err := s.receiveAllData(); err != nil {
			return false, err
		}
		s.hasDataBeenExchanged = true
	}
	return convergence, nil
}

// Finalize 结束耦合
func (s *Serial) Finalize() error {
	if !s.initialized {
		return fmt.Errorf("方案尚未初始化")
	}
	return nil
}

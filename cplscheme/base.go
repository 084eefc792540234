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

// measureEntry 绑定到单个耦合数据的收敛判据
type measureEntry struct {
	data     *types.CouplingData
	suffices bool // 单独满足即可判定收敛
	measure  Measure
}

// baseScheme 串行与并行方案共享的状态与机制
// @ 时钟,动作集合,数据表,收敛判据与外推都集中在这里,
// @ 具体方案只负责各自的交换次序.
type baseScheme struct {
	cfg   Config
	m     *m2n.M2N
	intra com.IntraComm
	eps   float64

	time                 float64
	timesteps            int
	timestepLength       float64
	computedTimestepPart float64

	doesFirstStep              bool
	initialized                bool
	isCouplingTimestepComplete bool
	hasDataBeenExchanged       bool
	hasToSendInitData          bool
	hasToReceiveInitData       bool

	iterations                      int // 本时间步内的迭代序号,从1起
	totalIterations                 int
	iterationsCoarseOptimization    int
	isCoarseModelOptimizationActive bool

	actions     types.ActionSet
	sendData    *types.DataMap
	receiveData *types.DataMap

	acc            acceleration.Acceleration
	measures       []measureEntry
	coarseMeasures []measureEntry
	watcher        Watcher
}

// newBaseScheme 创建共享状态
func newBaseScheme(cfg Config, m *m2n.M2N, intra com.IntraComm) (*baseScheme, error) {
	if cfg.LocalParticipant != cfg.FirstParticipant && cfg.LocalParticipant != cfg.SecondParticipant {
		return nil, fmt.Errorf("本地参与者 %q 既不是第一参与者也不是第二参与者", cfg.LocalParticipant)
	}
	if cfg.FirstParticipant == cfg.SecondParticipant {
		return nil, fmt.Errorf("两个参与者不能同名: %q", cfg.FirstParticipant)
	}
	if cfg.ValidDigits <= 0 {
		cfg.ValidDigits = types.DefaultValidDigits
	}
	return &baseScheme{
		cfg:                          cfg,
		m:                            m,
		intra:                        intra,
		eps:                          maths.EpsFromDigits(cfg.ValidDigits),
		timestepLength:               cfg.TimestepLength,
		doesFirstStep:                cfg.LocalParticipant == cfg.FirstParticipant,
		iterations:                   1,
		iterationsCoarseOptimization: 1,
		actions:                      types.NewActionSet(),
		sendData:                     types.NewDataMap(),
		receiveData:                  types.NewDataMap(),
	}, nil
}

// ------------------------------ 数据与协作者 ------------------------------

// AddSendData 注册发送数据
func (b *baseScheme) AddSendData(d *types.CouplingData) {
	b.sendData.Insert(d)
}

// AddReceiveData 注册接收数据
func (b *baseScheme) AddReceiveData(d *types.CouplingData) {
	b.receiveData.Insert(d)
}

// SendData 发送数据表
func (b *baseScheme) SendData() *types.DataMap { return b.sendData }

// ReceiveData 接收数据表
func (b *baseScheme) ReceiveData() *types.DataMap { return b.receiveData }

// SetAcceleration 配置加速器
func (b *baseScheme) SetAcceleration(a acceleration.Acceleration) {
	b.acc = a
}

// SetWatcher 配置迭代历史观察者
func (b *baseScheme) SetWatcher(w Watcher) {
	b.watcher = w
}

// getData 在发送与接收表中查找数据
func (b *baseScheme) getData(id types.DataID) *types.CouplingData {
	if d := b.sendData.Get(id); d != nil {
		return d
	}
	return b.receiveData.Get(id)
}

// AddConvergenceMeasure 为数据绑定收敛判据
func (b *baseScheme) AddConvergenceMeasure(id types.DataID, suffices bool, m Measure) error {
	d := b.getData(id)
	if d == nil {
		return fmt.Errorf("收敛判据引用了未注册的数据 %d", id)
	}
	b.measures = append(b.measures, measureEntry{data: d, suffices: suffices, measure: m})
	return nil
}

// AddCoarseConvergenceMeasure 为粗模型优化绑定收敛判据
func (b *baseScheme) AddCoarseConvergenceMeasure(id types.DataID, suffices bool, m Measure) error {
	d := b.getData(id)
	if d == nil {
		return fmt.Errorf("收敛判据引用了未注册的数据 %d", id)
	}
	b.coarseMeasures = append(b.coarseMeasures, measureEntry{data: d, suffices: suffices, measure: m})
	return nil
}

// ------------------------------ 动作协议 ------------------------------

// requireAction 提出动作
func (b *baseScheme) requireAction(a types.Action) {
	b.actions.Require(a)
}

// IsActionRequired 查询动作是否待完成
func (b *baseScheme) IsActionRequired(a types.Action) bool {
	return b.actions.Contains(a)
}

// MarkActionFulfilled 清除已完成的动作
func (b *baseScheme) MarkActionFulfilled(a types.Action) error {
	if !b.actions.Contains(a) {
		return fmt.Errorf("动作 %q 未被提出,无法标记完成", a)
	}
	b.actions.Fulfill(a)
	return nil
}

// checkCompletenessRequiredActions 校验全部动作已完成
// 求解器遗漏动作会使耦合状态不一致,属于致命协议违规.
func (b *baseScheme) checkCompletenessRequiredActions() error {
	if !b.actions.Empty() {
		return fmt.Errorf("求解器未完成必需动作: %v", b.actions.List())
	}
	return nil
}

// ------------------------------ 时钟 ------------------------------

// GetTime 当前物理时间
func (b *baseScheme) GetTime() float64 { return b.time }

// GetTimesteps 已完成时间步数
func (b *baseScheme) GetTimesteps() int { return b.timesteps }

// IsCouplingTimestepComplete 本时间步是否收敛完成
func (b *baseScheme) IsCouplingTimestepComplete() bool { return b.isCouplingTimestepComplete }

// HasDataBeenExchanged 最近一次调用是否交换了数据
func (b *baseScheme) HasDataBeenExchanged() bool { return b.hasDataBeenExchanged }

// IsCouplingOngoing 耦合是否继续
// 时间与步数上限任一到达即结束,负值上限表示不限.
func (b *baseScheme) IsCouplingOngoing() bool {
	timeLeft := b.cfg.MaxTime < 0 || b.cfg.MaxTime-b.time > b.eps
	timestepsLeft := b.cfg.MaxTimesteps < 0 || b.timesteps < b.cfg.MaxTimesteps
	return timeLeft && timestepsLeft
}

// AddComputedTime 求解器上报已计算的时间
func (b *baseScheme) AddComputedTime(dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("上报的时间增量必须为正: %g", dt)
	}
	b.computedTimestepPart += dt
	b.time += dt
	if b.timestepLength != types.UndefinedTimestepLength &&
		b.computedTimestepPart-b.timestepLength > b.eps {
		return fmt.Errorf("已计算时间 %g 超出时间步长 %g", b.computedTimestepPart, b.timestepLength)
	}
	return nil
}

// GetThisTimestepRemainder 本时间步剩余时间
// 步长未定义时恒为零:求解器自行决定子循环.
func (b *baseScheme) GetThisTimestepRemainder() float64 {
	if b.timestepLength == types.UndefinedTimestepLength {
		return 0
	}
	return b.timestepLength - b.computedTimestepPart
}

// GetMaxTimestepLength 求解器下一步允许的最大步长
func (b *baseScheme) GetMaxTimestepLength() float64 {
	remainder := b.GetThisTimestepRemainder()
	if b.cfg.MaxTime < 0 {
		if b.timestepLength == types.UndefinedTimestepLength {
			return types.UndefinedTimestepLength
		}
		return remainder
	}
	timeLeft := b.cfg.MaxTime - b.time
	if b.timestepLength == types.UndefinedTimestepLength || remainder > timeLeft {
		return timeLeft
	}
	return remainder
}

// timestepCompleted 标记时间步完成并推进计数
func (b *baseScheme) timestepCompleted() {
	b.isCouplingTimestepComplete = true
	b.timesteps++
}

// updateTimeAndIterations 迭代结束后的时钟与计数更新
// 未收敛时回退本次已计算的时间,下一次迭代重新计算同一时间步.
func (b *baseScheme) updateTimeAndIterations(convergence bool) {
	b.totalIterations++
	if !convergence {
		b.time -= b.computedTimestepPart
		b.iterations++
		b.iterationsCoarseOptimization++
	} else {
		b.iterations = 1
		b.iterationsCoarseOptimization = 1
	}
}

// maxIterationsReached 是否到达迭代上限
func (b *baseScheme) maxIterationsReached() bool {
	return b.cfg.MaxIterations > 0 && b.iterations >= b.cfg.MaxIterations
}

// ------------------------------ 数据交换 ------------------------------

// sendDt 发送本时间步计算的步长
func (b *baseScheme) sendDt() error {
	return b.m.SendFloat64(b.computedTimestepPart)
}

// receiveAndSetDt 接收对方步长,由第一参与者决定步长时采纳
func (b *baseScheme) receiveAndSetDt() error {
	dt, err := b.m.ReceiveFloat64()
	if err != nil {
		return err
	}
	if b.cfg.DtMethod == FirstParticipantSetsDt {
		b.timestepLength = dt
	}
	return nil
}

// sendAllData 按配置次序发送全部发送数据
func (b *baseScheme) sendAllData() error {
	var err error
	b.sendData.Each(func(d *types.CouplingData) {
		if err != nil {
			return
		}
		err = b.m.Send(d.Values.RawVector().Data, d.Mesh.ID, d.Dim)
	})
	return err
}

// receiveAllData 按配置次序接收全部接收数据
func (b *baseScheme) receiveAllData() error {
	var err error
	b.receiveData.Each(func(d *types.CouplingData) {
		if err != nil {
			return
		}
		err = b.m.Receive(d.Values.RawVector().Data, d.Mesh.ID, d.Dim)
	})
	return err
}

// ------------------------------ 历史与外推 ------------------------------

// setupDataMatrices 为收敛测量与外推预留历史列
// 发送数据预留 外推阶数+1 列,判据绑定的数据至少一列,全部填零.
func (b *baseScheme) setupDataMatrices() {
	cols := b.cfg.ExtrapolationOrder + 1
	b.sendData.Each(func(d *types.CouplingData) {
		for d.Cols() < cols {
			d.OldValues = maths.AppendCol(d.OldValues, mat.NewVecDense(d.Size(), nil))
		}
	})
	for _, e := range append(append([]measureEntry(nil), b.measures...), b.coarseMeasures...) {
		if e.data.Cols() < 1 {
			e.data.OldValues = maths.AppendCol(e.data.OldValues, mat.NewVecDense(e.data.Size(), nil))
		}
	}
}

// extrapolateData 收敛后对发送数据做时间外推
// 当前值移入历史首列,值向量被外推预测覆盖.
func (b *baseScheme) extrapolateData(data *types.DataMap) error {
	order := b.cfg.ExtrapolationOrder
	if order != 1 && order != 2 {
		return fmt.Errorf("不支持的外推阶数: %d", order)
	}
	var err error
	data.Each(func(d *types.CouplingData) {
		if err != nil {
			return
		}
		if order == 1 || b.timesteps == 1 {
			// 一阶:x' = 2·x₀ - x₁
			if d.Cols() < 2 {
				err = fmt.Errorf("数据 %d 历史列不足,无法一阶外推", d.ID)
				return
			}
			maths.ShiftSetFirst(d.OldValues, d.Values)
			for i := 0; i < d.Size(); i++ {
				d.Values.SetVec(i, 2*d.OldValues.At(i, 0)-d.OldValues.At(i, 1))
			}
			return
		}
		// 二阶:x' = 2.5·x₀ - 2·x₁ + 0.5·x₂
		if d.Cols() < 3 {
			err = fmt.Errorf("数据 %d 历史列不足,无法二阶外推", d.ID)
			return
		}
		maths.ShiftSetFirst(d.OldValues, d.Values)
		for i := 0; i < d.Size(); i++ {
			d.Values.SetVec(i, 2.5*d.OldValues.At(i, 0)-2*d.OldValues.At(i, 1)+0.5*d.OldValues.At(i, 2))
		}
	})
	return err
}

// storeIterationValues 把当前值复制进历史首列
// 保证下一次迭代的残差有定义.
func (b *baseScheme) storeIterationValues() {
	store := func(d *types.CouplingData) {
		if d.Cols() > 0 {
			d.OldValues.SetCol(0, rawOf(d.Values))
		}
	}
	b.sendData.Each(store)
	b.receiveData.Each(store)
}

// rawOf 复制向量内容
func rawOf(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

// ------------------------------ 收敛测量 ------------------------------

// measureSuite 对一组判据执行测量
// 全部判据满足,或任一标记为"单独充分"的判据满足,即判定收敛.
func (b *baseScheme) measureSuite(entries []measureEntry, specs map[types.DataID]*mat.VecDense) (bool, error) {
	allConverged := true
	oneSuffices := false
	normDiffs := make(map[types.DataID]float64, len(entries))
	for _, e := range entries {
		if e.data.Cols() < 1 {
			return false, fmt.Errorf("数据 %d 没有历史列,收敛测量未初始化", e.data.ID)
		}
		var q *mat.VecDense
		if specs != nil {
			q = specs[e.data.ID]
		}
		if err := e.measure.MeasureConvergence(e.data.OldValuesCol(0), e.data.Values, q); err != nil {
			return false, err
		}
		normDiffs[e.data.ID] = e.measure.NormDiff()
		if !e.measure.IsConvergence() {
			allConverged = false
		} else if e.suffices {
			oneSuffices = true
		}
	}
	converged := allConverged || oneSuffices
	if b.watcher != nil {
		b.watcher.RecordIteration(b.timesteps, b.iterations, converged, normDiffs)
	}
	return converged, nil
}

// measureConvergence 主判据组
func (b *baseScheme) measureConvergence(specs map[types.DataID]*mat.VecDense) (bool, error) {
	return b.measureSuite(b.measures, specs)
}

// measureConvergenceCoarse 粗模型优化判据组
func (b *baseScheme) measureConvergenceCoarse(specs map[types.DataID]*mat.VecDense) (bool, error) {
	return b.measureSuite(b.coarseMeasures, specs)
}

// newConvergenceMeasurements 新时间步开始,清除全部判据状态
func (b *baseScheme) newConvergenceMeasurements() {
	for _, e := range b.measures {
		e.measure.Reset()
	}
	for _, e := range b.coarseMeasures {
		e.measure.Reset()
	}
}

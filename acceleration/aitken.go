package acceleration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"coupling/com"
	"coupling/maths"
	"coupling/types"
)

// Aitken 动态松弛加速器
// @ 由最近两次残差计算动态松弛因子ω,
// @ 再以 ω·values + (1-ω)·oldValues[:,0] 混合当前与上一迭代值.
// @ 内积通过 IntraComm 做跨秩全局归约,所有秩必须同步进入 Accelerate.
type Aitken struct {
	initialRelaxation float64        // 初始松弛因子 ω₀ ∈ (0,1]
	dataIDs           []types.DataID // 作用的数据标识,1个或2个
	intra             com.IntraComm  // 全局归约协作者
	factor            float64        // 当前松弛因子ω,符号跨时间步保留
	iteration         int            // 本时间步内的迭代计数
	residuals         *mat.VecDense  // 上一迭代残差,哨兵值表示缺省
	designSpec        *mat.VecDense  // 设计目标向量,基础场景为零
}

var _ Acceleration = (*Aitken)(nil)

// NewAitken 创建动态松弛加速器
// 初始松弛因子必须位于 (0,1],数据标识为1个或2个.
func NewAitken(initialRelaxation float64, dataIDs []types.DataID, intra com.IntraComm) (*Aitken, error) {
	if !(initialRelaxation > 0.0 && initialRelaxation <= 1.0) {
		return nil, fmt.Errorf("初始松弛因子必须大于零且不大于一: %g", initialRelaxation)
	}
	if len(dataIDs) != 1 && len(dataIDs) != 2 {
		return nil, fmt.Errorf("动态松弛只支持1个或2个耦合数据: %d", len(dataIDs))
	}
	return &Aitken{
		initialRelaxation: initialRelaxation,
		dataIDs:           append([]types.DataID(nil), dataIDs...),
		intra:             intra,
		factor:            initialRelaxation,
	}, nil
}

// DataIDs 加速作用的数据标识
func (a *Aitken) DataIDs() []types.DataID {
	return a.dataIDs
}

// Factor 当前松弛因子ω
func (a *Aitken) Factor() float64 {
	return a.factor
}

// Initialize 按数据表分配残差与设计目标缓冲
// 残差缓冲长度为各数据值向量长度之和,以哨兵值填充;
// 缺少历史列的数据补一列零作为上一迭代值.
func (a *Aitken) Initialize(data *types.DataMap) error {
	entries := 0
	for _, id := range a.dataIDs {
		d := data.Get(id)
		if d == nil {
			return fmt.Errorf("初始化给定的数据表不包含数据 %d", id)
		}
		entries += d.Size()
	}
	a.residuals = maths.NewSentinelVec(entries)
	a.designSpec = mat.NewVecDense(entries, nil)

	data.Each(func(d *types.CouplingData) {
		if d.Cols() < 1 {
			d.OldValues = maths.AppendCol(d.OldValues, mat.NewVecDense(d.Size(), nil))
		}
	})
	return nil
}

// Accelerate 执行一次动态松弛
// 首次迭代以初始松弛因子为界,保留上个收敛ω的符号;
// 之后按 ω := -ω·(⟨r_prev,Δr⟩/⟨Δr,Δr⟩) 更新,分母为零是致命数值错误.
func (a *Aitken) Accelerate(data *types.DataMap) error {
	if a.residuals == nil {
		return fmt.Errorf("加速器尚未初始化")
	}
	if !data.Contains(a.dataIDs[0]) {
		return fmt.Errorf("数据表不包含数据 %d", a.dataIDs[0])
	}

	// 按标识次序拼接当前值与上一迭代值
	parts := make([]*mat.VecDense, 0, len(a.dataIDs))
	oldParts := make([]*mat.VecDense, 0, len(a.dataIDs))
	for _, id := range a.dataIDs {
		d := data.Get(id)
		parts = append(parts, d.Values)
		oldParts = append(oldParts, d.OldValuesCol(0))
	}
	values := maths.Concat(parts...)
	oldValues := maths.Concat(oldParts...)

	// 当前残差
	residuals := mat.NewVecDense(values.Len(), nil)
	residuals.SubVec(values, oldValues)

	// 残差增量
	residualDeltas := mat.NewVecDense(residuals.Len(), nil)
	residualDeltas.SubVec(residuals, a.residuals)

	if a.iteration == 0 {
		a.factor = maths.Sign(a.factor) * math.Min(a.initialRelaxation, math.Abs(a.factor))
	} else {
		nominator, err := a.intra.Dot(a.residuals, residualDeltas)
		if err != nil {
			return err
		}
		denominator, err := a.intra.Dot(residualDeltas, residualDeltas)
		if err != nil {
			return err
		}
		if denominator == 0 {
			return fmt.Errorf("动态松弛分母为零: 残差在迭代间未发生变化")
		}
		a.factor = -a.factor * (nominator / denominator)
	}

	// 混合当前值与上一迭代值
	omega := a.factor
	oneMinusOmega := 1.0 - omega
	data.Each(func(d *types.CouplingData) {
		old := d.OldValuesCol(0)
		for i := 0; i < d.Values.Len(); i++ {
			d.Values.SetVec(i, omega*d.Values.AtVec(i)+oneMinusOmega*old.AtVec(i))
		}
	})

	a.residuals = residuals
	a.iteration++
	return nil
}

// Converged 时间步收敛,复位迭代计数并以哨兵值重填残差
// 重复调用等价于单次调用.
func (a *Aitken) Converged(data *types.DataMap) {
	a.iteration = 0
	if a.residuals != nil {
		maths.Fill(a.residuals, maths.Sentinel)
	}
}

// DesignSpecification 按数据标识拆分设计目标向量
// 子向量按标识次序以偏移累计切出.
func (a *Aitken) DesignSpecification(data *types.DataMap) (map[types.DataID]*mat.VecDense, error) {
	if a.designSpec == nil {
		return nil, fmt.Errorf("加速器尚未初始化")
	}
	out := make(map[types.DataID]*mat.VecDense, len(a.dataIDs))
	off := 0
	for _, id := range a.dataIDs {
		d := data.Get(id)
		if d == nil {
			return nil, fmt.Errorf("数据表不包含数据 %d", id)
		}
		size := d.Size()
		q := mat.NewVecDense(size, nil)
		for i := 0; i < size; i++ {
			q.SetVec(i, a.designSpec.AtVec(i+off))
		}
		off += size
		out[id] = q
	}
	return out, nil
}

// SetDesignSpecification 设置非零设计目标
// 动态松弛尚不支持,始终返回错误.
func (a *Aitken) SetDesignSpecification(q *mat.VecDense) error {
	return fmt.Errorf("动态松弛暂不支持设计目标")
}

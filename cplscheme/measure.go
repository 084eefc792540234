// Package cplscheme 实现隐式耦合方案的状态机。
// 一个时间步被细分为若干定点迭代:第二参与者测量收敛,
// 执行加速,并把收敛裁决广播给对方;未收敛时双方回读检查点。
package cplscheme

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"coupling/com"
)

// Measure 单个耦合数据上的收敛判据
// @ 判据检查 (上一迭代值, 当前值-设计目标) 并给出布尔结论.
// @ 范数通过 IntraComm 做跨秩全局归约.
type Measure interface {
	MeasureConvergence(oldValues, newValues, designSpec *mat.VecDense) error // 执行一次测量
	IsConvergence() bool                                                     // 最近一次测量的结论
	NormDiff() float64                                                       // 最近一次测量的残差范数
	Reset()                                                                  // 新时间步开始,清除测量状态
}

// globalNorm2 差向量的全局二范数
func globalNorm2(v *mat.VecDense, intra com.IntraComm) (float64, error) {
	dot, err := intra.Dot(v, v)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(dot), nil
}

// residualDiff 计算 new - old - q,q 为 nil 时视为零
func residualDiff(oldValues, newValues, designSpec *mat.VecDense) (*mat.VecDense, error) {
	if oldValues.Len() != newValues.Len() {
		return nil, fmt.Errorf("收敛测量维度不匹配: %d 与 %d", oldValues.Len(), newValues.Len())
	}
	diff := mat.NewVecDense(newValues.Len(), nil)
	diff.SubVec(newValues, oldValues)
	if designSpec != nil {
		if designSpec.Len() != diff.Len() {
			return nil, fmt.Errorf("设计目标维度不匹配: %d 与 %d", designSpec.Len(), diff.Len())
		}
		diff.SubVec(diff, designSpec)
	}
	return diff, nil
}

// AbsoluteMeasure 绝对范数判据: ‖new-q-old‖₂ ≤ limit
type AbsoluteMeasure struct {
	limit     float64
	intra     com.IntraComm
	normDiff  float64
	converged bool
}

// NewAbsoluteMeasure 创建绝对判据,界限必须为正
func NewAbsoluteMeasure(limit float64, intra com.IntraComm) (*AbsoluteMeasure, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("绝对收敛界限必须大于零: %g", limit)
	}
	return &AbsoluteMeasure{limit: limit, intra: intra}, nil
}

func (m *AbsoluteMeasure) MeasureConvergence(oldValues, newValues, designSpec *mat.VecDense) error {
	diff, err := residualDiff(oldValues, newValues, designSpec)
	if err != nil {
		return err
	}
	m.normDiff, err = globalNorm2(diff, m.intra)
	if err != nil {
		return err
	}
	m.converged = m.normDiff <= m.limit
	return nil
}

func (m *AbsoluteMeasure) IsConvergence() bool { return m.converged }
func (m *AbsoluteMeasure) NormDiff() float64   { return m.normDiff }

// Reset 清除测量状态
func (m *AbsoluteMeasure) Reset() {
	m.normDiff = 0
	m.converged = false
}

// RelativeMeasure 相对范数判据: ‖new-q-old‖₂ ≤ limit·‖new‖₂
type RelativeMeasure struct {
	limit     float64
	intra     com.IntraComm
	normDiff  float64
	converged bool
}

// NewRelativeMeasure 创建相对判据,界限必须位于 (0,1]
func NewRelativeMeasure(limit float64, intra com.IntraComm) (*RelativeMeasure, error) {
	if !(limit > 0 && limit <= 1) {
		return nil, fmt.Errorf("相对收敛界限必须大于零且不大于一: %g", limit)
	}
	return &RelativeMeasure{limit: limit, intra: intra}, nil
}

func (m *RelativeMeasure) MeasureConvergence(oldValues, newValues, designSpec *mat.VecDense) error {
	diff, err := residualDiff(oldValues, newValues, designSpec)
	if err != nil {
		return err
	}
	m.normDiff, err = globalNorm2(diff, m.intra)
	if err != nil {
		return err
	}
	norm, err := globalNorm2(newValues, m.intra)
	if err != nil {
		return err
	}
	m.converged = m.normDiff <= m.limit*norm
	return nil
}

func (m *RelativeMeasure) IsConvergence() bool { return m.converged }
func (m *RelativeMeasure) NormDiff() float64   { return m.normDiff }

// Reset 清除测量状态
func (m *RelativeMeasure) Reset() {
	m.normDiff = 0
	m.converged = false
}

package maths

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Sentinel 表示"无上一残差"的哨兵值
// @ 与收敛后的重置约定配合,保证每个时间步的首次迭代
// @ 走初始松弛分支而不使用过期的残差增量.
const Sentinel = math.MaxFloat64

// Sign 符号函数,零返回零
func Sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// Fill 将向量全部元素置为 x
func Fill(v *mat.VecDense, x float64) {
	raw := v.RawVector()
	for i := 0; i < raw.N; i++ {
		raw.Data[i*raw.Inc] = x
	}
}

// NewSentinelVec 创建长度为 n 的哨兵向量
func NewSentinelVec(n int) *mat.VecDense {
	v := mat.NewVecDense(n, nil)
	Fill(v, Sentinel)
	return v
}

// IsSentinel 向量是否仍处于哨兵状态
func IsSentinel(v *mat.VecDense) bool {
	for i := 0; i < v.Len(); i++ {
		if v.AtVec(i) != Sentinel {
			return false
		}
	}
	return v.Len() > 0
}

// Concat 按给定次序拼接向量
func Concat(vs ...*mat.VecDense) *mat.VecDense {
	n := 0
	for _, v := range vs {
		n += v.Len()
	}
	out := mat.NewVecDense(n, nil)
	off := 0
	for _, v := range vs {
		for i := 0; i < v.Len(); i++ {
			out.SetVec(off+i, v.AtVec(i))
		}
		off += v.Len()
	}
	return out
}

// AppendCol 在矩阵右侧追加一列并返回新矩阵
// m 为 nil 时创建单列矩阵.列长度与已有行数不一致会触发恐慌.
func AppendCol(m *mat.Dense, col *mat.VecDense) *mat.Dense {
	if m == nil {
		out := mat.NewDense(col.Len(), 1, nil)
		out.SetCol(0, rawCopy(col))
		return out
	}
	r, c := m.Dims()
	if col.Len() != r {
		panic("dimension mismatch")
	}
	out := mat.NewDense(r, c+1, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			out.Set(i, j, m.At(i, j))
		}
	}
	out.SetCol(c, rawCopy(col))
	return out
}

// ShiftSetFirst 历史列整体右移一列,首列写入 v
// 最后一列被丢弃,矩阵宽度保持不变.
func ShiftSetFirst(m *mat.Dense, v *mat.VecDense) {
	r, c := m.Dims()
	if v.Len() != r {
		panic("dimension mismatch")
	}
	for j := c - 1; j > 0; j-- {
		for i := 0; i < r; i++ {
			m.Set(i, j, m.At(i, j-1))
		}
	}
	m.SetCol(0, rawCopy(v))
}

// EqualsEps 按给定容差比较两个浮点数
func EqualsEps(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// EpsFromDigits 由有效位数得到比较容差
func EpsFromDigits(digits int) float64 {
	return math.Pow10(-digits)
}

// Norm2 向量二范数
func Norm2(v *mat.VecDense) float64 {
	return mat.Norm(v, 2)
}

// rawCopy 复制向量内容为紧凑切片
func rawCopy(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

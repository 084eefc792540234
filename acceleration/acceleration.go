// Package acceleration 实现定点迭代的收敛加速。
// 加速器以能力集合接口建模,被耦合方案持有,
// 每次调用只借用数据表,不反向引用方案状态。
package acceleration

import (
	"gonum.org/v1/gonum/mat"

	"coupling/types"
)

// Acceleration 加速器能力集合
// @ 第二参与者在每次未收敛迭代后对自身发送数据执行加速,
// @ 收敛时通知加速器复位内部状态.
type Acceleration interface {
	Initialize(data *types.DataMap) error // 按数据表分配内部缓冲
	Accelerate(data *types.DataMap) error // 对当前迭代值执行加速
	Converged(data *types.DataMap)        // 时间步收敛,复位迭代状态
	DataIDs() []types.DataID              // 加速作用的数据标识
	// DesignSpecification 按数据拆分设计目标向量,供收敛测量扣除
	DesignSpecification(data *types.DataMap) (map[types.DataID]*mat.VecDense, error)
}

// CoarseSteering 多层(粗/细模型)优化的可选能力
// @ 粗模型优化标记按值传入并返回更新后的值,
// @ 不持有方案状态的反向指针.普通加速器不实现此接口.
type CoarseSteering interface {
	SteerCoarse(active bool) bool
}

// Package watch 记录隐式迭代的收敛历史并渲染为图表。
// 第二参与者的耦合方案在每次收敛测量后回调记录器,
// 松弛因子由调用方经 RecordOmega 另行补记。
package watch

import (
	"encoding/json"
	"io"
	"log"
	"sort"

	"coupling/types"
)

// Iteration 单次迭代的记录
type Iteration struct {
	Timestep  int                      // 所属时间步
	Iteration int                      // 时间步内的迭代序号
	Converged bool                     // 本次测量的裁决
	Norms     map[types.DataID]float64 // 各数据的残差范数
	Omega     float64                  // 本次迭代的松弛因子,未上报为0
}

// Record 记录历史状态
type Record struct {
	Iterations []Iteration // 按时间顺序的迭代记录
}

// RecordIteration 记录一次收敛测量
func (list *Record) RecordIteration(timestep, iteration int, converged bool, normDiffs map[types.DataID]float64) {
	norms := make(map[types.DataID]float64, len(normDiffs))
	for id, n := range normDiffs {
		norms[id] = n
	}
	list.Iterations = append(list.Iterations, Iteration{
		Timestep:  timestep,
		Iteration: iteration,
		Converged: converged,
		Norms:     norms,
	})
}

// RecordOmega 把松弛因子补记到最近一次迭代
func (list *Record) RecordOmega(omega float64) {
	if n := len(list.Iterations); n > 0 {
		list.Iterations[n-1].Omega = omega
	}
}

// DataIDs 出现过的数据标识,升序
func (list *Record) DataIDs() []types.DataID {
	seen := make(map[types.DataID]struct{})
	for _, it := range list.Iterations {
		for id := range it.Norms {
			seen[id] = struct{}{}
		}
	}
	ids := make([]types.DataID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// IterationsPerTimestep 每个时间步用掉的迭代次数
func (list *Record) IterationsPerTimestep() (timesteps []int, counts []int) {
	perStep := make(map[int]int)
	for _, it := range list.Iterations {
		if it.Iteration > perStep[it.Timestep] {
			perStep[it.Timestep] = it.Iteration
		}
	}
	for ts := range perStep {
		timesteps = append(timesteps, ts)
	}
	sort.Ints(timesteps)
	for _, ts := range timesteps {
		counts = append(counts, perStep[ts])
	}
	return timesteps, counts
}

// Render 格式和输出内容
func (list *Record) Render(w io.Writer) error { return json.NewEncoder(w).Encode(list) }

func (list *Record) Error(err error) { log.Println(err) }

// Package mpicom 以MPI实现参与者内部的集合通信。
// 每个参与者是一个MPI通信子,0号秩为主秩。
package mpicom

import (
	"gonum.org/v1/gonum/mat"

	mpi "github.com/sbromberger/gompi"

	"coupling/com"
)

// 内部消息标签
const (
	tagBroadcast = 701 // 主秩广播
	tagGather    = 702 // 归约汇聚
)

// Comm 基于MPI通信子的 com.IntraComm 实现
type Comm struct {
	o *mpi.Communicator
}

var _ com.IntraComm = (*Comm)(nil)

// New 包装一个已建立的MPI通信子
// 调用方负责 mpi.Start / mpi.Stop 的生命周期.
func New(o *mpi.Communicator) *Comm {
	return &Comm{o: o}
}

func (c *Comm) Rank() int      { return c.o.Rank() }
func (c *Comm) Size() int      { return c.o.Size() }
func (c *Comm) IsLeader() bool { return c.o.Rank() == 0 }
func (c *Comm) IsSlave() bool  { return c.o.Rank() != 0 }

// BroadcastFloat64 以0号秩为根广播浮点值
func (c *Comm) BroadcastFloat64(x float64) (float64, error) {
	if c.IsLeader() {
		buf := []float64{x}
		for r := 1; r < c.o.Size(); r++ {
			c.o.SendFloat64s(buf, r, tagBroadcast)
		}
		return x, nil
	}
	recv, _ := c.o.RecvFloat64s(0, tagBroadcast)
	return recv[0], nil
}

// BroadcastBool 以0号秩为根广播布尔值
func (c *Comm) BroadcastBool(b bool) (bool, error) {
	x := 0.0
	if b {
		x = 1.0
	}
	out, err := c.BroadcastFloat64(x)
	return out != 0, err
}

// Dot 本地内积的全局归约
// 各秩把本地内积发往主秩,主秩求和后广播全局值.
func (c *Comm) Dot(a, b *mat.VecDense) (float64, error) {
	if a.Len() != b.Len() {
		panic("dimension mismatch")
	}
	local := 0.0
	if a.Len() > 0 {
		local = mat.Dot(a, b)
	}
	if c.IsLeader() {
		sum := local
		for r := 1; r < c.o.Size(); r++ {
			recv, _ := c.o.RecvFloat64s(r, tagGather)
			sum += recv[0]
		}
		return c.BroadcastFloat64(sum)
	}
	c.o.SendFloat64s([]float64{local}, 0, tagGather)
	return c.BroadcastFloat64(0)
}

// Barrier 集合栅栏
func (c *Comm) Barrier() error {
	c.o.Barrier()
	return nil
}

package com

import "gonum.org/v1/gonum/mat"

// groupHub 同组各秩共享的交换结构
type groupHub struct {
	size    int
	gather  chan float64    // 从秩向主秩汇聚
	scatter []chan float64  // 主秩向各从秩分发
	arrive  chan struct{}   // 栅栏到达
	release []chan struct{} // 栅栏放行
}

// LocalIntra 进程内多秩集合通信
// @ 以goroutine模拟参与者内的各秩,广播与归约通过共享通道完成,
// @ 供并行模式的测试使用.真实多进程运行见 com/mpicom.
type LocalIntra struct {
	rank int
	hub  *groupHub
}

// NewLocalGroup 创建大小为 size 的进程内秩组
// 返回的切片按秩序号排列,第0个为主秩.
func NewLocalGroup(size int) []*LocalIntra {
	hub := &groupHub{
		size:    size,
		gather:  make(chan float64, size),
		scatter: make([]chan float64, size),
		arrive:  make(chan struct{}, size),
		release: make([]chan struct{}, size),
	}
	ranks := make([]*LocalIntra, size)
	for r := 0; r < size; r++ {
		hub.scatter[r] = make(chan float64, 1)
		hub.release[r] = make(chan struct{}, 1)
		ranks[r] = &LocalIntra{rank: r, hub: hub}
	}
	return ranks
}

func (c *LocalIntra) Rank() int      { return c.rank }
func (c *LocalIntra) Size() int      { return c.hub.size }
func (c *LocalIntra) IsLeader() bool { return c.rank == 0 }
func (c *LocalIntra) IsSlave() bool  { return c.rank != 0 }

// BroadcastFloat64 以主秩为根广播浮点值
func (c *LocalIntra) BroadcastFloat64(x float64) (float64, error) {
	if c.IsLeader() {
		for r := 1; r < c.hub.size; r++ {
			c.hub.scatter[r] <- x
		}
		return x, nil
	}
	return <-c.hub.scatter[c.rank], nil
}

// BroadcastBool 以主秩为根广播布尔值
func (c *LocalIntra) BroadcastBool(b bool) (bool, error) {
	x := 0.0
	if b {
		x = 1.0
	}
	out, err := c.BroadcastFloat64(x)
	return out != 0, err
}

// Dot 本地内积的全局归约
// 各秩提交本地内积,主秩求和后把全局值广播回所有秩.
func (c *LocalIntra) Dot(a, b *mat.VecDense) (float64, error) {
	if a.Len() != b.Len() {
		panic("dimension mismatch")
	}
	local := 0.0
	if a.Len() > 0 {
		local = mat.Dot(a, b)
	}
	if c.IsLeader() {
		sum := local
		for r := 1; r < c.hub.size; r++ {
			sum += <-c.hub.gather
		}
		return c.BroadcastFloat64(sum)
	}
	c.hub.gather <- local
	return c.BroadcastFloat64(0)
}

// Barrier 集合栅栏,全部秩到达后同时放行
func (c *LocalIntra) Barrier() error {
	if c.IsLeader() {
		for r := 1; r < c.hub.size; r++ {
			<-c.hub.arrive
		}
		for r := 1; r < c.hub.size; r++ {
			c.hub.release[r] <- struct{}{}
		}
		return nil
	}
	c.hub.arrive <- struct{}{}
	<-c.hub.release[c.rank]
	return nil
}

package com

import "gonum.org/v1/gonum/mat"

// IntraComm 参与者内部各秩之间的集合通信
// @ 每个参与者是一组固定秩的进程,其中单个主秩拥有对外控制通道,
// @ 其余为从秩.广播以主秩为根同步进行:所有从秩在越过对应的
// @ 广播调用前都会观察到主秩的值.Dot 是跨全部秩的全局归约.
type IntraComm interface {
	Rank() int                                   // 本秩序号,主秩为0
	Size() int                                   // 参与者内秩数量
	IsLeader() bool                              // 是否为主秩
	IsSlave() bool                               // 是否为从秩
	BroadcastBool(b bool) (bool, error)          // 主秩广播布尔值,返回各秩观察到的值
	BroadcastFloat64(x float64) (float64, error) // 主秩广播浮点值
	Dot(a, b *mat.VecDense) (float64, error)     // 本地内积的全局归约
	Barrier() error                              // 集合栅栏
}

// SingleRank 单进程参与者的集合通信实现
// 广播与栅栏退化为恒等操作,内积即本地内积.
type SingleRank struct{}

// NewSingleRank 创建单秩集合通信
func NewSingleRank() *SingleRank {
	return &SingleRank{}
}

func (SingleRank) Rank() int      { return 0 }
func (SingleRank) Size() int      { return 1 }
func (SingleRank) IsLeader() bool { return true }
func (SingleRank) IsSlave() bool  { return false }

// BroadcastBool 单秩广播为恒等
func (SingleRank) BroadcastBool(b bool) (bool, error) { return b, nil }

// BroadcastFloat64 单秩广播为恒等
func (SingleRank) BroadcastFloat64(x float64) (float64, error) { return x, nil }

// Dot 本地内积
func (SingleRank) Dot(a, b *mat.VecDense) (float64, error) {
	if a.Len() != b.Len() {
		panic("dimension mismatch")
	}
	return mat.Dot(a, b), nil
}

// Barrier 单秩栅栏为空操作
func (SingleRank) Barrier() error { return nil }

package cplscheme

import (
	"coupling/types"
)

// Mode 耦合模式
type Mode int

// 耦合模式定义
const (
	ModeUndefined Mode = iota // 未定义
	ModeExplicit              // 显式:每时间步单次交换
	ModeImplicit              // 隐式:时间步内迭代至定点收敛
)

// DtMethod 时间步长的协商方式
type DtMethod int

// 步长协商方式定义
const (
	FixedDt                DtMethod = iota // 双方使用配置的固定步长
	FirstParticipantSetsDt                 // 第一参与者决定步长,对方采纳接收值
)

// Config 耦合方案配置
// @ 由调用方构造的纯值对象,XML等配置解析属于外部协作者.
type Config struct {
	MaxTime            float64  // 最大物理时间,负值表示不限
	MaxTimesteps       int      // 最大时间步数,负值表示不限
	TimestepLength     float64  // 时间步长,UndefinedTimestepLength 表示由第一参与者决定
	ValidDigits        int      // 时间比较有效位数
	FirstParticipant   string   // 第一参与者名称(每次迭代先发送后接收)
	SecondParticipant  string   // 第二参与者名称(持有收敛测量与加速)
	LocalParticipant   string   // 本地参与者名称
	DtMethod           DtMethod // 步长协商方式
	MaxIterations      int      // 隐式迭代上限,达到后强制收敛
	ExtrapolationOrder int      // 时间外推阶数,0为关闭
}

// Scheme 求解器侧的耦合方案接口
// @ 生命周期为 Initialize → (InitializeData) → Advance* → Finalize.
// @ 求解器在每次 Advance 前完成方案提出的全部动作.
type Scheme interface {
	Initialize(startTime float64, startTimestep int) error // 建立方案状态,协商初始数据
	InitializeData() error                                 // 交换初始数据
	Advance() error                                        // 执行一次迭代尝试
	Finalize() error                                       // 结束耦合

	AddComputedTime(dt float64) error // 求解器上报已计算的时间
	GetTime() float64                 // 当前物理时间
	GetTimesteps() int                // 已完成时间步数
	GetThisTimestepRemainder() float64
	GetMaxTimestepLength() float64 // 求解器下一步允许的最大步长
	IsCouplingOngoing() bool       // 耦合是否继续
	IsCouplingTimestepComplete() bool

	IsActionRequired(a types.Action) bool     // 查询动作是否待完成
	MarkActionFulfilled(a types.Action) error // 求解器完成动作后清除

	SendData() *types.DataMap    // 发送数据表
	ReceiveData() *types.DataMap // 接收数据表
}

// Watcher 迭代历史观察者
// @ 第二参与者在每次收敛测量后回调,供记录与绘图使用.
type Watcher interface {
	RecordIteration(timestep, iteration int, converged bool, normDiffs map[types.DataID]float64)
}

package m2n

import (
	"sync"

	"coupling/com"
	"coupling/types"
)

// DistributedCommunication 每网格的工作秩多对多数据通道
// @ 把按本地网格索引排列的向量子集送达对端匹配的秩,
// @ 保持每秩方向上的先进先出次序.建立与顶点分发由外部协作者负责.
type DistributedCommunication interface {
	Accept(acceptorName, requesterName string) error  // 等待对端各秩建立连接
	Request(acceptorName, requesterName string) error // 主动建立连接
	IsConnected() bool                                // 连接状态
	Send(vals []float64, valueDim int) error          // 发送本地子集
	Receive(vals []float64, valueDim int) error       // 接收本地子集
	Close() error                                     // 关闭连接
}

// DistComFactory 按网格构造分布式通道
type DistComFactory interface {
	New(mesh *types.Mesh) DistributedCommunication
}

// localDistCom 进程内回环的分布式通道实现
type localDistCom struct {
	ch *com.LocalChannel
}

func (d *localDistCom) Accept(acceptorName, requesterName string) error {
	return d.ch.Accept(acceptorName, requesterName)
}

func (d *localDistCom) Request(acceptorName, requesterName string) error {
	return d.ch.Request(acceptorName, requesterName)
}

func (d *localDistCom) IsConnected() bool { return d.ch.IsConnected() }

func (d *localDistCom) Send(vals []float64, valueDim int) error {
	return d.ch.SendFloat64s(vals)
}

func (d *localDistCom) Receive(vals []float64, valueDim int) error {
	return d.ch.ReceiveFloat64s(vals)
}

func (d *localDistCom) Close() error { return d.ch.Close() }

// endpointKey 注册表键:网格加本地秩
type endpointKey struct {
	mesh types.MeshID
	rank int
}

// LocalRegistry 进程内分布式通道注册表
// @ 为同一网格同一秩的两侧惰性创建互联端点,
// @ 供单进程双参与者的测试与演示使用.
type LocalRegistry struct {
	mu     sync.Mutex
	buffer int
	pairs  map[endpointKey][2]*com.LocalChannel
}

// NewLocalRegistry 创建注册表
func NewLocalRegistry(buffer int) *LocalRegistry {
	return &LocalRegistry{
		buffer: buffer,
		pairs:  make(map[endpointKey][2]*com.LocalChannel),
	}
}

// endpoint 取出或创建键对应的端点对,返回指定侧
func (r *LocalRegistry) endpoint(key endpointKey, side int) *com.LocalChannel {
	r.mu.Lock()
	defer r.mu.Unlock()
	pair, ok := r.pairs[key]
	if !ok {
		a, b := com.Pair(r.buffer)
		pair = [2]*com.LocalChannel{a, b}
		r.pairs[key] = pair
	}
	return pair[side]
}

// localFactory 绑定到注册表一侧一秩的工厂
type localFactory struct {
	reg  *LocalRegistry
	side int
	rank int
}

// Factory 得到指定侧(0或1)指定秩的通道工厂
func (r *LocalRegistry) Factory(side, rank int) DistComFactory {
	return &localFactory{reg: r, side: side, rank: rank}
}

func (f *localFactory) New(mesh *types.Mesh) DistributedCommunication {
	return &localDistCom{ch: f.reg.endpoint(endpointKey{mesh: mesh.ID, rank: f.rank}, f.side)}
}

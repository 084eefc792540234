// Package m2n 实现两参与者之间的双层分布式消息复用。
// 控制信号只走主秩间的点对点通道,场数据在并行模式下
// 走每网格的工作秩多对多通道,标量接收后向从秩集合广播。
package m2n

import (
	"fmt"

	"coupling/com"
	"coupling/types"
)

// M2N 双层消息复用器
// @ 同步模式在并行模式的每次批量传输前由主秩插入三步布尔握手,
// @ 把场数据传输与控制通道串行化,用于确定性的事件观测.
// @ 同步标记在构造时固定,不使用可变全局状态.
type M2N struct {
	leaderCom com.Channel                               // 主秩间控制通道,从秩为nil
	intra     com.IntraComm                             // 参与者内部集合通信
	factory   DistComFactory                            // 分布式通道工厂
	dist      map[types.MeshID]DistributedCommunication // 按网格的分布式通道
	syncMode  bool                                      // 同步模式标记

	leaderConnected bool // 主秩通道连接状态,广播后所有秩一致
	slavesConnected bool // 全部分布式通道连接状态
}

// New 创建复用器
// 主秩传入控制通道,从秩可传nil;syncMode 在此固定.
func New(leaderCom com.Channel, intra com.IntraComm, factory DistComFactory, syncMode bool) *M2N {
	return &M2N{
		leaderCom: leaderCom,
		intra:     intra,
		factory:   factory,
		dist:      make(map[types.MeshID]DistributedCommunication),
		syncMode:  syncMode,
	}
}

// parallel 是否处于并行模式(参与者带有从秩)
func (m *M2N) parallel() bool {
	return m.intra.Size() > 1
}

// IsConnected 主秩通道是否连接
func (m *M2N) IsConnected() bool {
	return m.leaderConnected
}

// AcceptLeaderConnection 等待对方参与者的主秩连接
// 连接结果向本参与者全部从秩广播.
func (m *M2N) AcceptLeaderConnection(acceptorName, requesterName string) error {
	if !m.intra.IsSlave() {
		if err := m.leaderCom.Accept(acceptorName, requesterName); err != nil {
			return fmt.Errorf("主秩通道接受连接失败: %w", err)
		}
		m.leaderConnected = m.leaderCom.IsConnected()
	}
	b, err := m.intra.BroadcastBool(m.leaderConnected)
	if err != nil {
		return err
	}
	m.leaderConnected = b
	return nil
}

// RequestLeaderConnection 向对方参与者的主秩发起连接
func (m *M2N) RequestLeaderConnection(acceptorName, requesterName string) error {
	if !m.intra.IsSlave() {
		if err := m.leaderCom.Request(acceptorName, requesterName); err != nil {
			return fmt.Errorf("主秩通道请求连接失败: %w", err)
		}
		m.leaderConnected = m.leaderCom.IsConnected()
	}
	b, err := m.intra.BroadcastBool(m.leaderConnected)
	if err != nil {
		return err
	}
	m.leaderConnected = b
	return nil
}

// CreateDistributedCommunication 为网格构造分布式通道
func (m *M2N) CreateDistributedCommunication(mesh *types.Mesh) {
	m.dist[mesh.ID] = m.factory.New(mesh)
}

// AcceptSlavesConnection 建立全部分布式通道(接受侧)
// 连接标记只在全部通道建立成功时置位.
func (m *M2N) AcceptSlavesConnection(acceptorName, requesterName string) error {
	all := true
	for id, dc := range m.dist {
		if err := dc.Accept(acceptorName, requesterName); err != nil {
			return fmt.Errorf("网格 %d 分布式通道接受连接失败: %w", id, err)
		}
		all = all && dc.IsConnected()
	}
	m.slavesConnected = all
	if !all {
		return fmt.Errorf("存在未连接的分布式通道")
	}
	return nil
}

// RequestSlavesConnection 建立全部分布式通道(请求侧)
func (m *M2N) RequestSlavesConnection(acceptorName, requesterName string) error {
	all := true
	for id, dc := range m.dist {
		if err := dc.Request(acceptorName, requesterName); err != nil {
			return fmt.Errorf("网格 %d 分布式通道请求连接失败: %w", id, err)
		}
		all = all && dc.IsConnected()
	}
	m.slavesConnected = all
	if !all {
		return fmt.Errorf("存在未连接的分布式通道")
	}
	return nil
}

// Send 发送场数据
// 并行模式走网格通道,发送前主秩按同步模式执行握手;
// 耦合模式直接走主秩通道.
func (m *M2N) Send(vals []float64, meshID types.MeshID, valueDim int) error {
	if m.parallel() {
		dc, ok := m.dist[meshID]
		if !ok {
			return fmt.Errorf("网格 %d 没有分布式通道", meshID)
		}
		if !m.slavesConnected {
			return fmt.Errorf("分布式通道未连接")
		}
		if m.syncMode && !m.intra.IsSlave() {
			if err := m.leaderCom.SendBool(true); err != nil {
				return err
			}
			if _, err := m.leaderCom.ReceiveBool(); err != nil {
				return err
			}
			if err := m.leaderCom.SendBool(true); err != nil {
				return err
			}
		}
		return dc.Send(vals, valueDim)
	}
	if !m.leaderConnected {
		return fmt.Errorf("主秩通道未连接")
	}
	return m.leaderCom.SendFloat64s(vals)
}

// Receive 接收场数据,与 Send 的路由和握手镜像对称
func (m *M2N) Receive(vals []float64, meshID types.MeshID, valueDim int) error {
	if m.parallel() {
		dc, ok := m.dist[meshID]
		if !ok {
			return fmt.Errorf("网格 %d 没有分布式通道", meshID)
		}
		if !m.slavesConnected {
			return fmt.Errorf("分布式通道未连接")
		}
		if m.syncMode && !m.intra.IsSlave() {
			if _, err := m.leaderCom.ReceiveBool(); err != nil {
				return err
			}
			if err := m.leaderCom.SendBool(true); err != nil {
				return err
			}
			if _, err := m.leaderCom.ReceiveBool(); err != nil {
				return err
			}
		}
		return dc.Receive(vals, valueDim)
	}
	if !m.leaderConnected {
		return fmt.Errorf("主秩通道未连接")
	}
	return m.leaderCom.ReceiveFloat64s(vals)
}

// SendBool 主秩发送布尔控制信号,从秩为空操作
func (m *M2N) SendBool(b bool) error {
	if m.intra.IsSlave() {
		return nil
	}
	return m.leaderCom.SendBool(b)
}

// ReceiveBool 主秩接收布尔控制信号并向从秩广播
// 返回后所有秩观察到同一控制决定.
func (m *M2N) ReceiveBool() (bool, error) {
	var b bool
	var err error
	if !m.intra.IsSlave() {
		b, err = m.leaderCom.ReceiveBool()
		if err != nil {
			return false, err
		}
	}
	return m.intra.BroadcastBool(b)
}

// SendFloat64 主秩发送浮点控制信号,从秩为空操作
func (m *M2N) SendFloat64(x float64) error {
	if m.intra.IsSlave() {
		return nil
	}
	return m.leaderCom.SendFloat64(x)
}

// ReceiveFloat64 主秩接收浮点控制信号并向从秩广播
func (m *M2N) ReceiveFloat64() (float64, error) {
	var x float64
	var err error
	if !m.intra.IsSlave() {
		x, err = m.leaderCom.ReceiveFloat64()
		if err != nil {
			return 0, err
		}
	}
	return m.intra.BroadcastFloat64(x)
}

// CloseConnection 关闭全部通道,可重复调用
func (m *M2N) CloseConnection() error {
	if !m.intra.IsSlave() && m.leaderCom != nil && m.leaderCom.IsConnected() {
		if err := m.leaderCom.Close(); err != nil {
			return err
		}
		m.leaderConnected = false
	}
	b, err := m.intra.BroadcastBool(m.leaderConnected)
	if err != nil {
		return err
	}
	m.leaderConnected = b
	for _, dc := range m.dist {
		if err := dc.Close(); err != nil {
			return err
		}
	}
	m.slavesConnected = false
	return nil
}

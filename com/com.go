package com

// Channel 两个参与者主秩之间的有序可靠点对点通道
// @ 底层传输(套接字或MPI端口)由外部协作者提供,
// @ 耦合核心只假定按方向先进先出的流语义.
// @ 所有操作均为阻塞的两端操作,传输错误对耦合运行是致命的.
type Channel interface {
	Accept(acceptorName, requesterName string) error  // 等待对方建立连接
	Request(acceptorName, requesterName string) error // 主动建立连接
	IsConnected() bool                                // 连接状态
	SendFloat64s(v []float64) error                   // 发送浮点数组
	ReceiveFloat64s(v []float64) error                // 接收浮点数组,长度须与发送一致
	SendFloat64(x float64) error                      // 发送浮点标量
	ReceiveFloat64() (float64, error)                 // 接收浮点标量
	SendBool(b bool) error                            // 发送布尔标量
	ReceiveBool() (bool, error)                       // 接收布尔标量
	SendInt(x int) error                              // 发送整型标量
	ReceiveInt() (int, error)                         // 接收整型标量
	Close() error                                     // 关闭连接,可重复调用
}

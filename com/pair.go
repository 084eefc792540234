package com

import (
	"fmt"
	"sync"
)

// 消息类型标记
const (
	kindFloat64s byte = iota // 浮点数组
	kindFloat64              // 浮点标量
	kindBool                 // 布尔标量
	kindInt                  // 整型标量
)

// message 通道内部消息
type message struct {
	kind byte
	vec  []float64
	f    float64
	b    bool
	i    int
}

// LocalChannel 进程内回环通道
// @ 用带缓冲的Go通道连接一对端点,满足 Channel 的流语义,
// @ 供测试与单进程双参与者演示使用.
type LocalChannel struct {
	out       chan<- message
	in        <-chan message
	connected bool
	closeOnce sync.Once
	outRaw    chan message
}

// Pair 创建互联的一对回环通道
func Pair(buffer int) (*LocalChannel, *LocalChannel) {
	ab := make(chan message, buffer)
	ba := make(chan message, buffer)
	a := &LocalChannel{out: ab, in: ba, outRaw: ab}
	b := &LocalChannel{out: ba, in: ab, outRaw: ba}
	return a, b
}

// Accept 等待连接,回环通道预先互联,仅置位连接状态
func (c *LocalChannel) Accept(acceptorName, requesterName string) error {
	c.connected = true
	return nil
}

// Request 建立连接,回环通道预先互联,仅置位连接状态
func (c *LocalChannel) Request(acceptorName, requesterName string) error {
	c.connected = true
	return nil
}

// IsConnected 连接状态
func (c *LocalChannel) IsConnected() bool {
	return c.connected
}

// SendFloat64s 发送浮点数组,内容复制后入队
func (c *LocalChannel) SendFloat64s(v []float64) error {
	out := make([]float64, len(v))
	copy(out, v)
	return c.push(message{kind: kindFloat64s, vec: out})
}

// ReceiveFloat64s 接收浮点数组到给定切片
func (c *LocalChannel) ReceiveFloat64s(v []float64) error {
	msg, err := c.pop(kindFloat64s)
	if err != nil {
		return err
	}
	if len(msg.vec) != len(v) {
		return fmt.Errorf("接收数组长度不匹配: 期望 %d, 收到 %d", len(v), len(msg.vec))
	}
	copy(v, msg.vec)
	return nil
}

// SendFloat64 发送浮点标量
func (c *LocalChannel) SendFloat64(x float64) error {
	return c.push(message{kind: kindFloat64, f: x})
}

// ReceiveFloat64 接收浮点标量
func (c *LocalChannel) ReceiveFloat64() (float64, error) {
	msg, err := c.pop(kindFloat64)
	return msg.f, err
}

// SendBool 发送布尔标量
func (c *LocalChannel) SendBool(b bool) error {
	return c.push(message{kind: kindBool, b: b})
}

// ReceiveBool 接收布尔标量
func (c *LocalChannel) ReceiveBool() (bool, error) {
	msg, err := c.pop(kindBool)
	return msg.b, err
}

// SendInt 发送整型标量
func (c *LocalChannel) SendInt(x int) error {
	return c.push(message{kind: kindInt, i: x})
}

// ReceiveInt 接收整型标量
func (c *LocalChannel) ReceiveInt() (int, error) {
	msg, err := c.pop(kindInt)
	return msg.i, err
}

// Close 关闭本端发送方向,可重复调用
func (c *LocalChannel) Close() error {
	c.closeOnce.Do(func() {
		c.connected = false
		close(c.outRaw)
	})
	return nil
}

// push 入队,捕获对已关闭通道的发送
func (c *LocalChannel) push(msg message) (err error) {
	defer func() {
		if recover() != nil {
			err = fmt.Errorf("连接已关闭")
		}
	}()
	c.out <- msg
	return nil
}

// pop 出队并校验消息类型
func (c *LocalChannel) pop(kind byte) (message, error) {
	msg, ok := <-c.in
	if !ok {
		return message{}, fmt.Errorf("连接已关闭")
	}
	if msg.kind != kind {
		return message{}, fmt.Errorf("通道消息类型不匹配: 期望 %d, 收到 %d", kind, msg.kind)
	}
	return msg, nil
}

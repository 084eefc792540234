package com

import (
	"sync"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestPairRoundTrip 测试回环通道的各类消息收发,
// 同方向消息保持先进先出。
func TestPairRoundTrip(t *testing.T) {
	a, b := Pair(8)
	if err := a.Request("A", "B"); err != nil {
		t.Fatal(err)
	}
	if err := b.Accept("A", "B"); err != nil {
		t.Fatal(err)
	}
	if !a.IsConnected() || !b.IsConnected() {
		t.Fatal("Expected both endpoints connected")
	}

	if err := a.SendFloat64(0.25); err != nil {
		t.Fatal(err)
	}
	if err := a.SendBool(true); err != nil {
		t.Fatal(err)
	}
	if err := a.SendFloat64s([]float64{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	x, err := b.ReceiveFloat64()
	if err != nil || x != 0.25 {
		t.Errorf("Expected 0.25, got %f (err %v)", x, err)
	}
	flag, err := b.ReceiveBool()
	if err != nil || !flag {
		t.Errorf("Expected true, got %v (err %v)", flag, err)
	}
	vec := make([]float64, 3)
	if err := b.ReceiveFloat64s(vec); err != nil {
		t.Fatal(err)
	}
	if vec[0] != 1 || vec[2] != 3 {
		t.Errorf("Expected [1 2 3], got %v", vec)
	}
}

// TestPairKindMismatch 测试类型不匹配的接收返回错误而不是静默转换。
func TestPairKindMismatch(t *testing.T) {
	a, b := Pair(1)
	if err := a.SendBool(false); err != nil {
		t.Fatal(err)
	}
	if _, err := b.ReceiveFloat64(); err == nil {
		t.Errorf("Expected kind mismatch error, got nil")
	}
}

// TestPairClose 测试关闭后的收发均报错,重复关闭无害。
func TestPairClose(t *testing.T) {
	a, b := Pair(1)
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.ReceiveBool(); err == nil {
		t.Errorf("Expected receive on closed channel to fail")
	}
	if err := a.SendBool(true); err == nil {
		t.Errorf("Expected send on closed channel to fail")
	}
}

// TestLocalGroupDot 测试进程内秩组的全局内积归约:
// 向量被各秩分片持有,归约结果等于整体内积,且全部秩观察到同一值。
func TestLocalGroupDot(t *testing.T) {
	ranks := NewLocalGroup(3)
	// 整体向量 a=[1 2 3], b=[4 5 6],按秩切片
	slices := [][2][]float64{
		{{1}, {4}},
		{{2}, {5}},
		{{3}, {6}},
	}
	want := 1.0*4 + 2*5 + 3*6

	var wg sync.WaitGroup
	results := make([]float64, 3)
	for r, c := range ranks {
		wg.Add(1)
		go func(r int, c *LocalIntra) {
			defer wg.Done()
			a := mat.NewVecDense(1, slices[r][0])
			b := mat.NewVecDense(1, slices[r][1])
			got, err := c.Dot(a, b)
			if err != nil {
				t.Error(err)
				return
			}
			results[r] = got
		}(r, c)
	}
	wg.Wait()
	for r, got := range results {
		if got != want {
			t.Errorf("Rank %d: expected %f, got %f", r, want, got)
		}
	}
}

// TestLocalGroupBroadcast 测试主秩广播后所有秩观察到同一布尔值。
func TestLocalGroupBroadcast(t *testing.T) {
	ranks := NewLocalGroup(2)
	var wg sync.WaitGroup
	results := make([]bool, 2)
	for r, c := range ranks {
		wg.Add(1)
		go func(r int, c *LocalIntra) {
			defer wg.Done()
			// 从秩传入的本地值会被主秩的值覆盖
			in := r != 0
			out, err := c.BroadcastBool(!in)
			if err != nil {
				t.Error(err)
				return
			}
			results[r] = out
		}(r, c)
	}
	wg.Wait()
	if !results[0] || !results[1] {
		t.Errorf("Expected all ranks to observe leader value true, got %v", results)
	}
}

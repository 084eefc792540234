package types

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// CouplingData 参与耦合交换的一组场数据
// @ Values 为当前迭代值,长度等于本地顶点数乘以值维度.
// @ OldValues 为列序历史矩阵:第0列是上一迭代值,
// @ 之后的列保存更早时间步的值供外推使用.
type CouplingData struct {
	ID         DataID        // 数据标识
	Mesh       *Mesh         // 所属网格
	Dim        int           // 值维度
	Values     *mat.VecDense // 当前迭代值
	OldValues  *mat.Dense    // 历史列矩阵,第0列为上一迭代值
	Initialize bool          // 本参与者是否提供非零初值
}

// NewCouplingData 创建耦合数据记录
// 值向量按 顶点数量*值维度 分配并清零,历史矩阵为空.
func NewCouplingData(id DataID, mesh *Mesh, dim int, initialize bool) *CouplingData {
	return &CouplingData{
		ID:         id,
		Mesh:       mesh,
		Dim:        dim,
		Values:     mat.NewVecDense(mesh.Vertices*dim, nil),
		Initialize: initialize,
	}
}

// Size 值向量长度
func (d *CouplingData) Size() int {
	return d.Values.Len()
}

// Cols 历史矩阵列数
func (d *CouplingData) Cols() int {
	if d.OldValues == nil {
		return 0
	}
	_, c := d.OldValues.Dims()
	return c
}

// OldValuesCol 历史矩阵第 j 列视图
func (d *CouplingData) OldValuesCol(j int) *mat.VecDense {
	return d.OldValues.ColView(j).(*mat.VecDense)
}

// DataMap 按数据标识有序的耦合数据表
// @ 遍历按标识升序,与插入先后无关:发送与接收两侧因此观察到一致的次序.
type DataMap struct {
	ids  []DataID
	data map[DataID]*CouplingData
}

// NewDataMap 创建空数据表
func NewDataMap() *DataMap {
	return &DataMap{data: make(map[DataID]*CouplingData)}
}

// Insert 插入数据,按标识排序保持稳定遍历次序
func (m *DataMap) Insert(d *CouplingData) {
	if _, ok := m.data[d.ID]; !ok {
		m.ids = append(m.ids, d.ID)
		sort.Ints(m.ids)
	}
	m.data[d.ID] = d
}

// Get 按标识取数据,未注册返回 nil
func (m *DataMap) Get(id DataID) *CouplingData {
	return m.data[id]
}

// Contains 查询标识是否注册
func (m *DataMap) Contains(id DataID) bool {
	_, ok := m.data[id]
	return ok
}

// IDs 有序标识列表
func (m *DataMap) IDs() []DataID {
	return m.ids
}

// Len 数据数量
func (m *DataMap) Len() int {
	return len(m.ids)
}

// Each 按序遍历
func (m *DataMap) Each(f func(d *CouplingData)) {
	for _, id := range m.ids {
		f(m.data[id])
	}
}

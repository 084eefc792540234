package types

// MeshID 网格标识
type MeshID = int

// DataID 耦合数据标识
type DataID = int

// Mesh 交界面网格的最小描述
// @ 网格的存储,顶点分布与剖分由外部协作者负责,
// @ 耦合核心只消费标识与本地规模信息.
type Mesh struct {
	ID       MeshID // 网格标识
	Name     string // 网格名称
	Vertices int    // 本秩拥有的顶点数量
	Dim      int    // 空间维度
}

// NewMesh 创建网格描述
func NewMesh(id MeshID, name string, vertices, dim int) *Mesh {
	return &Mesh{ID: id, Name: name, Vertices: vertices, Dim: dim}
}

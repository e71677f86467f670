package model

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/recipekit/core"
)

// DenseLayer 是全连接层 out = act(W·x + b)。
type DenseLayer struct {
	W          *mat.Dense // out x in
	B          []float64
	Activation string // relu / tanh / sigmoid / softmax / linear
}

// DNNModel 是前馈全连接网络形式的簇模型，最后一层通常为 softmax，
// 输出即每个簇的概率。
//
// 工程特征：
//   - 实时性：好（本地推理，单次几个小矩阵乘）
//   - 可解释性：弱
//
// 使用场景：
//   - 训练侧用神经网络拟合簇标签，推理时取 arg-max
type DNNModel struct {
	Layers []DenseLayer
}

// LayerArtifact 是单层的导出格式。
// Weights 形如 [out][in]；Kernel 形如 [in][out]（Keras Dense 的布局），二者取其一。
type LayerArtifact struct {
	Weights    [][]float64 `json:"weights"`
	Kernel     [][]float64 `json:"kernel"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

// NewDNNModel 从导出的层构建网络，并校验相邻层维度。
func NewDNNModel(layers []LayerArtifact) (*DNNModel, error) {
	if len(layers) == 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeModelContractViolation, "dnn: no layers")
	}
	m := &DNNModel{Layers: make([]DenseLayer, 0, len(layers))}
	prevOut := 0
	for i, la := range layers {
		w, err := layerWeights(la)
		if err != nil {
			return nil, fmt.Errorf("dnn: layer %d: %w", i, err)
		}
		out, in := w.Dims()
		if prevOut > 0 && in != prevOut {
			return nil, core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
				"dnn: layer %d expects %d inputs, previous layer outputs %d", i, in, prevOut)
		}
		bias := la.Bias
		if len(bias) == 0 {
			bias = make([]float64, out)
		}
		if len(bias) != out {
			return nil, core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
				"dnn: layer %d bias length %d, expected %d", i, len(bias), out)
		}
		switch la.Activation {
		case "", "linear", "relu", "tanh", "sigmoid", "softmax":
		default:
			return nil, fmt.Errorf("dnn: layer %d: unsupported activation %q", i, la.Activation)
		}
		m.Layers = append(m.Layers, DenseLayer{W: w, B: bias, Activation: la.Activation})
		prevOut = out
	}
	return m, nil
}

func layerWeights(la LayerArtifact) (*mat.Dense, error) {
	rows := la.Weights
	transpose := false
	if len(rows) == 0 {
		rows = la.Kernel
		transpose = true
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("empty weights")
	}
	r, c := len(rows), len(rows[0])
	flat := make([]float64, 0, r*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("ragged weights at row %d", i)
		}
		flat = append(flat, row...)
	}
	w := mat.NewDense(r, c, flat)
	if transpose {
		return mat.DenseCopyOf(w.T()), nil
	}
	return w, nil
}

func (m *DNNModel) Name() string {
	return "dnn"
}

func (m *DNNModel) InputDim() int {
	_, in := m.Layers[0].W.Dims()
	return in
}

func (m *DNNModel) NumClusters() int {
	out, _ := m.Layers[len(m.Layers)-1].W.Dims()
	return out
}

// Scores 前向传播，返回最后一层输出。
func (m *DNNModel) Scores(_ context.Context, x []float64) ([]float64, error) {
	if len(x) != m.InputDim() {
		return nil, core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
			"dnn: input dimension %d, expected %d", len(x), m.InputDim())
	}
	cur := mat.NewVecDense(len(x), append([]float64(nil), x...))
	for _, layer := range m.Layers {
		var next mat.VecDense
		next.MulVec(layer.W, cur)
		data := next.RawVector().Data
		floats.Add(data, layer.B)
		activate(layer.Activation, data)
		cur = &next
	}
	return cur.RawVector().Data, nil
}

func activate(name string, v []float64) {
	switch name {
	case "relu":
		for i, x := range v {
			v[i] = relu(x)
		}
	case "tanh":
		for i, x := range v {
			v[i] = math.Tanh(x)
		}
	case "sigmoid":
		for i, x := range v {
			v[i] = sigmoid(x)
		}
	case "softmax":
		softmax(v)
	}
}

// relu ReLU 激活函数。
func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// sigmoid Sigmoid 激活函数。
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// softmax 原地计算，先减去最大值避免溢出。
func softmax(v []float64) {
	if len(v) == 0 {
		return
	}
	maxV := floats.Max(v)
	var sum float64
	for i, x := range v {
		v[i] = math.Exp(x - maxV)
		sum += v[i]
	}
	floats.Scale(1/sum, v)
}

var _ ClusterModel = (*DNNModel)(nil)

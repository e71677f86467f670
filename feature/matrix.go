package feature

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Matrix 是整个目录的投影结果，行号与目录下标一致。
// 构建后只读，可在请求间无锁共享。
type Matrix struct {
	rows  [][]float64
	norms []float64
	dim   int
}

// NewMatrix 由现成的行构建（每行长度须一致）。
func NewMatrix(rows [][]float64) *Matrix {
	m := &Matrix{rows: rows, norms: make([]float64, len(rows))}
	for i, r := range rows {
		m.norms[i] = floats.Norm(r, 2)
	}
	if len(rows) > 0 {
		m.dim = len(rows[0])
	}
	return m
}

func (m *Matrix) Len() int { return len(m.rows) }
func (m *Matrix) Dim() int { return m.dim }

// Row 返回第 i 行，调用方不得修改。
func (m *Matrix) Row(i int) []float64 { return m.rows[i] }

// Rows 返回全部行，调用方不得修改。
func (m *Matrix) Rows() [][]float64 { return m.rows }

// Cosine 计算第 i、j 行的余弦相似度；任一行为零向量时为 0。
func (m *Matrix) Cosine(i, j int) float64 {
	if m.norms[i] == 0 || m.norms[j] == 0 {
		return 0
	}
	return floats.Dot(m.rows[i], m.rows[j]) / (m.norms[i] * m.norms[j])
}

// ProjectCatalog 并发投影整个目录，workers <= 0 时使用 GOMAXPROCS。
func ProjectCatalog(ctx context.Context, p *Projector, texts []string, workers int) (*Matrix, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	rows := make([][]float64, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, text := range texts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := p.Project(text)
			if err != nil {
				return err
			}
			rows[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewMatrix(rows), nil
}

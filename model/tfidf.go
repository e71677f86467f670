package model

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/rushteam/recipekit/core"
)

// 训练侧常用的默认分词规则 (?u)\b\w\w+\b：两个及以上字母/数字/下划线组成的词。
// RE2 的 \w 与 \b 只识别 ASCII，这里换成等价的 Unicode 写法。
const defaultTokenPattern = `[\p{L}\p{N}_]{2,}`

// SparseVector 是按下标升序的稀疏向量。
type SparseVector struct {
	Indices []int
	Values  []float64
}

// Len 返回非零元素个数。
func (v SparseVector) Len() int { return len(v.Indices) }

// TFIDFVectorizer 是已训练好的 TF-IDF 向量化器（只读）。
//
// 转换流程：
//  1. 可选小写化
//  2. 正则分词
//  3. 去停用词，生成 n-gram
//  4. 按词表计数（词表外的词直接忽略）
//  5. 可选 binary / sublinear tf
//  6. 乘以 idf
//  7. 按 l2 / l1 归一化
type TFIDFVectorizer struct {
	vocabulary  map[string]int
	idf         []float64
	lowercase   bool
	token       *regexp.Regexp
	ngramMin    int
	ngramMax    int
	stopWords   map[string]struct{}
	binary      bool
	sublinearTF bool
	norm        string
}

// VectorizerArtifact 是向量化器的导出格式（JSON）。
type VectorizerArtifact struct {
	Vocabulary   map[string]int `json:"vocabulary"`
	IDF          []float64      `json:"idf"`
	Lowercase    *bool          `json:"lowercase"`
	TokenPattern string         `json:"token_pattern"`
	NgramRange   []int          `json:"ngram_range"`
	StopWords    []string       `json:"stop_words"`
	Binary       bool           `json:"binary"`
	SublinearTF  bool           `json:"sublinear_tf"`
	Norm         *string        `json:"norm"`
}

// NewTFIDFVectorizer 从导出制品构建向量化器，并校验词表与 idf 的一致性。
func NewTFIDFVectorizer(a *VectorizerArtifact) (*TFIDFVectorizer, error) {
	if a == nil || len(a.Vocabulary) == 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeModelContractViolation, "vectorizer: empty vocabulary")
	}
	n := len(a.Vocabulary)
	seen := make([]bool, n)
	for term, idx := range a.Vocabulary {
		if idx < 0 || idx >= n {
			return nil, core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
				"vectorizer: term %q has index %d outside [0,%d)", term, idx, n)
		}
		if seen[idx] {
			return nil, core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
				"vectorizer: duplicate index %d", idx)
		}
		seen[idx] = true
	}
	if len(a.IDF) != 0 && len(a.IDF) != n {
		return nil, core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
			"vectorizer: idf length %d does not match vocabulary size %d", len(a.IDF), n)
	}

	pattern := a.TokenPattern
	if pattern == "" || pattern == `(?u)\b\w\w+\b` {
		pattern = defaultTokenPattern
	}
	pattern = strings.TrimPrefix(pattern, "(?u)")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("vectorizer: token pattern: %w", err)
	}

	ngMin, ngMax := 1, 1
	if len(a.NgramRange) == 2 {
		ngMin, ngMax = a.NgramRange[0], a.NgramRange[1]
	}
	if ngMin < 1 || ngMax < ngMin {
		return nil, fmt.Errorf("vectorizer: invalid ngram_range %v", a.NgramRange)
	}

	norm := "l2"
	if a.Norm != nil {
		norm = *a.Norm
	}
	switch norm {
	case "l1", "l2", "":
	default:
		return nil, fmt.Errorf("vectorizer: unsupported norm %q", norm)
	}

	v := &TFIDFVectorizer{
		vocabulary:  a.Vocabulary,
		idf:         a.IDF,
		lowercase:   a.Lowercase == nil || *a.Lowercase,
		token:       re,
		ngramMin:    ngMin,
		ngramMax:    ngMax,
		binary:      a.Binary,
		sublinearTF: a.SublinearTF,
		norm:        norm,
	}
	if len(a.StopWords) > 0 {
		v.stopWords = make(map[string]struct{}, len(a.StopWords))
		for _, w := range a.StopWords {
			v.stopWords[w] = struct{}{}
		}
	}
	return v, nil
}

// Dim 返回输出维度（词表大小）。
func (v *TFIDFVectorizer) Dim() int { return len(v.vocabulary) }

// Transform 将文本转为 TF-IDF 稀疏向量。空文本得到空向量。
func (v *TFIDFVectorizer) Transform(text string) SparseVector {
	if v.lowercase {
		text = strings.ToLower(text)
	}
	tokens := v.token.FindAllString(text, -1)
	if v.stopWords != nil {
		kept := tokens[:0]
		for _, t := range tokens {
			if _, stop := v.stopWords[t]; !stop {
				kept = append(kept, t)
			}
		}
		tokens = kept
	}

	counts := make(map[int]float64)
	for n := v.ngramMin; n <= v.ngramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			term := tokens[i]
			if n > 1 {
				term = strings.Join(tokens[i:i+n], " ")
			}
			if idx, ok := v.vocabulary[term]; ok {
				counts[idx]++
			}
		}
	}
	if len(counts) == 0 {
		return SparseVector{}
	}

	out := SparseVector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		out.Indices = append(out.Indices, idx)
	}
	sort.Ints(out.Indices)

	var norm float64
	for _, idx := range out.Indices {
		tf := counts[idx]
		switch {
		case v.binary:
			tf = 1
		case v.sublinearTF:
			tf = 1 + math.Log(tf)
		}
		if len(v.idf) > 0 {
			tf *= v.idf[idx]
		}
		out.Values = append(out.Values, tf)
		switch v.norm {
		case "l2":
			norm += tf * tf
		case "l1":
			norm += math.Abs(tf)
		}
	}
	if v.norm == "l2" {
		norm = math.Sqrt(norm)
	}
	if norm > 0 {
		for i := range out.Values {
			out.Values[i] /= norm
		}
	}
	return out
}

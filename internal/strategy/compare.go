package strategy

import "math"

// 中文说明：
// 针对可选特征（*float64）的空值安全比较。字段缺失一律判定为
// “条件不成立”，绝不 panic；这是整条流水线的基础约定。

func gte(p *float64, threshold float64) bool {
	return p != nil && *p >= threshold
}

func lte(p *float64, threshold float64) bool {
	return p != nil && *p <= threshold
}

func absGTE(p *float64, threshold float64) bool {
	return p != nil && math.Abs(*p) >= threshold
}

func absLT(p *float64, threshold float64) bool {
	return p != nil && math.Abs(*p) < threshold
}

// diffAbsGTE 两个可选值之差的绝对值达到阈值；任一缺失则不成立。
func diffAbsGTE(a, b *float64, threshold float64) bool {
	if a == nil || b == nil {
		return false
	}
	return math.Abs(*a-*b) >= threshold
}

// oppositeSigns 两个可选值符号相反（都非零）；任一缺失则不成立。
func oppositeSigns(a, b *float64) bool {
	if a == nil || b == nil {
		return false
	}
	return (*a > 0 && *b < 0) || (*a < 0 && *b > 0)
}

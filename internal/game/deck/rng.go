package deck

// HashSeed 把种子字符串哈希为32位整数（多项式滚动哈希）
func HashSeed(seed string) uint32 {
	var h int32
	for _, c := range seed {
		h = (h << 5) - h + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return uint32(v)
}

// rng mulberry32风格的32位确定性伪随机数生成器
type rng struct {
	state uint32
}

func newRNG(seed uint32) *rng {
	return &rng{state: seed}
}

// next 返回[0,1)区间的下一个随机数
func (r *rng) next() float64 {
	r.state += 0x6d2b79f5
	t := r.state
	t = (t ^ (t >> 15)) * (t | 1)
	t = (t + (t^(t>>7))*(t|61)) ^ t
	return float64(t^(t>>14)) / 4294967296.0
}

// SeededFloat 对种子做一次性混合，返回[0,1)的确定性随机数。
// 用于奖励自动分配等需要可复现单次取值的场合。
func SeededFloat(seed string) float64 {
	var h int32
	for _, c := range seed {
		h = (h << 5) - h + int32(c)
	}
	t := uint32(h) + 0x6d2b79f5
	t = (t ^ (t >> 15)) * (t | 1)
	t = (t + (t^(t>>7))*(t|61)) ^ t
	return float64(t^(t>>14)) / 4294967296.0
}

// SeededIndex 返回[0,n)的确定性下标
func SeededIndex(seed string, n int) int {
	if n <= 0 {
		return 0
	}
	return int(SeededFloat(seed) * float64(n))
}

package algo

import "sort"

// Label 多准则标签（到达时刻，步行时间）
type Label struct {
	ArrivalTime float64
	WalkingTime float64
}

// Dominates 两准则均不劣且至少一个严格更优
func (l Label) Dominates(other Label) bool {
	return (l.ArrivalTime <= other.ArrivalTime && l.WalkingTime < other.WalkingTime) ||
		(l.ArrivalTime < other.ArrivalTime && l.WalkingTime <= other.WalkingTime)
}

// Bag 互不支配的标签集合，供多准则变种（McRAPTOR）使用，
// 标量查询只使用earliestArrivalTime数组
type Bag struct {
	labels []Label
}

// Insert 被已有标签支配（或与之相等）时丢弃，
// 否则先移除所有被新标签支配的标签再插入
func (b *Bag) Insert(label Label) {
	for _, l := range b.labels {
		if l.Dominates(label) || l == label {
			return
		}
	}
	kept := b.labels[:0]
	for _, l := range b.labels {
		if !label.Dominates(l) {
			kept = append(kept, l)
		}
	}
	b.labels = append(kept, label)
}

// InsertTime Insert(Label{t, w})的简写
func (b *Bag) InsertTime(t, w float64) {
	b.Insert(Label{ArrivalTime: t, WalkingTime: w})
}

// Merge 并入另一个Bag，结果为两者的Pareto并
func (b *Bag) Merge(other *Bag) {
	for _, l := range other.labels {
		b.Insert(l)
	}
}

// Labels 按到达时刻升序的快照
func (b *Bag) Labels() []Label {
	out := make([]Label, len(b.labels))
	copy(out, b.labels)
	sort.Slice(out, func(i, j int) bool {
		return out[i].ArrivalTime < out[j].ArrivalTime
	})
	return out
}

func (b *Bag) Len() int {
	return len(b.labels)
}

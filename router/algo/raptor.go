package algo

import "sort"

// Raptor 基于轮次的公交最短路引擎（RAPTOR）。
// 每轮对应多乘一个trip，轮内按stage 1/2/3推进：
// 快照上一轮到达时刻 -> 扫描route -> 松弛步行边。
// 引擎持有本次查询的全部scratch状态，单实例不可并发查询；
// 多个引擎可共享同一个只读Timetable
type Raptor struct {
	tt *Timetable
	// 步行松弛模式：true使用hub标签，false使用直接步行边
	useHL bool
	// profile查询要求至少乘一个trip，禁用纯步行
	profile bool

	// 任意轮次内的最优到达时刻
	earliestArrivalTime []float64
	// 本轮开始时的快照，用于决定上车trip
	prevEarliestArrivalTime []float64
	// 上一轮被改进的站点
	stopIsMarked []bool
	// 本轮到达hub的最优时刻，仅hub模式
	tmpHubLabels []float64

	// route -> 该route上被标记站点中的最早位置对应的站点
	queue map[int32]int32
	// 本stage内被改进的站点/hub，延迟标记用，
	// 原实现中为函数内static集合，这里收归引擎状态以保证可重入
	improved     []int32
	improvedFlag []bool

	// stage 2是否产生任何改进
	stopsImproved bool
}

// NewRaptor 按时刻表规模分配scratch数组
func NewRaptor(tt *Timetable, useHL, profile bool) *Raptor {
	r := &Raptor{
		tt:      tt,
		useHL:   useHL,
		profile: profile,

		earliestArrivalTime:     make([]float64, tt.MaxStopId+1),
		prevEarliestArrivalTime: make([]float64, tt.MaxStopId+1),
		stopIsMarked:            make([]bool, tt.MaxStopId+1),

		queue:        make(map[int32]int32, len(tt.Routes)),
		improved:     make([]int32, 0, tt.MaxStopId+1),
		improvedFlag: make([]bool, tt.MaxNodeId+1),
	}
	if useHL {
		r.tmpHubLabels = make([]float64, tt.MaxNodeId+1)
	}
	r.Clear()
	return r
}

// Clear 重置所有查询状态，引擎可复用于下一次查询，时刻表无需重建
func (r *Raptor) Clear() {
	for i := range r.earliestArrivalTime {
		r.earliestArrivalTime[i] = INF
		r.prevEarliestArrivalTime[i] = INF
		r.stopIsMarked[i] = false
	}
	for i := range r.tmpHubLabels {
		r.tmpHubLabels[i] = INF
	}
	for k := range r.queue {
		delete(r.queue, k)
	}
	r.improved = r.improved[:0]
	for i := range r.improvedFlag {
		r.improvedFlag[i] = false
	}
	r.stopsImproved = false
}

// earliestTrip route在stop_idx处发车时刻不早于t的最早trip，
// 不存在时返回NULL_TRIP。
// FIFO不变量保证stop_times_by_stops按发车时刻有序，可二分
func (r *Raptor) earliestTrip(routeID int32, stopIdx int, t float64) int32 {
	route := &r.tt.Routes[routeID]
	events := route.StopTimesByStops[stopIdx]
	i := sort.Search(len(events), func(k int) bool {
		return events[k].Dep >= t
	})
	if i == len(events) {
		return NULL_TRIP
	}
	return route.Trips[i]
}

// makeQueue 由被标记站点生成每条route的扫描起点：
// route上被标记站点中位置最早者。标记随即被消费清空，stage 2重新标记
func (r *Raptor) makeQueue() {
	for k := range r.queue {
		delete(r.queue, k)
	}
	for s := int32(0); s <= r.tt.MaxStopId; s++ {
		if !r.stopIsMarked[s] {
			continue
		}
		for _, routeID := range r.tt.Stops[s].Routes {
			positions := r.tt.Routes[routeID].StopPositions
			if p, ok := r.queue[routeID]; !ok || positions[s] < positions[p] {
				r.queue[routeID] = s
			}
		}
		r.stopIsMarked[s] = false
	}
}

// scanRoutes stage 2：沿每条入队route从起点向后扫描，
// 用当前trip传播到达时刻（局部+目标剪枝），
// 传播之后再检查能否在该站换乘更早的trip，
// 顺序不可颠倒：同一站点既可接收本轮到达，又可作为更早trip的上车点
func (r *Raptor) scanRoutes(target int32) {
	for routeID, stopID := range r.queue {
		route := &r.tt.Routes[routeID]

		t := NULL_TRIP
		// 当前trip的整行到发时刻
		var tripTimes []StopTime

		for i := route.StopPositions[stopID]; i < len(route.Stops); i++ {
			p := route.Stops[i]
			dep := 0.0

			if t != NULL_TRIP {
				st := tripTimes[i]
				dep = st.Dep
				// 局部剪枝+目标剪枝：目标的最优值可能在本次扫描中刚被收紧，
				// 收紧只会进一步剪掉已被支配的候选，因此直接读当前值
				if st.Arr < r.earliestArrivalTime[p] && st.Arr < r.earliestArrivalTime[target] {
					r.earliestArrivalTime[p] = st.Arr
					r.stopIsMarked[p] = true
					r.stopsImproved = true
				}
			}

			// 尚未上车时无条件尝试，否则仅当上一轮快照不晚于当前trip发车时刻
			if t == NULL_TRIP || r.prevEarliestArrivalTime[p] <= dep {
				if next := r.earliestTrip(routeID, i, r.prevEarliestArrivalTime[p]); next != t {
					t = next
					if t != NULL_TRIP {
						tripTimes = route.StopTimesByTrips[r.tt.TripPositions[t].Index]
					}
				}
			}
		}
	}
}

// Query 计算source出发时刻departure下到达target的逐轮最优到达时刻。
// 返回向量长度≥1且非增，第k项为至多乘k个trip的最优到达时刻，
// 第0项为纯步行（hub模式且非profile时）、source==target时的departure，或INF。
// 不可达不是错误：全INF向量，与可达时一样在首个stage 2无改进的轮次终止
func (r *Raptor) Query(source, target int32, departure float64) []float64 {
	r.Clear()

	r.earliestArrivalTime[source] = departure
	r.prevEarliestArrivalTime[source] = departure
	r.stopIsMarked[source] = true

	if r.profile && source == target {
		return []float64{departure}
	}

	// 步行无限制时可能存在source到target的纯步行通路，
	// profile查询要求至少乘一个trip，不走此捷径。
	// source==target时到达时刻已是departure，不再覆盖
	if r.useHL && !r.profile && source != target {
		r.earliestArrivalTime[target] = departure + r.tt.WalkingTime(source, target)
	}

	targetLabels := []float64{r.earliestArrivalTime[target]}

	for round := 1; ; round++ {
		// stage 1：将被标记站点的到达时刻快照到上一轮
		for s := int32(0); s <= r.tt.MaxStopId; s++ {
			if r.stopIsMarked[s] {
				r.prevEarliestArrivalTime[s] = r.earliestArrivalTime[s]
			}
		}

		// stage 2
		r.makeQueue()
		r.stopsImproved = false
		r.scanRoutes(target)

		targetLabels = append(targetLabels, r.earliestArrivalTime[target])
		if !r.stopsImproved {
			break
		}

		// 首轮还需考虑从source出发的步行边，原版RAPTOR未覆盖这一情况
		if round == 1 && !r.profile {
			r.stopIsMarked[source] = true
		}

		// stage 3
		r.scanFootpaths(target)

		// 扫描完步行边后去掉source标记，
		// 留着只会在下一轮重复首轮已完成的route扫描
		if round == 1 && !r.profile {
			r.stopIsMarked[source] = false
		}

		// 步行松弛可能改进了target，覆盖本轮刚追加的标签
		targetLabels[len(targetLabels)-1] = r.earliestArrivalTime[target]
	}

	return targetLabels
}

package algo

// markImproved 记录本stage内被改进的站点/hub，去重
func (r *Raptor) markImproved(node int32) {
	if !r.improvedFlag[node] {
		r.improvedFlag[node] = true
		r.improved = append(r.improved, node)
	}
}

// resetImproved 清空improved集合，只重置被触碰的表项
func (r *Raptor) resetImproved() {
	for _, node := range r.improved {
		r.improvedFlag[node] = false
	}
	r.improved = r.improved[:0]
}

// scanFootpaths stage 3：松弛被标记站点出发的步行边。
// 直接模式下对目的站点延迟标记：标记在全部站点扫完后统一落盘，
// 否则一个站点可能在同一stage内被处理两次
func (r *Raptor) scanFootpaths(target int32) {
	if !r.useHL {
		r.scanTransfers(target)
	} else {
		r.scanHubs(target)
	}
	r.resetImproved()
}

func (r *Raptor) scanTransfers(target int32) {
	for s := int32(0); s <= r.tt.MaxStopId; s++ {
		if !r.stopIsMarked[s] {
			continue
		}
		for _, transfer := range r.tt.Stops[s].Transfers {
			tmp := r.earliestArrivalTime[s] + transfer.Time
			// 步行边按用时升序，到达时刻一旦晚于target后续只会更晚
			if tmp > r.earliestArrivalTime[target] {
				break
			}
			if tmp < r.earliestArrivalTime[transfer.Dest] {
				r.earliestArrivalTime[transfer.Dest] = tmp
				r.markImproved(transfer.Dest)
			}
		}
	}
	for _, s := range r.improved {
		r.stopIsMarked[s] = true
	}
}

func (r *Raptor) scanHubs(target int32) {
	// 先把到达时刻传播到被标记站点的out-hub
	for s := int32(0); s <= r.tt.MaxStopId; s++ {
		if !r.stopIsMarked[s] {
			continue
		}
		for _, out := range r.tt.Stops[s].OutHubs {
			tmp := r.earliestArrivalTime[s] + out.Time
			// out-hub按步行时间升序，晚于target即可停止传播
			if tmp > r.earliestArrivalTime[target] {
				break
			}
			if tmp < r.tmpHubLabels[out.Node] {
				r.tmpHubLabels[out.Node] = tmp
				r.markImproved(out.Node)
			}
		}
	}
	// 被改进的hub再沿入hub反向邻接表传播回站点：
	// 某站点的out-hub可能是其他站点的in-hub
	for _, hub := range r.improved {
		for _, in := range r.tt.InverseInHubs[hub] {
			tmp := r.tmpHubLabels[hub] + in.Time
			if tmp > r.earliestArrivalTime[target] {
				break
			}
			if tmp < r.earliestArrivalTime[in.Node] {
				r.earliestArrivalTime[in.Node] = tmp
				r.stopIsMarked[in.Node] = true
			}
		}
	}
	// hub标签只在本轮内有效
	for _, hub := range r.improved {
		r.tmpHubLabels[hub] = INF
	}
}

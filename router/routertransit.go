package router

import (
	"fmt"

	"golang.org/x/exp/slices"

	"git.fiblab.net/sim/raptor/v2/router/algo"
)

// SearchTransit source出发时刻departure下到达target的逐轮最优到达时刻，
// 第k项为至多乘k个trip的到达时刻，不可达为algo.INF。
// 不可达不是错误，错误仅在站点id非法时返回
func (r *Router) SearchTransit(source, target int32, departure float64) ([]float64, error) {
	token := r.mu.RLock()
	defer r.mu.RUnlock(token)

	src, ok := r.stopIndex[source]
	if !ok {
		return nil, fmt.Errorf("routing failed: unknown source stop %d", source)
	}
	dst, ok := r.stopIndex[target]
	if !ok {
		return nil, fmt.Errorf("routing failed: unknown target stop %d", target)
	}

	key := queryKey{source: src, target: dst, departure: departure}
	if labels, ok := r.cache.Load(key); ok {
		return slices.Clone(labels), nil
	}

	e := r.borrowEngine()
	labels := e.Query(src, dst, departure)
	r.returnEngine(e)

	// Query每次返回新切片，缓存持有原件，调用方拿副本
	r.cache.Store(key, labels)
	return slices.Clone(labels), nil
}

// borrowEngine 复用空闲引擎，无空闲则新建。
// 引擎的scratch状态与时刻表绑定，Reload后freelist整体作废
func (r *Router) borrowEngine() *algo.Raptor {
	select {
	case e := <-r.engines:
		return e
	default:
		return algo.NewRaptor(r.tt, r.opts.UseHubLabels, r.opts.Profile)
	}
}

func (r *Router) returnEngine(e *algo.Raptor) {
	select {
	case r.engines <- e:
	default:
		// freelist已满，丢弃
	}
}

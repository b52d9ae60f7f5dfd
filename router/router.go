package router

import (
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"

	"git.fiblab.net/sim/raptor/v2/router/algo"
)

var log = logrus.WithField("module", "router")

const (
	// 引擎freelist默认容量
	DEFAULT_POOL_SIZE = 8
)

// Router 查询门面。持有只读时刻表、可复用的引擎freelist与查询结果缓存。
// 时刻表可通过Reload整体替换，替换期间的查询由RBMutex隔离
type Router struct {
	opts Options

	mu *xsync.RBMutex
	// 以下字段整体替换，读取须持有RBMutex读锁
	tt *algo.Timetable
	// 外部站点id -> 稠密id
	stopIndex map[int32]int32
	// 稠密id -> 外部站点id
	stopIds []int32
	// 空闲引擎，满则丢弃归还的引擎
	engines chan *algo.Raptor
	cache   *xsync.MapOf[queryKey, []float64]
}

func New(doc *TimetableDoc, opts Options) (*Router, error) {
	if opts.PoolSize <= 0 {
		opts.PoolSize = DEFAULT_POOL_SIZE
	}
	r := &Router{
		opts: opts,
		mu:   xsync.NewRBMutex(),
	}
	if err := r.swapTimetable(doc); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload 用新的时刻表数据源整体替换当前时刻表，
// 旧引擎与缓存一并废弃
func (r *Router) Reload(doc *TimetableDoc) error {
	return r.swapTimetable(doc)
}

func (r *Router) swapTimetable(doc *TimetableDoc) error {
	tt, stopIndex, stopIds, err := buildTimetable(doc, r.opts.UseHubLabels)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tt = tt
	r.stopIndex = stopIndex
	r.stopIds = stopIds
	r.engines = make(chan *algo.Raptor, r.opts.PoolSize)
	r.cache = xsync.NewMapOf[queryKey, []float64]()
	log.Infof("timetable loaded: %d stops, %d routes, %d trips",
		len(tt.Stops), len(tt.Routes), len(tt.TripPositions))
	return nil
}

func (r *Router) HasStopID(id int32) bool {
	token := r.mu.RLock()
	defer r.mu.RUnlock(token)
	_, ok := r.stopIndex[id]
	return ok
}

// StopIDs 外部站点id快照
func (r *Router) StopIDs() []int32 {
	token := r.mu.RLock()
	defer r.mu.RUnlock(token)
	out := make([]int32, len(r.stopIds))
	copy(out, r.stopIds)
	return out
}

func (r *Router) StopCount() int {
	token := r.mu.RLock()
	defer r.mu.RUnlock(token)
	return len(r.stopIds)
}

// close
func (r *Router) Close() {}

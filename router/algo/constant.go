package algo

import (
	"errors"
	"math"
)

const (
	// 无效trip哨兵
	NULL_TRIP = int32(-1)
)

var (
	// 不可达的到达时刻哨兵，float64的+Inf天然满足INF+x=INF
	INF = math.Inf(1)

	// 错误：trip在同一站点上车时刻早于到达时刻
	ErrBadStopTime = errors.New("bad stop time, departure should be no earlier than arrival")
	// 错误：同一route内trip超车，违反FIFO
	ErrTripOvertake = errors.New("trip overtake in route, departures should be non-decreasing across trips")
	// 错误：邻接表未按步行时间升序排列
	ErrUnsortedLinks = errors.New("links are not sorted by walking time")
	// 错误：route的站点下标映射与站点序列不一致
	ErrBadStopPosition = errors.New("stop position is inconsistent with route stops")
)

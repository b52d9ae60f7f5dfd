package router

import (
	"testing"

	"git.fiblab.net/sim/raptor/v2/router/algo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hm(h, m float64) float64 {
	return h*3600 + m*60
}

// 外部站点id故意不连续，构建时重映射为稠密id
func testDoc() *TimetableDoc {
	return &TimetableDoc{
		Stops: []StopDoc{
			{Id: 100},
			{Id: 200, Transfers: []TransferDoc{{Dest: 300, Time: 2400}}},
			{Id: 300},
		},
		Trips: []TripDoc{
			// 同一站点序列的两条trip归入同一route，乱序给入
			{Id: 2, Stops: []int32{100, 200}, Times: []StopTimeDoc{
				{Arr: hm(11, 0), Dep: hm(11, 0)}, {Arr: hm(11, 20), Dep: hm(11, 20)},
			}},
			{Id: 1, Stops: []int32{100, 200}, Times: []StopTimeDoc{
				{Arr: hm(10, 0), Dep: hm(10, 0)}, {Arr: hm(10, 20), Dep: hm(10, 20)},
			}},
			{Id: 3, Stops: []int32{200, 300}, Times: []StopTimeDoc{
				{Arr: hm(10, 30), Dep: hm(10, 30)}, {Arr: hm(10, 50), Dep: hm(10, 50)},
			}},
		},
	}
}

func TestBuildTimetableGroupsTrips(t *testing.T) {
	tt, stopIndex, stopIds, err := buildTimetable(testDoc(), false)
	require.NoError(t, err)

	assert.Equal(t, int32(2), tt.MaxStopId)
	assert.Equal(t, []int32{100, 200, 300}, stopIds)
	assert.Equal(t, int32(0), stopIndex[100])
	assert.Equal(t, int32(2), stopIndex[300])

	// 两条route，第一条含按发车时刻排好序的两条trip
	require.Len(t, tt.Routes, 2)
	assert.Len(t, tt.Routes[0].Trips, 2)
	assert.Equal(t, hm(10, 0), tt.Routes[0].StopTimesByTrips[0][0].Dep)
	assert.Equal(t, hm(11, 0), tt.Routes[0].StopTimesByTrips[1][0].Dep)
	// 转置表一致
	assert.Equal(t, tt.Routes[0].StopTimesByTrips[1][1], tt.Routes[0].StopTimesByStops[1][1])

	// 站点的route列表与步行边
	assert.Equal(t, []int32{0}, tt.Stops[0].Routes)
	assert.Equal(t, []int32{0, 1}, tt.Stops[1].Routes)
	assert.Equal(t, []algo.Transfer{{Dest: 2, Time: 2400}}, tt.Stops[1].Transfers)
}

func TestBuildTimetableRejectsOvertake(t *testing.T) {
	doc := &TimetableDoc{
		Stops: []StopDoc{{Id: 1}, {Id: 2}},
		Trips: []TripDoc{
			// 早发晚到
			{Id: 1, Stops: []int32{1, 2}, Times: []StopTimeDoc{
				{Arr: 100, Dep: 100}, {Arr: 600, Dep: 600},
			}},
			// 晚发早到：FIFO被破坏，构建失败
			{Id: 2, Stops: []int32{1, 2}, Times: []StopTimeDoc{
				{Arr: 200, Dep: 200}, {Arr: 500, Dep: 500},
			}},
		},
	}
	_, _, _, err := buildTimetable(doc, false)
	assert.ErrorIs(t, err, algo.ErrTripOvertake)
}

func TestBuildTimetableDropsBadTrips(t *testing.T) {
	doc := &TimetableDoc{
		Stops: []StopDoc{{Id: 1}, {Id: 2}},
		Trips: []TripDoc{
			// 到发时刻与站点数不匹配
			{Id: 1, Stops: []int32{1, 2}, Times: []StopTimeDoc{{Arr: 100, Dep: 100}}},
			// 时刻回退
			{Id: 2, Stops: []int32{1, 2}, Times: []StopTimeDoc{
				{Arr: 300, Dep: 300}, {Arr: 200, Dep: 200},
			}},
			// 经过未知站点
			{Id: 3, Stops: []int32{1, 9}, Times: []StopTimeDoc{
				{Arr: 100, Dep: 100}, {Arr: 200, Dep: 200},
			}},
			// 站点序列内重复
			{Id: 4, Stops: []int32{1, 2, 1}, Times: []StopTimeDoc{
				{Arr: 100, Dep: 100}, {Arr: 200, Dep: 200}, {Arr: 300, Dep: 300},
			}},
		},
	}
	tt, _, _, err := buildTimetable(doc, false)
	require.NoError(t, err)
	assert.Empty(t, tt.Routes)
}

func TestRouterSearchTransit(t *testing.T) {
	r, err := New(testDoc(), Options{})
	require.NoError(t, err)

	// 100 -> 200乘10:00的trip
	labels, err := r.SearchTransit(100, 200, hm(9, 0))
	require.NoError(t, err)
	assert.Equal(t, []float64{algo.INF, hm(10, 20), hm(10, 20)}, labels)

	// 100 -> 300：乘1个trip后40分钟步行11:00可达，
	// 换乘10:30的trip则10:50可达，两个标签都在Pareto前沿上
	labels, err = r.SearchTransit(100, 300, hm(9, 0))
	require.NoError(t, err)
	assert.Equal(t, []float64{algo.INF, hm(11, 0), hm(10, 50), hm(10, 50)}, labels)

	// 未知站点
	_, err = r.SearchTransit(100, 999, hm(9, 0))
	assert.Error(t, err)
	_, err = r.SearchTransit(999, 200, hm(9, 0))
	assert.Error(t, err)
}

func TestRouterCacheIsolation(t *testing.T) {
	r, err := New(testDoc(), Options{})
	require.NoError(t, err)

	first, err := r.SearchTransit(100, 200, hm(9, 0))
	require.NoError(t, err)
	// 篡改返回值不影响缓存
	first[1] = 0
	second, err := r.SearchTransit(100, 200, hm(9, 0))
	require.NoError(t, err)
	assert.Equal(t, hm(10, 20), second[1])
}

func TestRouterHubMode(t *testing.T) {
	doc := &TimetableDoc{
		Stops: []StopDoc{
			{Id: 10, OutHubs: []HubLinkDoc{{Hub: 7, Time: 300}}},
			{Id: 20, InHubs: []HubLinkDoc{{Hub: 7, Time: 300}}},
		},
	}
	r, err := New(doc, Options{UseHubLabels: true})
	require.NoError(t, err)

	// 纯步行通路经hub 7，共10分钟
	labels, err := r.SearchTransit(10, 20, hm(9, 0))
	require.NoError(t, err)
	assert.Equal(t, hm(9, 10), labels[0])
}

func TestRouterReload(t *testing.T) {
	r, err := New(testDoc(), Options{})
	require.NoError(t, err)
	labels, err := r.SearchTransit(100, 200, hm(9, 0))
	require.NoError(t, err)
	assert.Equal(t, hm(10, 20), labels[1])

	// 换一张只剩晚班车的时刻表，缓存不得残留旧结果
	doc := &TimetableDoc{
		Stops: []StopDoc{{Id: 100}, {Id: 200}},
		Trips: []TripDoc{
			{Id: 1, Stops: []int32{100, 200}, Times: []StopTimeDoc{
				{Arr: hm(12, 0), Dep: hm(12, 0)}, {Arr: hm(12, 20), Dep: hm(12, 20)},
			}},
		},
	}
	require.NoError(t, r.Reload(doc))
	labels, err = r.SearchTransit(100, 200, hm(9, 0))
	require.NoError(t, err)
	assert.Equal(t, hm(12, 20), labels[1])
	assert.False(t, r.HasStopID(300))
	assert.Equal(t, 2, r.StopCount())
}

package router

import (
	"fmt"
	"strconv"
	"strings"

	"git.fiblab.net/sim/raptor/v2/router/algo"
	"github.com/samber/lo"
	"golang.org/x/exp/slices"
)

// patternKey 站点序列的归组键，序列相同的trip属于同一route
func patternKey(stops []int32) string {
	var b strings.Builder
	for _, s := range stops {
		b.WriteString(strconv.Itoa(int(s)))
		b.WriteByte(',')
	}
	return b.String()
}

type routePattern struct {
	stops []int32
	trips []TripDoc
}

// buildTimetable 将时刻表数据源转换为稠密id的只读Timetable。
// 返回外部站点id与稠密id的双向映射
func buildTimetable(doc *TimetableDoc, useHL bool) (*algo.Timetable, map[int32]int32, []int32, error) {
	// 外部站点id -> 稠密id，按id升序分配保证构建结果稳定
	stopIds := lo.Map(doc.Stops, func(s StopDoc, _ int) int32 { return s.Id })
	slices.Sort(stopIds)
	stopIndex := make(map[int32]int32, len(stopIds))
	for i, id := range stopIds {
		if _, ok := stopIndex[id]; ok {
			return nil, nil, nil, fmt.Errorf("duplicate stop id %d", id)
		}
		stopIndex[id] = int32(i)
	}

	tt := &algo.Timetable{
		Stops:     make([]algo.Stop, len(stopIds)),
		MaxStopId: int32(len(stopIds) - 1),
		MaxNodeId: int32(len(stopIds) - 1),
	}
	for i := range tt.Stops {
		tt.Stops[i].Id = int32(i)
	}

	// trip按站点序列归组为route，保持首次出现的顺序
	patterns := make(map[string]*routePattern)
	patternOrder := make([]string, 0)
	for _, trip := range doc.Trips {
		if len(trip.Stops) != len(trip.Times) || len(trip.Stops) < 2 {
			log.Warnf("trip %d dropped: stops and times mismatch", trip.Id)
			continue
		}
		dense := make([]int32, len(trip.Stops))
		ok := true
		for i, s := range trip.Stops {
			d, found := stopIndex[s]
			if !found {
				log.Warnf("trip %d dropped: unknown stop %d", trip.Id, s)
				ok = false
				break
			}
			dense[i] = d
		}
		if !ok {
			continue
		}
		// 同一trip内时刻必须随行进非降
		for i, st := range trip.Times {
			if st.Dep < st.Arr || (i > 0 && st.Arr < trip.Times[i-1].Dep) {
				log.Warnf("trip %d dropped: regressing stop times", trip.Id)
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		key := patternKey(dense)
		p, found := patterns[key]
		if !found {
			// route内站点必须唯一，否则位置映射无法成立
			if len(lo.Uniq(dense)) != len(dense) {
				log.Warnf("trip %d dropped: repeated stop in pattern", trip.Id)
				continue
			}
			p = &routePattern{stops: dense}
			patterns[key] = p
			patternOrder = append(patternOrder, key)
		}
		t := trip
		t.Stops = dense
		p.trips = append(p.trips, t)
	}

	for _, key := range patternOrder {
		p := patterns[key]
		// route内trip按首站发车时刻升序，FIFO校验在Validate统一做
		slices.SortStableFunc(p.trips, func(a, b TripDoc) int {
			switch {
			case a.Times[0].Dep < b.Times[0].Dep:
				return -1
			case a.Times[0].Dep > b.Times[0].Dep:
				return 1
			default:
				return 0
			}
		})

		routeID := int32(len(tt.Routes))
		route := algo.Route{
			Stops:            p.stops,
			StopPositions:    make(map[int32]int, len(p.stops)),
			StopTimesByTrips: make([][]algo.StopTime, 0, len(p.trips)),
			StopTimesByStops: make([][]algo.StopTime, len(p.stops)),
		}
		for i, s := range p.stops {
			route.StopPositions[s] = i
			route.StopTimesByStops[i] = make([]algo.StopTime, len(p.trips))
			tt.Stops[s].Routes = append(tt.Stops[s].Routes, routeID)
		}
		for j, trip := range p.trips {
			times := lo.Map(trip.Times, func(st StopTimeDoc, _ int) algo.StopTime {
				return algo.StopTime{Arr: st.Arr, Dep: st.Dep}
			})
			route.StopTimesByTrips = append(route.StopTimesByTrips, times)
			for i := range p.stops {
				route.StopTimesByStops[i][j] = times[i]
			}
			route.Trips = append(route.Trips, int32(len(tt.TripPositions)))
			tt.TripPositions = append(tt.TripPositions, algo.TripPos{Route: routeID, Index: j})
		}
		tt.Routes = append(tt.Routes, route)
	}

	// 直接步行边重映射并按用时升序
	for _, stop := range doc.Stops {
		dense := stopIndex[stop.Id]
		transfers := make([]algo.Transfer, 0, len(stop.Transfers))
		for _, tr := range stop.Transfers {
			dest, ok := stopIndex[tr.Dest]
			if !ok {
				log.Warnf("stop %d: transfer to unknown stop %d dropped", stop.Id, tr.Dest)
				continue
			}
			transfers = append(transfers, algo.Transfer{Dest: dest, Time: tr.Time})
		}
		slices.SortStableFunc(transfers, func(a, b algo.Transfer) int {
			switch {
			case a.Time < b.Time:
				return -1
			case a.Time > b.Time:
				return 1
			default:
				return 0
			}
		})
		tt.Stops[dense].Transfers = transfers
	}

	if useHL {
		buildHubs(doc, tt, stopIndex)
	}

	if err := tt.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid timetable: %w", err)
	}
	return tt, stopIndex, stopIds, nil
}

// buildHubs hub id重映射到(MaxStopId, MaxNodeId]并构建入hub反向邻接表
func buildHubs(doc *TimetableDoc, tt *algo.Timetable, stopIndex map[int32]int32) {
	hubIndex := make(map[int32]int32)
	denseHub := func(hub int32) int32 {
		if d, ok := hubIndex[hub]; ok {
			return d
		}
		d := tt.MaxNodeId + 1
		tt.MaxNodeId = d
		hubIndex[hub] = d
		return d
	}

	sortLinks := func(links []algo.HubLink) {
		slices.SortStableFunc(links, func(a, b algo.HubLink) int {
			switch {
			case a.Time < b.Time:
				return -1
			case a.Time > b.Time:
				return 1
			default:
				return 0
			}
		})
	}

	for _, stop := range doc.Stops {
		dense := stopIndex[stop.Id]
		outs := lo.Map(stop.OutHubs, func(l HubLinkDoc, _ int) algo.HubLink {
			return algo.HubLink{Node: denseHub(l.Hub), Time: l.Time}
		})
		ins := lo.Map(stop.InHubs, func(l HubLinkDoc, _ int) algo.HubLink {
			return algo.HubLink{Node: denseHub(l.Hub), Time: l.Time}
		})
		sortLinks(outs)
		sortLinks(ins)
		tt.Stops[dense].OutHubs = outs
		tt.Stops[dense].InHubs = ins
	}

	tt.InverseInHubs = make([][]algo.HubLink, tt.MaxNodeId+1)
	for _, stop := range tt.Stops {
		for _, in := range stop.InHubs {
			tt.InverseInHubs[in.Node] = append(
				tt.InverseInHubs[in.Node], algo.HubLink{Node: stop.Id, Time: in.Time})
		}
	}
	for _, links := range tt.InverseInHubs {
		sortLinks(links)
	}
}

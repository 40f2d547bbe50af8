package view

import (
	"math"
	"sort"
	"time"

	"github.com/nshruti113/netguard-dashboard/internal/models"
)

// Mode selects which counters a traffic view is built from
type Mode string

const (
	ModePackets Mode = "packets"
	ModeBytes   Mode = "bytes"
)

// ParseMode falls back to packets for anything it does not recognise
func ParseMode(s string) Mode {
	if Mode(s) == ModeBytes {
		return ModeBytes
	}
	return ModePackets
}

// Stats is the average and peak of one numeric series
type Stats struct {
	Average float64 `json:"average"`
	Peak    float64 `json:"peak"`
}

// SeriesStats computes the mean rounded to precision decimals and the
// maximum of values. An empty series yields zeros.
func SeriesStats(values []float64, precision int) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	sum, peak := 0.0, values[0]
	for _, v := range values {
		sum += v
		if v > peak {
			peak = v
		}
	}
	return Stats{
		Average: round(sum/float64(len(values)), precision),
		Peak:    peak,
	}
}

// PooledStats computes SeriesStats over both series taken together
func PooledStats(source, destination []float64, precision int) Stats {
	all := make([]float64, 0, len(source)+len(destination))
	all = append(all, source...)
	all = append(all, destination...)
	return SeriesStats(all, precision)
}

// TrafficSummary holds the statistics shown next to the traffic chart
type TrafficSummary struct {
	Mode        Mode   `json:"mode"`
	Unit        string `json:"unit"`
	Samples     int    `json:"samples"`
	Source      Stats  `json:"source"`
	Destination Stats  `json:"destination"`
	Combined    Stats  `json:"combined"`
}

// TrafficStats summarises the chartable flows. Packet statistics are whole
// packets per second; byte statistics are expressed in KB with one decimal.
func TrafficStats(flows []models.NetworkFlow, mode Mode) TrafficSummary {
	points := TrafficSeries(flows, mode)
	src := make([]float64, len(points))
	dst := make([]float64, len(points))

	precision, scale, unit := 0, 1.0, "pps"
	if mode == ModeBytes {
		precision, scale, unit = 1, 1024, "KB/s"
	}
	for i, p := range points {
		src[i] = float64(p.Source) / scale
		dst[i] = float64(p.Destination) / scale
	}

	summary := TrafficSummary{
		Mode:        mode,
		Unit:        unit,
		Samples:     len(points),
		Source:      SeriesStats(src, precision),
		Destination: SeriesStats(dst, precision),
		Combined:    PooledStats(src, dst, precision),
	}
	summary.Source.Peak = round(summary.Source.Peak, precision)
	summary.Destination.Peak = round(summary.Destination.Peak, precision)
	summary.Combined.Peak = round(summary.Combined.Peak, precision)
	return summary
}

// Point is one chart sample
type Point struct {
	Time        time.Time `json:"time"`
	Label       string    `json:"label"`
	Source      int64     `json:"source"`
	Destination int64     `json:"destination"`
}

// TrafficSeries returns the chart points ordered by flow start time. Flows
// without a start time cannot be placed on the axis and are skipped.
func TrafficSeries(flows []models.NetworkFlow, mode Mode) []Point {
	points := make([]Point, 0, len(flows))
	for _, f := range flows {
		if f.StartDateTime.IsZero() {
			continue
		}
		p := Point{Time: f.StartDateTime, Label: f.StartDateTime.Format(time.TimeOnly)}
		if mode == ModeBytes {
			p.Source, p.Destination = f.TotalSourceBytes, f.TotalDestinationBytes
		} else {
			p.Source, p.Destination = f.TotalSourcePackets, f.TotalDestinationPackets
		}
		points = append(points, p)
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})
	return points
}

func round(v float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}

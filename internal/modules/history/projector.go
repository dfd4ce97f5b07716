// Package history derives a daily value series for charting.
//
// A series is either observed, built from real daily closes, or interpolated
// between cost basis and current value when closes are missing. Every point
// says which it is; nothing is ever invented and presented as real.
package history

import (
	"sort"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// Mode tags how a series was produced
type Mode string

const (
	ModeObserved     Mode = "observed"
	ModeInterpolated Mode = "interpolated"
)

// Point is one day of the series
type Point struct {
	Timestamp time.Time
	Value     decimal.Decimal
	Observed  bool
}

// Summary describes a series as a whole
type Summary struct {
	Start      decimal.Decimal
	End        decimal.Decimal
	Change     decimal.Decimal
	ChangePct  decimal.Decimal
	Volatility float64 // sample std dev of daily returns, in percent
}

// Holding is the total quantity held of one ticker
type Holding struct {
	Ticker   string
	Quantity decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Interpolate returns days points ending at end, moving linearly from start to
// current. None of the points are observed.
func Interpolate(start, current decimal.Decimal, end time.Time, days int) []Point {
	if days <= 0 {
		return []Point{}
	}

	end = day(end)
	points := make([]Point, days)
	if days == 1 {
		points[0] = Point{Timestamp: end, Value: current}
		return points
	}

	step := current.Sub(start).Div(decimal.NewFromInt(int64(days - 1)))
	for i := 0; i < days; i++ {
		points[i] = Point{
			Timestamp: end.AddDate(0, 0, i-(days-1)),
			Value:     start.Add(step.Mul(decimal.NewFromInt(int64(i)))),
		}
	}
	// Pin the end exactly; division may leave a remainder
	points[days-1].Value = current

	return points
}

// Observe values holdings against daily closes for each of the days ending at
// end, carrying the latest close forward over non-trading days. Days before
// every ticker has a close are left out. ok is false when a holding has no
// history at all or no day could be valued.
func Observe(holdings []Holding, closes map[string][]domain.PricePoint, end time.Time, days int) (points []Point, ok bool) {
	if days <= 0 {
		return []Point{}, true
	}

	series := make([][]domain.PricePoint, len(holdings))
	for i, h := range holdings {
		s := append([]domain.PricePoint(nil), closes[h.Ticker]...)
		if len(s) == 0 {
			return nil, false
		}
		sort.Slice(s, func(a, b int) bool { return s[a].Date.Before(s[b].Date) })
		series[i] = s
	}

	end = day(end)
	cursor := make([]int, len(holdings))
	for i := range cursor {
		cursor[i] = -1
	}

	points = make([]Point, 0, days)
	for offset := days - 1; offset >= 0; offset-- {
		d := end.AddDate(0, 0, -offset)
		value := decimal.Zero
		complete := true

		for i, h := range holdings {
			s := series[i]
			for cursor[i]+1 < len(s) && !day(s[cursor[i]+1].Date).After(d) {
				cursor[i]++
			}
			if cursor[i] < 0 {
				complete = false
				break
			}
			value = value.Add(h.Quantity.Mul(s[cursor[i]].Price))
		}

		if complete {
			points = append(points, Point{Timestamp: d, Value: value, Observed: true})
		}
	}

	if len(points) == 0 {
		return nil, false
	}
	return points, true
}

// Summarize computes start, end, change and the volatility of daily returns
func Summarize(points []Point) Summary {
	s := Summary{
		Start:     decimal.Zero,
		End:       decimal.Zero,
		Change:    decimal.Zero,
		ChangePct: decimal.Zero,
	}
	if len(points) == 0 {
		return s
	}

	s.Start = points[0].Value
	s.End = points[len(points)-1].Value
	s.Change = s.End.Sub(s.Start)
	if s.Start.IsPositive() {
		s.ChangePct = s.Change.Div(s.Start).Mul(hundred)
	}

	returns := make([]float64, 0, len(points))
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Value
		if !prev.IsPositive() {
			continue
		}
		r := points[i].Value.Sub(prev).Div(prev).Mul(hundred)
		returns = append(returns, r.InexactFloat64())
	}
	if len(returns) >= 2 {
		s.Volatility = stat.StdDev(returns, nil)
	}

	return s
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

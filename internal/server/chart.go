package server

import (
	"bytes"
	"net/http"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/jpalmerr/keepwarm"
)

const (
	chartWidth  = 1000
	chartHeight = 300

	// smaPeriod is the moving average window, drawn once the history holds
	// more than this many points.
	smaPeriod = 10
)

// handleChart renders the latency of the retained history as a PNG.
// It responds 204 when there are fewer than two results to plot.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	history := s.service.History()
	if len(history) < 2 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	graph := latencyChart(history)

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		s.logger.Error("failed to render chart", "error", err)
		http.Error(w, "failed to render chart", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Error("failed to write chart response", "error", err)
	}
}

// latencyChart builds a chart of ping latency over time. Failed pings are
// drawn as a separate series so they stand out.
func latencyChart(history []keepwarm.PingResult) chart.Chart {
	var (
		times      = make([]time.Time, 0, len(history))
		latencies  = make([]float64, 0, len(history))
		failTimes  []time.Time
		failValues []float64
		maxLatency float64
	)
	for _, r := range history {
		ms := float64(r.LatencyMs)
		times = append(times, r.Timestamp)
		latencies = append(latencies, ms)
		if !r.Success {
			failTimes = append(failTimes, r.Timestamp)
			failValues = append(failValues, ms)
		}
		maxLatency = max(maxLatency, ms)
	}

	latency := chart.TimeSeries{
		Name: "Latency",
		Style: chart.Style{
			StrokeColor: chart.GetDefaultColor(0),
			StrokeWidth: 2,
		},
		XValues: times,
		YValues: latencies,
	}

	graph := chart.Chart{
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    20,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		XAxis: chart.XAxis{
			Style: chart.Style{
				StrokeColor: drawing.ColorBlack,
				FontSize:    10,
			},
			ValueFormatter: chart.TimeMinuteValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Latency (ms)",
			NameStyle: chart.Style{
				FontSize: 12,
			},
			Style: chart.Style{
				StrokeColor: drawing.ColorBlack,
				FontSize:    10,
			},
			// explicit range so a flat series still renders
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: max(maxLatency*1.1, 1),
			},
			GridMajorStyle: chart.Style{
				StrokeColor: drawing.Color{R: 200, G: 200, B: 200, A: 255},
				StrokeWidth: 1.0,
			},
		},
		Series: []chart.Series{latency},
	}

	if len(latencies) > smaPeriod {
		graph.Series = append(graph.Series, chart.SMASeries{
			Name: "Moving Avg",
			Style: chart.Style{
				StrokeColor:     chart.GetDefaultColor(1),
				StrokeWidth:     2,
				StrokeDashArray: []float64{5, 5},
			},
			InnerSeries: latency,
			Period:      smaPeriod,
		})
	}

	if len(failTimes) > 0 {
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name: "Failures",
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    4,
				DotColor:    drawing.ColorRed,
			},
			XValues: failTimes,
			YValues: failValues,
		})
	}

	return graph
}

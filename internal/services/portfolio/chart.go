package portfolio

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/stockdeskhq/stockdesk/internal/models"
)

// RenderPriceChart renders a PNG line chart of daily closing prices.
// Bars arrive most recent first; the series is reversed into time order
// for drawing. Returns raw PNG bytes.
func RenderPriceChart(symbol string, bars []models.HistoricalBar) ([]byte, error) {
	if len(bars) < 2 {
		return nil, models.NewValidationError(
			fmt.Sprintf("Not enough data points to chart %s.", symbol))
	}

	xValues := make([]time.Time, 0, len(bars))
	yValues := make([]float64, 0, len(bars))

	for i := len(bars) - 1; i >= 0; i-- {
		day, err := time.Parse("2006-01-02", bars[i].Date)
		if err != nil {
			continue
		}
		closePrice, err := strconv.ParseFloat(bars[i].Close, 64)
		if err != nil {
			continue
		}
		xValues = append(xValues, day)
		yValues = append(yValues, closePrice)
	}

	if len(xValues) < 2 {
		return nil, models.NewValidationError(
			fmt.Sprintf("Not enough data points to chart %s.", symbol))
	}

	closeSeries := chart.TimeSeries{
		Name: symbol,
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: yValues,
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s Daily Close", symbol),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 02")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.2f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			closeSeries,
		},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}

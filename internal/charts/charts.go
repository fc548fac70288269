package charts

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/ivanoskov/ibadah_bot/internal/model"
	"github.com/ivanoskov/ibadah_bot/internal/service"
)

// ChartGenerator renders recap charts as PNG.
type ChartGenerator struct{}

// NewChartGenerator creates a chart generator.
func NewChartGenerator() *ChartGenerator {
	return &ChartGenerator{}
}

// GenerateDailyChart draws mandatory and voluntary counts per day.
// It returns nil when the window holds no records.
func (g *ChartGenerator) GenerateDailyChart(summary *service.Summary) ([]byte, error) {
	if summary == nil || summary.Total() == 0 {
		return nil, nil
	}

	xValues := make([]time.Time, len(summary.Days))
	mandatory := make([]float64, len(summary.Days))
	voluntary := make([]float64, len(summary.Days))
	peak := 0
	for i, day := range summary.Days {
		xValues[i] = day.Date.Time()
		mandatory[i] = float64(day.Mandatory)
		voluntary[i] = float64(day.Voluntary)
		peak = max(peak, day.Mandatory, day.Voluntary)
	}

	// go-chart needs two x values; a single-day window is widened by one day
	if len(xValues) == 1 {
		xValues = append([]time.Time{xValues[0].AddDate(0, 0, -1)}, xValues...)
		mandatory = append([]float64{0}, mandatory...)
		voluntary = append([]float64{0}, voluntary...)
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("Ibadah %s s/d %s", summary.From, summary.To),
		Width:  1200,
		Height: 600,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    50,
				Left:   50,
				Right:  50,
				Bottom: 50,
			},
			FillColor: chart.ColorWhite,
		},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("02/01"),
			Style: chart.Style{
				FontSize:  12,
				FontColor: chart.ColorBlack,
			},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: float64(peak + 1)},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%.0f", v.(float64))
			},
			Style: chart.Style{
				FontSize:  12,
				FontColor: chart.ColorBlack,
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    model.CategoryMandatory.Label(),
				XValues: xValues,
				YValues: mandatory,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 3,
				},
			},
			chart.TimeSeries{
				Name:    model.CategoryVoluntary.Label(),
				XValues: xValues,
				YValues: voluntary,
				Style: chart.Style{
					StrokeColor: chart.ColorGreen,
					StrokeWidth: 2,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph, chart.Style{
			FontSize:  12,
			FontColor: chart.ColorBlack,
		}),
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render daily chart: %w", err)
	}
	return buffer.Bytes(), nil
}

// GenerateCategoryPieChart draws the mandatory/voluntary split.
func (g *ChartGenerator) GenerateCategoryPieChart(summary *service.Summary) ([]byte, error) {
	if summary == nil || summary.Total() == 0 {
		return nil, nil
	}

	values := make([]chart.Value, 0, 2)
	for _, part := range []struct {
		category model.Category
		count    int
	}{
		{model.CategoryMandatory, summary.Mandatory},
		{model.CategoryVoluntary, summary.Voluntary},
	} {
		if part.count == 0 {
			continue
		}
		percentage := float64(part.count) / float64(summary.Total()) * 100
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s: %d (%.0f%%)", part.category.Label(), part.count, percentage),
			Value: float64(part.count),
		})
	}

	pie := chart.PieChart{
		Width:  800,
		Height: 800,
		Values: values,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    50,
				Left:   50,
				Right:  50,
				Bottom: 50,
			},
			FillColor: chart.ColorWhite,
		},
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := pie.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render category chart: %w", err)
	}
	return buffer.Bytes(), nil
}

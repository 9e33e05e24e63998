// Package chart renders the Bitcoin price overlay for an event's time
// window. Charts are best-effort enrichment; every failure path here
// degrades to "no chart" and never blocks a notification.
package chart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/pepitohq/pepitobot/internal/config"
	"github.com/pepitohq/pepitobot/internal/store"
)

const defaultKlinesURL = "https://api.binance.com/api/v3/klines"

// Dark theme carried over from the original chart styling.
var (
	colorBackground = drawing.ColorFromHex("131722")
	colorText       = drawing.ColorFromHex("E0E3EB")
	colorUp         = drawing.ColorFromHex("26A69A")
	colorDown       = drawing.ColorFromHex("EF5350")
)

// Candle is one OHLCV bar.
type Candle struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Fetcher fetches a URL body. Satisfied by fetch.Client.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

type Generator struct {
	fetcher   Fetcher
	cfg       config.ChartsConfig
	klinesURL string
}

func NewGenerator(cfg config.ChartsConfig, fetcher Fetcher) *Generator {
	return &Generator{
		fetcher:   fetcher,
		cfg:       cfg,
		klinesURL: defaultKlinesURL,
	}
}

// timeframeFor picks a candle interval that keeps the window under the
// exchange's per-request bar limit.
func timeframeFor(window time.Duration) string {
	switch {
	case window <= 4*time.Hour:
		return "1m"
	case window <= 24*time.Hour:
		return "5m"
	case window <= 72*time.Hour:
		return "15m"
	default:
		return "1h"
	}
}

// Render produces a PNG of the BTC/USDT price between start and end. A nil
// image with nil error means the chart was intentionally skipped
// (feature flag, or negative move with negative charts disabled).
func (g *Generator) Render(ctx context.Context, start, end int64, durationLabel string, typ store.EventType) ([]byte, error) {
	if !g.cfg.ShowBTCCharts {
		return nil, nil
	}
	if end <= start {
		return nil, fmt.Errorf("empty chart window [%d, %d]", start, end)
	}

	candles, err := g.fetchCandles(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if len(candles) < 2 {
		return nil, fmt.Errorf("not enough price data for window")
	}

	startPrice := candles[0].Open
	endPrice := candles[len(candles)-1].Close
	change := priceChange(startPrice, endPrice)

	if change < 0 && !g.cfg.ShowNegativePriceCharts {
		log.Printf("[chart] skipping chart, negative move %.2f%%", change)
		return nil, nil
	}

	return g.draw(candles, change, durationLabel, typ)
}

func (g *Generator) fetchCandles(ctx context.Context, start, end int64) ([]Candle, error) {
	window := time.Duration(end-start) * time.Second

	q := url.Values{}
	q.Set("symbol", "BTCUSDT")
	q.Set("interval", timeframeFor(window))
	q.Set("startTime", strconv.FormatInt(start*1000, 10))
	q.Set("endTime", strconv.FormatInt(end*1000, 10))
	q.Set("limit", "500")

	body, err := g.fetcher.Get(ctx, g.klinesURL+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}
	return parseKlines(body)
}

// parseKlines decodes the exchange kline response: an array of arrays where
// index 0 is the open time in ms and indexes 1..4 are OHLC price strings.
func parseKlines(body []byte) ([]Candle, error) {
	var raw [][]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse klines: %w", err)
	}

	candles := make([]Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 5 {
			continue
		}
		openMs, ok := row[0].(float64)
		if !ok {
			continue
		}
		prices := make([]float64, 4)
		valid := true
		for i := 0; i < 4; i++ {
			s, ok := row[i+1].(string)
			if !ok {
				valid = false
				break
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				valid = false
				break
			}
			prices[i] = v
		}
		if !valid {
			continue
		}
		candles = append(candles, Candle{
			Time:  time.UnixMilli(int64(openMs)).UTC(),
			Open:  prices[0],
			High:  prices[1],
			Low:   prices[2],
			Close: prices[3],
		})
	}
	return candles, nil
}

func priceChange(start, end float64) float64 {
	if start == 0 {
		return 0
	}
	return (end - start) / start * 100
}

func (g *Generator) draw(candles []Candle, change float64, durationLabel string, typ store.EventType) ([]byte, error) {
	xs := make([]time.Time, len(candles))
	ys := make([]float64, len(candles))
	for i, c := range candles {
		xs[i] = c.Time
		ys[i] = c.Close
	}

	lineColor := colorUp
	if change < 0 {
		lineColor = colorDown
	}

	adventure := "Outdoor"
	if typ == store.EventIn {
		adventure = "Indoor"
	}

	graph := chart.Chart{
		Title:      fmt.Sprintf("Bitcoin %+.2f%% during Pépito's %s adventure (%s)", change, adventure, durationLabel),
		TitleStyle: chart.Style{FontColor: colorText, FontSize: 14},
		Width:      1000,
		Height:     600,
		Background: chart.Style{FillColor: colorBackground},
		Canvas:     chart.Style{FillColor: colorBackground},
		XAxis: chart.XAxis{
			Style:          chart.Style{FontColor: colorText, StrokeColor: colorText},
			ValueFormatter: chart.TimeValueFormatterWithFormat("Jan 2 15:04"),
		},
		YAxis: chart.YAxis{
			Style: chart.Style{FontColor: colorText, StrokeColor: colorText},
			ValueFormatter: func(v any) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.0f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "BTCUSDT",
				XValues: xs,
				YValues: ys,
				Style:   chart.Style{StrokeColor: lineColor, StrokeWidth: 2.0},
			},
			chart.AnnotationSeries{
				Annotations: []chart.Value2{
					{
						XValue: chart.TimeToFloat64(xs[0]),
						YValue: candles[0].Open,
						Label:  fmt.Sprintf("$%.2f", candles[0].Open),
					},
					{
						XValue: chart.TimeToFloat64(xs[len(xs)-1]),
						YValue: ys[len(ys)-1],
						Label:  fmt.Sprintf("$%.2f", ys[len(ys)-1]),
					},
				},
				Style: chart.Style{
					StrokeColor: lineColor,
					FontColor:   colorText,
					FillColor:   colorBackground,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// Caption builds the chart message body. The chart covers the segment that
// just ended, so an "out" event captions the indoor stretch before it.
func Caption(typ store.EventType, durationLabel string) string {
	adventure := "Outdoor"
	if typ == store.EventOut {
		adventure = "Indoor"
	}
	return fmt.Sprintf(
		"📊 <b>Pépito is Satoshi</b>\n\n🐾🐾🐾  🐾🐾🐾  🐾🐾🐾\n\nDuring Pépito's %s Adventure\nDuration: %s",
		adventure, durationLabel,
	)
}

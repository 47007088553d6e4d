// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command plotbench renders a throughput chart per queue
// implementation from the JSON session file written by cmd/bench.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/sugawarayuuta/sonnet"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"code.hybscloud.com/rwq/internal/bench"
)

func main() {
	jsonFile := flag.String("jsonfile", "bench-results.json", "Path to JSON file containing benchmark sessions")
	output := flag.String("out", "bench-throughput.png", "Output graph image filename")
	flag.Parse()

	data, err := os.ReadFile(*jsonFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading JSON file: %v\n", err)
		os.Exit(1)
	}

	var sessions []bench.Session
	if err := sonnet.Unmarshal(data, &sessions); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshalling JSON: %v\n", err)
		os.Exit(1)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "No sessions found in JSON.")
		os.Exit(1)
	}

	// Chart the most recent session.
	session := sessions[len(sessions)-1]

	byImpl := make(map[string]plotter.XYs)
	for _, m := range session.Benchmarks {
		byImpl[m.Implementation] = append(byImpl[m.Implementation], plotter.XY{
			X: float64(m.Iteration),
			Y: m.Throughput,
		})
	}
	impls := make([]string, 0, len(byImpl))
	for impl := range byImpl {
		impls = append(impls, impl)
	}
	sort.Strings(impls)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("SPSC throughput (%s, %s)",
		session.SystemInfo.CPUModel, session.SessionTime)
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Throughput (msgs/sec)"
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	colors := plotutil.SoftColors
	for i, impl := range impls {
		xys := byImpl[impl]
		sort.Slice(xys, func(a, b int) bool { return xys[a].X < xys[b].X })

		line, err := plotter.NewLine(xys)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error building line for %s: %v\n", impl, err)
			os.Exit(1)
		}
		line.Color = colors[i%len(colors)]

		points, err := plotter.NewScatter(xys)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error building scatter for %s: %v\n", impl, err)
			os.Exit(1)
		}
		points.GlyphStyle.Radius = vg.Points(3)
		points.Color = colors[i%len(colors)]

		p.Add(line, points)
		p.Legend.Add(impl, line, points)
	}

	if err := p.Save(12*vg.Inch, 9*vg.Inch, *output); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving graph: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *output)
}

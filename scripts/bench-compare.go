//go:build ignore

// Package main compares two `go test -bench` outputs and reports
// regressions. Names are normalized without the -N CPU suffix so
// baselines recorded on other machines still match.
// Usage: go run scripts/bench-compare.go [-threshold 0.2] current.txt baseline.txt
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	threshold  = flag.Float64("threshold", 0.20, "Regression threshold as a fraction of baseline ns/op")
	outputJSON = flag.Bool("json", false, "Output results as JSON")
	failOnSlow = flag.Bool("fail", true, "Exit with code 1 when a regression is found")
)

// benchmark is one parsed result line.
type benchmark struct {
	Name    string  `json:"name"`
	NsPerOp float64 `json:"ns_per_op"`
}

// comparison pairs a current result with its baseline.
type comparison struct {
	Name     string  `json:"name"`
	Current  float64 `json:"current_ns_per_op"`
	Baseline float64 `json:"baseline_ns_per_op,omitempty"`
	DeltaPct float64 `json:"delta_percent"`
	Verdict  string  `json:"verdict"`
}

// report is the full comparison output.
type report struct {
	Regressions  int          `json:"regressions"`
	Improvements int          `json:"improvements"`
	Unchanged    int          `json:"unchanged"`
	New          int          `json:"new"`
	Results      []comparison `json:"results"`
}

// benchLine matches "BenchmarkName-N  iterations  12345 ns/op ...".
var benchLine = regexp.MustCompile(`^(Benchmark\S+?)(?:-\d+)?\s+\d+\s+([\d.]+)\s+ns/op`)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <current.txt> <baseline.txt>\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	current, err := parseBenchFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}
	baseline, err := parseBenchFile(flag.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", flag.Arg(1), err)
		os.Exit(1)
	}

	rep := compare(current, baseline, *threshold)

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding report: %v\n", err)
			os.Exit(1)
		}
	} else {
		printReport(rep)
	}

	if *failOnSlow && rep.Regressions > 0 {
		os.Exit(1)
	}
}

// parseBenchFile reads `go test -bench` output into normalized results.
// A benchmark appearing multiple times keeps its last measurement.
func parseBenchFile(path string) (map[string]benchmark, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	results := map[string]benchmark{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := benchLine.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		ns, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		results[m[1]] = benchmark{Name: m[1], NsPerOp: ns}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no benchmark results found in %s", path)
	}
	return results, nil
}

// compare classifies every current benchmark against its baseline.
func compare(current, baseline map[string]benchmark, threshold float64) report {
	rep := report{}
	for name, cur := range current {
		base, ok := baseline[name]
		if !ok {
			rep.New++
			rep.Results = append(rep.Results, comparison{
				Name: name, Current: cur.NsPerOp, Verdict: "new",
			})
			continue
		}

		delta := (cur.NsPerOp - base.NsPerOp) / base.NsPerOp
		c := comparison{
			Name:     name,
			Current:  cur.NsPerOp,
			Baseline: base.NsPerOp,
			DeltaPct: delta * 100,
		}
		switch {
		case delta > threshold:
			c.Verdict = "regression"
			rep.Regressions++
		case delta < -threshold:
			c.Verdict = "improvement"
			rep.Improvements++
		default:
			c.Verdict = "unchanged"
			rep.Unchanged++
		}
		rep.Results = append(rep.Results, c)
	}

	sort.Slice(rep.Results, func(i, j int) bool {
		return rep.Results[i].Name < rep.Results[j].Name
	})
	return rep
}

func printReport(rep report) {
	fmt.Printf("%-48s %14s %14s %9s  %s\n", "benchmark", "current ns/op", "baseline ns/op", "delta", "verdict")
	for _, c := range rep.Results {
		if c.Verdict == "new" {
			fmt.Printf("%-48s %14.1f %14s %9s  %s\n", c.Name, c.Current, "-", "-", c.Verdict)
			continue
		}
		fmt.Printf("%-48s %14.1f %14.1f %+8.1f%%  %s\n", c.Name, c.Current, c.Baseline, c.DeltaPct, c.Verdict)
	}
	fmt.Printf("\n%d regressions, %d improvements, %d unchanged, %d new\n",
		rep.Regressions, rep.Improvements, rep.Unchanged, rep.New)
}

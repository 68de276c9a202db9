package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/catalog"
)

// LoadTestCmd is the "loadtest" subcommand.
type LoadTestCmd struct {
	URL         string        `default:"http://localhost:8080" help:"Base URL of the search service"`
	Index       string        `type:"existingfile" help:"Derive queries from the item names and signatures of this index"`
	Query       []string      `short:"q" help:"Query to send; repeatable"`
	Concurrency int           `short:"c" default:"10" help:"Concurrent workers"`
	Duration    time.Duration `short:"d" default:"30s" help:"Test duration"`
	Limit       int           `default:"10" help:"limit parameter sent with each query"`
}

type loadStats struct {
	total    atomic.Int64
	failed   atomic.Int64
	cacheHit atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	status    map[int]int64
}

func (s *loadStats) record(d time.Duration, status int, cacheHit bool, err error) {
	s.total.Add(1)
	if err != nil || status < 200 || status >= 300 {
		s.failed.Add(1)
	}
	if cacheHit {
		s.cacheHit.Add(1)
	}
	if err != nil {
		return
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.status[status]++
	s.mu.Unlock()
}

// Run executes the loadtest command.
func (c *LoadTestCmd) Run(deps *Dependencies) error {
	queries := slices.Clone(c.Query)
	if c.Index != "" {
		cat, _, err := deps.loadCatalog(c.Index)
		if err != nil {
			return err
		}
		queries = append(queries, queriesFrom(cat, 200)...)
	}
	if len(queries) == 0 {
		return fmt.Errorf("no queries: pass --query or --index")
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}

	fmt.Fprintf(deps.Stderr, "target %s, %d workers, %s, %d distinct queries\n",
		c.URL, c.Concurrency, c.Duration, len(queries))

	stats := c.run(deps.Ctx, queries)
	return report(deps.Stdout, stats, c.Duration)
}

func (c *LoadTestCmd) run(ctx context.Context, queries []string) *loadStats {
	stats := &loadStats{status: make(map[int]int64)}
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        c.Concurrency * 2,
			MaxIdleConnsPerHost: c.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(ctx, c.Duration)
	defer cancel()

	base := strings.TrimRight(c.URL, "/") + "/api/v1/search"
	var wg sync.WaitGroup
	for w := 0; w < c.Concurrency; w++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				q := queries[next%len(queries)]
				next++
				target := fmt.Sprintf("%s?q=%s&limit=%d", base, url.QueryEscape(q), c.Limit)
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					stats.record(0, 0, false, err)
					return
				}
				start := time.Now()
				resp, err := client.Do(req)
				took := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					stats.record(took, 0, false, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(took, resp.StatusCode, resp.Header.Get("X-Cache") == "HIT", nil)
			}
		}(w)
	}
	wg.Wait()
	return stats
}

// queriesFrom picks up to n queries from cat: every distinct item name plus
// the signature of each callable.
func queriesFrom(cat *catalog.Catalog, n int) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(q string) {
		if q != "" && !seen[q] && len(out) < n {
			seen[q] = true
			out = append(out, q)
		}
	}
	for _, name := range cat.Names() {
		ns, _ := cat.Namespace(name)
		for i := range ns.Items {
			it := &ns.Items[i]
			add(it.Name)
			if it.Signature != nil && len(it.Signature.Args) > 0 {
				add(signatureQuery(it.Signature.String()))
			}
		}
	}
	return out
}

// signatureQuery turns "(a, b) -> r" into the query form "a, b -> r".
func signatureQuery(sig string) string {
	args, ret, _ := strings.Cut(sig, " -> ")
	args = strings.TrimSuffix(strings.TrimPrefix(args, "("), ")")
	if ret == "" {
		return args
	}
	return args + " -> " + ret
}

func report(w io.Writer, s *loadStats, d time.Duration) error {
	total := s.total.Load()
	if total == 0 {
		return fmt.Errorf("no requests completed; is the service running?")
	}
	failed := s.failed.Load()

	s.mu.Lock()
	lat := slices.Clone(s.latencies)
	codes := make([]int, 0, len(s.status))
	for code := range s.status {
		codes = append(codes, code)
	}
	status := s.status
	s.mu.Unlock()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "requests\t%d\n", total)
	fmt.Fprintf(tw, "errors\t%d (%.2f%%)\n", failed, float64(failed)/float64(total)*100)
	fmt.Fprintf(tw, "cache hits\t%d\n", s.cacheHit.Load())
	fmt.Fprintf(tw, "throughput\t%.1f req/s\n", float64(total)/d.Seconds())

	if len(lat) > 0 {
		slices.Sort(lat)
		var sum time.Duration
		for _, l := range lat {
			sum += l
		}
		fmt.Fprintf(tw, "latency min\t%s\n", lat[0])
		fmt.Fprintf(tw, "latency avg\t%s\n", sum/time.Duration(len(lat)))
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(tw, "latency p%g\t%s\n", p, percentile(lat, p))
		}
		fmt.Fprintf(tw, "latency max\t%s\n", lat[len(lat)-1])
	}

	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(tw, "status %d\t%d\n", code, status[code])
	}
	return tw.Flush()
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}

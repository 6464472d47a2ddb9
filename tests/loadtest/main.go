package main

import (
	"bytes"
	"fmt"
	json "github.com/goccy/go-json"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultBaseURL  = "http://127.0.0.1:8090"
	numWorkers      = 20
	phaseDuration   = 10 * time.Second
	numDecks        = 50
	maxCardsPerDeck = 200
)

// onePixelPNG is a valid 1x1 image used to exercise media packing.
const onePixelPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

var httpClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	bytes    int
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	bytes     int64
	latencies []time.Duration
}

// archivePool keeps archives produced by export so import has real input.
type archivePool struct {
	mu       sync.RWMutex
	archives [][]byte
}

func (p *archivePool) add(a []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.archives) < numDecks {
		p.archives = append(p.archives, a)
	}
}

func (p *archivePool) pick(rng *rand.Rand) []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.archives) == 0 {
		return nil
	}
	return p.archives[rng.Intn(len(p.archives))]
}

func main() {
	baseURL := defaultBaseURL
	if v := os.Getenv("DECKPACK_URL"); v != "" {
		baseURL = strings.TrimRight(v, "/")
	}

	fmt.Println("=== deckpack load test ===")
	fmt.Printf("Target: %s | Workers: %d | Phase: %s\n", baseURL, numWorkers, phaseDuration)

	fmt.Print("Waiting for server... ")
	if !waitForServer(baseURL) {
		fmt.Println("FAILED: server not responding")
		os.Exit(1)
	}
	fmt.Println("OK")

	pool := &archivePool{}

	fmt.Println("\n--- Phase 1: export only (POST /export) ---")
	runPhase(phaseDuration, func(rng *rand.Rand) result {
		return doExport(baseURL, rng, pool)
	})

	fmt.Println("\n--- Phase 2: mixed load (50% export, 50% import) ---")
	runPhase(phaseDuration, func(rng *rand.Rand) result {
		if rng.Float64() < 0.5 {
			return doExport(baseURL, rng, pool)
		}
		return doImport(baseURL, rng, pool)
	})

	fmt.Println("\n--- Phase 3: repeated imports (cache warm) ---")
	runPhase(phaseDuration, func(rng *rand.Rand) result {
		return doImport(baseURL, rng, pool)
	})
}

func waitForServer(baseURL string) bool {
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(baseURL + "/health")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return true
		}
		time.Sleep(200 * time.Millisecond)
	}
	return false
}

func runPhase(duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 1024)
	var wg sync.WaitGroup
	var stopped atomic.Bool

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for !stopped.Load() {
				results <- workFn(rng)
			}
		}(time.Now().UnixNano() + int64(i))
	}

	collected := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := collected[r.endpoint]
			if !ok {
				s = &stats{}
				collected[r.endpoint] = s
			}
			s.count++
			s.bytes += int64(r.bytes)
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	stopped.Store(true)
	wg.Wait()
	close(results)
	<-done

	printResults(collected, duration)
}

func printResults(collected map[string]*stats, duration time.Duration) {
	endpoints := make([]string, 0, len(collected))
	for ep := range collected {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-14s %8s %6s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "MB", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + strings.Repeat("-", 86))

	var totalOps, totalErrors int64
	for _, ep := range endpoints {
		s := collected[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool { return s.latencies[i] < s.latencies[j] })
		fmt.Printf("  %-14s %8d %6d %10.1f %10s %10s %10s %10s\n",
			ep, s.count, s.errors, float64(s.bytes)/(1<<20),
			fmtDur(avgDuration(s.latencies)),
			fmtDur(percentile(s.latencies, 0.50)),
			fmtDur(percentile(s.latencies, 0.95)),
			fmtDur(percentile(s.latencies, 0.99)))
	}

	fmt.Println("  " + strings.Repeat("-", 86))
	if totalOps == 0 {
		fmt.Println("  no requests completed")
		return
	}
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, float64(totalOps)/duration.Seconds())
}

func randomDeck(rng *rand.Rand) map[string]interface{} {
	n := rng.Intn(maxCardsPerDeck) + 1
	cards := make([]map[string]interface{}, 0, n)
	for i := 0; i < n; i++ {
		card := map[string]interface{}{
			"front": fmt.Sprintf("question %d-%d", rng.Intn(numDecks), i),
			"back":  fmt.Sprintf("answer %d", i),
			"tags":  []string{"load", fmt.Sprintf("batch_%d", rng.Intn(10))},
		}
		switch r := rng.Float64(); {
		case r < 0.1:
			card["type"] = "inverted"
		case r < 0.2:
			card["type"] = "cloze"
			card["text"] = fmt.Sprintf("{{c1::item %d}} belongs here", i)
		case r < 0.25:
			card["images"] = []string{onePixelPNG}
		}
		cards = append(cards, card)
	}
	return map[string]interface{}{
		"deckName":   fmt.Sprintf("Load deck %d", rng.Intn(numDecks)),
		"flashcards": cards,
	}
}

func doExport(baseURL string, rng *rand.Rand, pool *archivePool) result {
	data, _ := json.Marshal(randomDeck(rng))
	start := time.Now()
	resp, err := httpClient.Post(baseURL+"/export", "application/json", bytes.NewReader(data))
	lat := time.Since(start)
	if err != nil {
		return result{endpoint: "POST /export", latency: lat, err: true}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		return result{endpoint: "POST /export", status: resp.StatusCode, latency: lat, err: true}
	}
	pool.add(body)
	return result{endpoint: "POST /export", status: resp.StatusCode, latency: lat, bytes: len(body)}
}

func doImport(baseURL string, rng *rand.Rand, pool *archivePool) result {
	archive := pool.pick(rng)
	if archive == nil {
		return doExport(baseURL, rng, pool)
	}
	start := time.Now()
	resp, err := httpClient.Post(baseURL+"/import", "application/apkg", bytes.NewReader(archive))
	lat := time.Since(start)
	if err != nil {
		return result{endpoint: "POST /import", latency: lat, err: true}
	}
	n, _ := io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{endpoint: "POST /import", status: resp.StatusCode, latency: lat, bytes: int(n), err: resp.StatusCode != http.StatusOK}
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}

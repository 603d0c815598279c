package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/punchamoorthee/nobreverify/internal/discord"
	"github.com/punchamoorthee/nobreverify/internal/domain"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	email       string
	seedHex     string
)

// Metrics
var (
	totalRequests uint64
	rejected401   uint64
	failOther     uint64

	contentMu sync.Mutex
	contents  = map[string]uint64{}
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "Interaction endpoint base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 10*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "verify", "Workload type: ping | echo | verify")
	flag.StringVar(&email, "email", "buyer@example.com", "Identity submitted by the verify workload")
	flag.StringVar(&seedHex, "seed", os.Getenv("BENCH_SIGNING_SEED"), "Hex ed25519 seed matching the server's DISCORD_PUBLIC_KEY")
}

// Fires signed interactions at a server running with a development key pair.
// The verify workload submits one identity from every worker; a correct
// server reports exactly one success.
func main() {
	flag.Parse()

	seed, err := hex.DecodeString(seedHex)
	if err != nil || len(seed) != ed25519.SeedSize {
		log.Fatalf("-seed must be %d hex-encoded bytes", ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s | Public key: %x",
		workload, concurrency, duration, priv.Public())

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, priv, i)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time, priv ed25519.PrivateKey, id int) {
	defer wg.Done()
	client := &http.Client{Timeout: 15 * time.Second}

	for time.Since(start) < duration {
		body, _ := json.Marshal(payload(id))
		ts := strconv.FormatInt(time.Now().Unix(), 10)

		req, _ := http.NewRequest("POST", targetURL+"/", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(discord.HeaderTimestamp, ts)
		req.Header.Set(discord.HeaderSignature, discord.Sign(priv, ts, body))

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusOK:
			var out domain.InteractionResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				atomic.AddUint64(&failOther, 1)
				break
			}
			key := "pong"
			if out.Data != nil {
				key = out.Data.Content
			}
			contentMu.Lock()
			contents[key]++
			contentMu.Unlock()
		case http.StatusUnauthorized:
			atomic.AddUint64(&rejected401, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func payload(worker int) domain.Interaction {
	user := &domain.User{ID: fmt.Sprintf("bench-user-%d", worker)}
	switch workload {
	case "ping":
		return domain.Interaction{Type: domain.InteractionPing}
	case "echo":
		return domain.Interaction{
			Type: domain.InteractionApplicationCommand,
			User: user,
			Data: &domain.CommandData{
				Name:    domain.CommandEcho,
				Options: []domain.CommandOption{{Name: domain.OptionEchoInput, Value: "bench"}},
			},
		}
	default:
		return domain.Interaction{
			Type: domain.InteractionApplicationCommand,
			User: user,
			Data: &domain.CommandData{
				Name:    domain.CommandVerify,
				Options: []domain.CommandOption{{Name: domain.OptionIdentity, Value: email}},
			},
		}
	}
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)

	contentMu.Lock()
	defer contentMu.Unlock()

	results := map[string]interface{}{
		"workload":       workload,
		"duration_sec":   d.Seconds(),
		"total_requests": total,
		"throughput_rps": float64(total) / d.Seconds(),
		"rejected_401":   atomic.LoadUint64(&rejected401),
		"errors":         atomic.LoadUint64(&failOther),
		"responses":      contents,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("Unable to save results: %v", err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}

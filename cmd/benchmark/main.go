// Benchmark tool for testing XAI against labeled alert data.
// Copyright (c) 2026 dB-Digital-Fox
// Licensed under the Apache License 2.0
//
// Usage:
//
//	go run cmd/benchmark/main.go -data /path/to/alerts.jsonl -url http://localhost:8080
//
// This tool:
//  1. Reads labeled alerts (JSON Lines, one {"label": ..., "alert": {...}} per line)
//  2. Sends each alert to XAI for scoring and explanation
//  3. Compares XAI's label (malicious/benign) with the ground truth
//  4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledAlert is one line of the benchmark dataset.
type LabeledAlert struct {
	Label string         `json:"label"` // "malicious" or "benign"
	Alert map[string]any `json:"alert"`
}

// ExplainRequest is the XAI API request format.
type ExplainRequest struct {
	AlertID string         `json:"alertId,omitempty"`
	Alert   map[string]any `json:"alert"`
}

// ExplainResponse is the XAI API response format.
type ExplainResponse struct {
	ExplanationID string  `json:"explanationId"`
	Source        string  `json:"source"`
	Score         float64 `json:"score"`
	Label         string  `json:"label"` // "malicious" or "benign"
	Decision      struct {
		Tag          string  `json:"tag"`
		BoostedScore float64 `json:"boostedScore"`
	} `json:"decision"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Malicious labeled malicious
	FalsePositives int64 // Benign labeled malicious
	TrueNegatives  int64 // Benign labeled benign
	FalseNegatives int64 // Malicious labeled benign (missed!)

	TotalProcessed int64
	TotalMalicious int64
	TotalBenign    int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	dataPath := flag.String("data", "", "Path to labeled alerts JSONL file")
	baseURL := flag.String("url", "http://localhost:8080", "XAI base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum alerts to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	maliciousOnly := flag.Bool("malicious-only", false, "Only test malicious alerts")
	verbose := flag.Bool("verbose", false, "Print each alert result")
	flag.Parse()

	if *dataPath == "" {
		fmt.Println("Usage: benchmark -data /path/to/alerts.jsonl [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("XAI BENCHMARK - Alert Triage Evaluation")
	fmt.Printf("\nData File:  %s\n", *dataPath)
	fmt.Printf("XAI URL:    %s\n", *baseURL)
	fmt.Printf("Tenant ID:  %s\n", *tenantID)
	fmt.Printf("Workers:    %d\n", *workers)
	fmt.Printf("Limit:      %d\n", *limit)
	fmt.Println()

	// Check XAI is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: XAI not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure XAI is running:")
		fmt.Println("  go run cmd/xai/main.go")
		os.Exit(1)
	}
	fmt.Println("XAI is healthy")

	// Read labeled alerts
	fmt.Printf("\nReading alerts from %s...\n", *dataPath)
	alerts, err := readAlerts(*dataPath, *limit, *maliciousOnly)
	if err != nil {
		fmt.Printf("ERROR: Failed to read dataset: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d alerts\n", len(alerts))

	maliciousCount := 0
	for _, a := range alerts {
		if a.Label == "malicious" {
			maliciousCount++
		}
	}
	fmt.Printf("  - Malicious: %d (%.2f%%)\n", maliciousCount, 100*float64(maliciousCount)/float64(len(alerts)))
	fmt.Printf("  - Benign:    %d (%.2f%%)\n", len(alerts)-maliciousCount, 100*float64(len(alerts)-maliciousCount)/float64(len(alerts)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(alerts, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readAlerts(path string, limit int, maliciousOnly bool) ([]LabeledAlert, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var alerts []LabeledAlert
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var item LabeledAlert
		if err := json.Unmarshal(line, &item); err != nil {
			continue // Skip malformed lines
		}
		if len(item.Alert) == 0 {
			continue
		}
		if maliciousOnly && item.Label != "malicious" {
			continue
		}

		alerts = append(alerts, item)

		if limit > 0 && len(alerts) >= limit {
			break
		}
	}

	return alerts, scanner.Err()
}

func runBenchmark(alerts []LabeledAlert, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan LabeledAlert, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for item := range work {
				start := time.Now()
				result, err := explainAlert(client, baseURL, tenantID, item)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %v\n", err)
					}
					continue
				}

				actual := item.Label == "malicious"
				if actual {
					atomic.AddInt64(&metrics.TotalMalicious, 1)
				} else {
					atomic.AddInt64(&metrics.TotalBenign, 1)
				}

				predicted := result.Label == "malicious"

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "OK "
					if predicted != actual {
						status = "MISS"
					}
					fmt.Printf("%s source: %-10s | truth: %-9s | xai: %-9s (%.2f) | tag: %s\n",
						status,
						result.Source,
						item.Label,
						result.Label,
						result.Decision.BoostedScore,
						result.Decision.Tag,
					)
				}
			}
		}()
	}

	for _, item := range alerts {
		work <- item
	}
	close(work)

	wg.Wait()

	return metrics
}

func explainAlert(client *http.Client, baseURL, tenantID string, item LabeledAlert) (*ExplainResponse, error) {
	req := ExplainRequest{Alert: item.Alert}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/explain", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ExplainResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\nBENCHMARK RESULTS")

	fmt.Printf("\nDATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Malicious:  %d\n", m.TotalMalicious)
	fmt.Printf("   Total Benign:     %d\n", m.TotalBenign)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\nCONFUSION MATRIX\n")
	fmt.Println("                          Predicted")
	fmt.Println("                    malicious    benign")
	fmt.Printf("   Actual   mal   %10d %10d  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Printf("            ben   %10d %10d  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\nDETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of malicious labels, how many were right)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of malicious alerts, how many we caught)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	fmt.Printf("\nDETECTION ANALYSIS\n")
	if m.TotalMalicious > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalMalicious) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalMalicious) * 100
		fmt.Printf("   Malicious Caught:  %d / %d (%.2f%%)\n", m.TruePositives, m.TotalMalicious, detectionRate)
		fmt.Printf("   Malicious Missed:  %d / %d (%.2f%%)\n", m.FalseNegatives, m.TotalMalicious, missRate)
	}
	if m.TotalBenign > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalBenign) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalBenign, falseAlarmRate)
	}

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		aps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f alerts/sec\n", aps)
	}

	fmt.Println()
}

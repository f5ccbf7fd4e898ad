// Batch adjudication tool for claim files.
//
// Usage:
//
//	go run cmd/batchcheck/main.go -file /path/to/claims.json
//	go run cmd/batchcheck/main.go -file /path/to/claims.json -url http://localhost:8080
//
// This tool:
//  1. Reads a JSON file of claims (an array, or {"claims": [...]})
//  2. Adjudicates them in input order, either in-process or against a
//     running server's batch endpoint
//  3. Prints the aggregate summary and, optionally, per-claim outcomes
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openclaims/gavel/internal/domain"
	"github.com/openclaims/gavel/internal/engine"
	"github.com/openclaims/gavel/internal/ledger"
	"github.com/openclaims/gavel/internal/rules"
)

func main() {
	filePath := flag.String("file", "", "Path to claims JSON file")
	baseURL := flag.String("url", "", "Gavel base URL (empty = adjudicate in-process)")
	actor := flag.String("actor", "batchcheck", "Actor ID for server requests")
	verbose := flag.Bool("verbose", false, "Print each claim outcome")
	flag.Parse()

	if *filePath == "" {
		fmt.Println("Usage: batchcheck -file /path/to/claims.json [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// The tool output is the report; keep the engine's own logging quiet.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	claims, err := readClaims(*filePath)
	if err != nil {
		fmt.Printf("ERROR: failed to read claims: %v\n", err)
		os.Exit(1)
	}
	if len(claims) == 0 {
		fmt.Println("ERROR: no claims in file")
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║               GAVEL BATCHCHECK - Claim Adjudication           ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nClaims File: %s\n", *filePath)
	if *baseURL != "" {
		fmt.Printf("Gavel URL:   %s\n", *baseURL)
	} else {
		fmt.Println("Mode:        in-process")
	}
	fmt.Printf("Claims:      %d\n", len(claims))
	fmt.Println()

	start := time.Now()

	var summary *domain.BatchSummary
	if *baseURL != "" {
		summary, err = adjudicateRemote(*baseURL, *actor, claims)
	} else {
		summary, err = adjudicateLocal(claims)
	}
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}

	printResults(summary, time.Since(start), *verbose)

	if summary.Rejected > 0 {
		os.Exit(2)
	}
}

func readClaims(path string) ([]*domain.Claim, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Accept both a bare array and a {"claims": [...]} wrapper.
	var claims []*domain.Claim
	if err := json.Unmarshal(data, &claims); err == nil {
		return claims, nil
	}

	var wrapper struct {
		Claims []*domain.Claim `json:"claims"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("file is neither a claim array nor a claims wrapper: %w", err)
	}
	return wrapper.Claims, nil
}

func adjudicateLocal(claims []*domain.Claim) (*domain.BatchSummary, error) {
	now := time.Now().UTC()
	for i, claim := range claims {
		claim.Normalize(now)
		if err := claim.Validate(now); err != nil {
			return nil, fmt.Errorf("claim %d: %w", i, err)
		}
	}

	claimRules := rules.New(domain.DefaultThresholds(), ledger.NewMemoryLedger(), slog.Default())
	eng := engine.New(claimRules, nil, slog.Default())

	return eng.ProcessBatch(context.Background(), claims), nil
}

func adjudicateRemote(baseURL, actor string, claims []*domain.Claim) (*domain.BatchSummary, error) {
	if err := checkHealth(baseURL); err != nil {
		return nil, fmt.Errorf("gavel not reachable at %s: %w", baseURL, err)
	}

	body, err := json.Marshal(map[string]any{"claims": claims})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/claims/batch", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", actor)

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error)
	}

	var summary domain.BatchSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, err
	}
	return &summary, nil
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

func printResults(s *domain.BatchSummary, duration time.Duration, verbose bool) {
	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                       BATCH RESULTS                           ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n   Total:         %d\n", s.Total)
	fmt.Printf("   Approved:      %d (%.1f%%)\n", s.Approved, pct(s.Approved, s.Total))
	fmt.Printf("   Rejected:      %d (%.1f%%)\n", s.Rejected, pct(s.Rejected, s.Total))
	fmt.Printf("   Under Review:  %d (%.1f%%)\n", s.UnderReview, pct(s.UnderReview, s.Total))
	fmt.Printf("   Pending Info:  %d (%.1f%%)\n", s.PendingInfo, pct(s.PendingInfo, s.Total))
	fmt.Printf("\n   Duration:      %v\n", duration.Round(time.Millisecond))

	if verbose {
		fmt.Println("\n   PER-CLAIM OUTCOMES")
		for _, d := range s.Details {
			marker := " "
			if d.Status == domain.StatusRejected {
				marker = "✗"
			} else if d.Status == domain.StatusApproved {
				marker = "✓"
			}
			fmt.Printf("   %s %-20s %-12s %5.1f%%  %s\n",
				marker,
				d.ClaimID,
				strings.ToUpper(string(d.Status)),
				d.Confidence*100,
				strings.Join(d.Reasons, "; "),
			)
		}
	}

	fmt.Println()
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(n) / float64(total)
}

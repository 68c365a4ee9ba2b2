// Package main runs the SDK against a live Personalia account.
//
// Usage:
//
//	PERSONALIA_API_KEY=... TEMPLATE_ID=... go run ./scripts/test-live
//
// Options (environment):
//
//	PERSONALIA_BASE_URL  API endpoint (default https://api.personalia.io)
//	SKIP_RENDER=1        skip tests that consume credits
//	VERBOSE=1            print debug logs
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/personalia-io/personalia-sdk-go/personalia"
	"github.com/personalia-io/personalia-sdk-go/personalia/cache"
	"github.com/personalia-io/personalia-sdk-go/personalia/poll"
	"github.com/personalia-io/personalia-sdk-go/personalia/schema"
	"github.com/personalia-io/personalia-sdk-go/personalia/types"
)

var (
	baseURL    = getEnv("PERSONALIA_BASE_URL", personalia.DefaultBaseURL)
	apiKey     = os.Getenv("PERSONALIA_API_KEY")
	templateID = os.Getenv("TEMPLATE_ID")
	skipRender = getEnvBool("SKIP_RENDER", false)
	verbose    = getEnvBool("VERBOSE", false)
)

type TestResult struct {
	Name    string
	Passed  bool
	Skipped bool
	Error   string
}

var (
	results   []TestResult
	resultsMu sync.Mutex
)

type Runner struct {
	name string
}

func (r *Runner) Run(name string, fn func()) {
	fullName := r.name + ": " + name
	defer func() {
		if rec := recover(); rec != nil {
			record(TestResult{Name: fullName, Error: fmt.Sprint(rec)})
			fmt.Printf("  ✗ %s\n    Error: %v\n", name, rec)
		}
	}()

	fn()
	record(TestResult{Name: fullName, Passed: true})
	fmt.Printf("  ✓ %s\n", name)
}

func (r *Runner) Skip(name, reason string) {
	record(TestResult{Name: r.name + ": " + name, Passed: true, Skipped: true})
	fmt.Printf("  - %s (skipped: %s)\n", name, reason)
}

func record(res TestResult) {
	resultsMu.Lock()
	results = append(results, res)
	resultsMu.Unlock()
}

func assertTrue(cond bool, msg string) {
	if !cond {
		panic("Assertion failed: " + msg)
	}
}

func assertNoError(err error) {
	if err != nil {
		panic(fmt.Sprintf("Unexpected error: %v", err))
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func main() {
	if apiKey == "" || templateID == "" {
		fmt.Println("PERSONALIA_API_KEY and TEMPLATE_ID are required")
		os.Exit(2)
	}

	client, err := personalia.NewClient(
		personalia.WithAPIKey(apiKey),
		personalia.WithBaseURL(baseURL),
		personalia.WithTemplateCache(cache.NewMemory(cache.DefaultTTL)),
		personalia.WithDebug(verbose),
	)
	if err != nil {
		fmt.Printf("Failed to create client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	fmt.Printf("Personalia live tests against %s\n\n", baseURL)

	var info *types.TemplateInfo
	r := &Runner{name: "templates"}
	fmt.Println("Templates")
	r.Run("fetch template info", func() {
		info, err = client.Templates().Info(ctx, templateID)
		assertNoError(err)
		assertTrue(len(info.Fields) > 0, "template has fields")
	})
	r.Run("unknown template is permanent", func() {
		_, err := client.Templates().Info(ctx, "00000000-0000-0000-0000-000000000000")
		assertTrue(personalia.IsPermanent(err), fmt.Sprintf("permanent error, got %v", err))
	})

	r = &Runner{name: "errors"}
	fmt.Println("\nErrors")
	r.Run("invalid API key is permanent", func() {
		bad, err := personalia.NewClient(personalia.WithAPIKey("invalid"), personalia.WithBaseURL(baseURL))
		assertNoError(err)
		_, err = bad.Content().Create(ctx, &types.CreateContentRequest{TemplateID: templateID, Fields: map[string]any{}})
		assertTrue(personalia.IsPermanent(err), fmt.Sprintf("permanent error, got %v", err))
	})
	r.Run("status of unknown request", func() {
		_, err := client.Content().Get(ctx, "does-not-exist")
		assertTrue(err != nil, "error for unknown request ID")
		assertTrue(strings.Contains(err.Error(), "does-not-exist"), "error names the request ID")
	})

	r = &Runner{name: "content"}
	fmt.Println("\nContent")
	if skipRender || info == nil {
		r.Skip("create and wait", "rendering disabled or template unavailable")
		r.Skip("content URL", "rendering disabled or template unavailable")
	} else {
		fields := schema.ExampleFields(info, time.Now())
		r.Run("create and wait", func() {
			content, err := client.Content().CreateAndWait(ctx, &types.CreateContentRequest{
				TemplateID: templateID,
				Fields:     fields,
				Output:     &types.Output{Format: types.FormatPDF, Quality: types.QualityDisplay},
			}, poll.WithMaxAttempts(60))
			var budget *personalia.BudgetExhaustedError
			if errors.As(err, &budget) {
				panic(fmt.Sprintf("still rendering after %d attempts: %s", budget.Attempts, budget.JobHandle))
			}
			assertNoError(err)
			assertTrue(content.Status == types.StatusCompleted, "status Completed")
			assertTrue(len(content.URLs) > 0 || content.Content != "", "content returned")
		})
		r.Run("content URL", func() {
			u, err := personalia.ContentURL(ctx, client, templateID, fields,
				&types.Output{Format: types.FormatPNG, Quality: types.QualityDisplay})
			assertNoError(err)
			assertTrue(strings.HasPrefix(u, "http"), "URL returned")
		})
	}

	passed, failed, skipped := 0, 0, 0
	for _, res := range results {
		switch {
		case res.Skipped:
			skipped++
		case res.Passed:
			passed++
		default:
			failed++
		}
	}
	fmt.Printf("\n%d passed, %d failed, %d skipped\n", passed, failed, skipped)
	if failed > 0 {
		for _, res := range results {
			if !res.Passed {
				fmt.Printf("  %s: %s\n", res.Name, res.Error)
			}
		}
		os.Exit(1)
	}
}

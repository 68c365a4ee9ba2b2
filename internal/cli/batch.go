package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"

	"github.com/personalia-io/personalia-sdk-go/personalia"
	"github.com/personalia-io/personalia-sdk-go/personalia/metrics"
	"github.com/personalia-io/personalia-sdk-go/personalia/types"
)

// BatchFile lists content requests to generate together.
type BatchFile struct {
	Defaults BatchJob   `yaml:"defaults"`
	Jobs     []BatchJob `yaml:"jobs"`
}

// BatchJob is one entry of a batch file. Empty values fall back to the
// file's defaults.
type BatchJob struct {
	Name     string         `yaml:"name"`
	Template string         `yaml:"template"`
	Fields   map[string]any `yaml:"fields"`
	Output   *BatchOutput   `yaml:"output"`
}

type BatchOutput struct {
	Format       string `yaml:"format"`
	Quality      string `yaml:"quality"`
	Resolution   int    `yaml:"resolution"`
	Package      *bool  `yaml:"package"`
	StrictPolicy *bool  `yaml:"strict_policy"`
}

// LoadBatch reads and checks a batch file.
func LoadBatch(path string) (*BatchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	var bf BatchFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &bf); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	if len(bf.Jobs) == 0 {
		return nil, fmt.Errorf("batch file %s has no jobs", path)
	}
	for i := range bf.Jobs {
		j := &bf.Jobs[i]
		if j.Name == "" {
			j.Name = fmt.Sprintf("job-%d", i+1)
		}
		if j.Template == "" {
			j.Template = bf.Defaults.Template
		}
		if j.Template == "" {
			return nil, fmt.Errorf("%s: template is required", j.Name)
		}
		if j.Output == nil {
			j.Output = bf.Defaults.Output
		}
		if len(bf.Defaults.Fields) > 0 {
			merged := make(map[string]any, len(bf.Defaults.Fields)+len(j.Fields))
			for k, v := range bf.Defaults.Fields {
				merged[k] = v
			}
			for k, v := range j.Fields {
				merged[k] = v
			}
			j.Fields = merged
		}
	}
	return &bf, nil
}

// Request converts the job into an API request.
func (j BatchJob) Request() *types.CreateContentRequest {
	req := &types.CreateContentRequest{TemplateID: j.Template, Fields: j.Fields}
	if j.Output != nil {
		req.Output = &types.Output{
			Format:       types.OutputFormat(j.Output.Format),
			Quality:      types.OutputQuality(j.Output.Quality),
			Resolution:   j.Output.Resolution,
			Package:      j.Output.Package,
			StrictPolicy: j.Output.StrictPolicy,
		}
	}
	return req
}

// BatchResult is the outcome of one batch job.
type BatchResult struct {
	Name        string
	TemplateID  string
	RequestID   string
	Result      string
	URLs        []string
	Error       string
	Disposition string
	Elapsed     time.Duration
}

// Batch result values.
const (
	ResultCompleted = "completed"
	ResultFailed    = "failed"
	ResultPending   = "pending"
)

// RunBatch generates every job with at most concurrency in flight. Job
// failures are recorded in the results; the returned error is only set
// when ctx is cancelled.
func RunBatch(ctx context.Context, client *personalia.Client, jobs []BatchJob, concurrency int, logger *slog.Logger) ([]BatchResult, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]BatchResult, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	done := 0

	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = BatchResult{
					Name:       job.Name,
					TemplateID: job.Template,
					Result:     ResultPending,
					Error:      "not submitted: " + err.Error(),
				}
				return err
			}
			start := time.Now()
			content, err := client.Content().CreateAndWait(ctx, job.Request())

			res := BatchResult{
				Name:       job.Name,
				TemplateID: job.Template,
				Elapsed:    time.Since(start),
			}
			switch {
			case err == nil:
				res.Result = ResultCompleted
				res.RequestID = content.RequestID
				res.URLs = content.URLs
			case personalia.IsBudgetExhausted(err):
				res.Result = ResultPending
				res.RequestID = personalia.JobHandleOf(err)
				res.Error = err.Error()
			default:
				res.Result = ResultFailed
				res.RequestID = personalia.JobHandleOf(err)
				res.Error = err.Error()
				res.Disposition = disposition(err)
			}
			results[i] = res

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			logger.Info("batch job finished", "job", job.Name, "result", res.Result, "request_id", res.RequestID,
				"elapsed", res.Elapsed.Round(time.Millisecond), "progress", fmt.Sprintf("%d/%d", n, len(jobs)))

			if errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

func disposition(err error) string {
	switch {
	case personalia.IsPermanent(err):
		return "permanent"
	case personalia.IsRetryable(err):
		return "retryable"
	}
	return ""
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		concurrency int
		reportPath  string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "batch <jobs.yaml>",
		Short: "Generate many documents from a YAML job file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bf, err := LoadBatch(args[0])
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			obs := metrics.New(reg)

			addr := metricsAddr
			if addr == "" {
				addr = a.cfg.Metrics.Addr
			}
			if addr != "" {
				srv := &http.Server{Addr: addr, Handler: metricsMux(reg)}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error("metrics server failed", "error", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				a.logger.Info("serving metrics", "addr", addr)
			}

			breaker := personalia.DefaultCircuitBreakerConfig()
			breaker.OnStateChange = obs.OnCircuitStateChange
			client, err := a.client(cmd.Context(),
				personalia.WithPollObserver(obs),
				personalia.WithCircuitBreaker(breaker),
			)
			if err != nil {
				return err
			}
			defer client.Close()

			a.logger.Info("starting batch", "jobs", len(bf.Jobs), "concurrency", concurrency)
			results, runErr := RunBatch(cmd.Context(), client, bf.Jobs, concurrency, a.logger)

			if reportPath != "" {
				if err := WriteReport(reportPath, results); err != nil {
					return err
				}
				a.logger.Info("report written", "path", reportPath)
			}
			printSummary(cmd.OutOrStdout(), results)

			if runErr != nil {
				return runErr
			}
			if failed := countResult(results, ResultFailed) + countResult(results, ResultPending); failed > 0 {
				return fmt.Errorf("%d of %d jobs did not complete", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "jobs processed at the same time")
	cmd.Flags().StringVar(&reportPath, "report", "", "write an XLSX report to this path")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	return cmd
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

func countResult(results []BatchResult, result string) int {
	n := 0
	for _, r := range results {
		if r.Result == result {
			n++
		}
	}
	return n
}

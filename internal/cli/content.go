package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/personalia-io/personalia-sdk-go/personalia"
	"github.com/personalia-io/personalia-sdk-go/personalia/poll"
	"github.com/personalia-io/personalia-sdk-go/personalia/types"
)

// requestFlags are shared by create and url.
type requestFlags struct {
	templateID   string
	fields       []string
	format       string
	quality      string
	resolution   int
	strict       bool
	pkg          bool
	validate     bool
	jsonOutput   bool
	maxAttempts  int
	pollInterval time.Duration
}

func (f *requestFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.templateID, "template", "t", "", "template ID")
	flags.StringArrayVarP(&f.fields, "field", "f", nil, "field value as Name=Value (repeatable)")
	flags.StringVar(&f.format, "format", "", "output format: PDF, JPG or PNG")
	flags.StringVar(&f.quality, "quality", "", "output quality: Display or Print")
	flags.IntVar(&f.resolution, "resolution", 0, "output resolution in DPI")
	flags.BoolVar(&f.strict, "strict", false, "fail on rule violations instead of rendering")
	flags.BoolVar(&f.pkg, "package", false, "package multiple outputs into one archive")
	flags.BoolVar(&f.validate, "validate", false, "check fields against the template before sending")
	flags.BoolVar(&f.jsonOutput, "json", false, "print the API response as JSON")
	_ = cmd.MarkFlagRequired("template")
}

func (f *requestFlags) registerPoll(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.maxAttempts, "max-attempts", 0, "status checks before giving up (default from config)")
	cmd.Flags().DurationVar(&f.pollInterval, "interval", 0, "wait between status checks (default from config)")
}

func (f *requestFlags) pollOptions() []poll.Option {
	var opts []poll.Option
	if f.maxAttempts > 0 {
		opts = append(opts, poll.WithMaxAttempts(f.maxAttempts))
	}
	if f.pollInterval > 0 {
		opts = append(opts, poll.WithInterval(f.pollInterval))
	}
	return opts
}

func (f *requestFlags) request(cmd *cobra.Command) (*types.CreateContentRequest, error) {
	fields, err := parseFields(f.fields)
	if err != nil {
		return nil, err
	}
	req := &types.CreateContentRequest{TemplateID: f.templateID, Fields: fields}

	flags := cmd.Flags()
	if f.format != "" || f.quality != "" || f.resolution != 0 || flags.Changed("strict") || flags.Changed("package") {
		out := &types.Output{
			Format:     types.OutputFormat(strings.ToUpper(f.format)),
			Quality:    types.OutputQuality(titleCase(f.quality)),
			Resolution: f.resolution,
		}
		if flags.Changed("strict") {
			out.StrictPolicy = types.Bool(f.strict)
		}
		if flags.Changed("package") {
			out.Package = types.Bool(f.pkg)
		}
		req.Output = out
	}
	return req, nil
}

// parseFields turns Name=Value pairs into a Fields map. Values stay
// strings; the API parses numbers, dates and booleans from text.
func parseFields(pairs []string) (map[string]any, error) {
	fields := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q, want Name=Value", p)
		}
		fields[name] = value
	}
	return fields, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func newContentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Create and retrieve personalized content",
	}
	cmd.AddCommand(
		newContentCreateCmd(a),
		newContentGetCmd(a),
		newContentWaitCmd(a),
		newContentURLCmd(a),
	)
	return cmd
}

func newContentCreateCmd(a *app) *cobra.Command {
	f := &requestFlags{}
	var wait bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a content request",
		Example: `  personalia content create -t 0ab2e03f-c183-4cdf-bb2c-3bc6c316b80e \
    -f FirstName=Ada -f Amount=100 --format PDF --quality Print --wait`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(cmd)
			if err != nil {
				return err
			}
			client, err := a.client(cmd.Context(), personalia.WithFieldValidation(f.validate))
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			if !wait {
				resp, err := client.Content().Create(cmd.Context(), req)
				if err != nil {
					return err
				}
				if f.jsonOutput {
					return writeJSON(out, resp)
				}
				fmt.Fprintf(out, "Request ID: %s\n", resp.RequestID)
				return nil
			}

			content, err := client.Content().CreateAndWait(cmd.Context(), req, f.pollOptions()...)
			if err != nil {
				return describe(err)
			}
			return printContent(out, content, f.jsonOutput)
		},
	}
	f.register(cmd)
	f.registerPoll(cmd)
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait for the content to be ready")
	return cmd
}

func newContentGetCmd(a *app) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "get <request-id>",
		Short: "Show the current state of a content request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			content, err := client.Content().Get(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}
			return printContent(cmd.OutOrStdout(), content, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the API response as JSON")
	return cmd
}

func newContentWaitCmd(a *app) *cobra.Command {
	f := &requestFlags{}
	cmd := &cobra.Command{
		Use:   "wait <request-id>",
		Short: "Poll a content request until it is ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			content, err := client.Wait(cmd.Context(), args[0], f.pollOptions()...)
			if err != nil {
				return describe(err)
			}
			return printContent(cmd.OutOrStdout(), content, f.jsonOutput)
		},
	}
	f.registerPoll(cmd)
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "print the API response as JSON")
	return cmd
}

func newContentURLCmd(a *app) *cobra.Command {
	f := &requestFlags{}
	cmd := &cobra.Command{
		Use:   "url",
		Short: "Create an on-demand rendering URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(cmd)
			if err != nil {
				return err
			}
			client, err := a.client(cmd.Context(), personalia.WithFieldValidation(f.validate))
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Content().CreateURL(cmd.Context(), req)
			if err != nil {
				return describe(err)
			}
			if f.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.URL)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func printContent(w io.Writer, c *types.Content, asJSON bool) error {
	if asJSON {
		return writeJSON(w, c)
	}
	fmt.Fprintf(w, "Request ID: %s\n", c.RequestID)
	fmt.Fprintf(w, "Status:     %s\n", c.Status)
	for _, u := range c.URLs {
		fmt.Fprintf(w, "URL:        %s\n", u)
	}
	if c.Content != "" {
		fmt.Fprintf(w, "Content:    %d bytes (%s)\n", len(c.Content), c.ContentType)
	}
	if c.FailureDescription != "" {
		fmt.Fprintf(w, "Failure:    %s\n", c.FailureDescription)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describe adds a hint about what to do next to SDK errors.
func describe(err error) error {
	switch {
	case personalia.IsBudgetExhausted(err):
		return fmt.Errorf("%w\nhint: run 'personalia content wait %s' to keep waiting", err, personalia.JobHandleOf(err))
	case personalia.IsPermanent(err):
		return fmt.Errorf("%w\nhint: retrying will not help; fix the request first", err)
	}
	return err
}

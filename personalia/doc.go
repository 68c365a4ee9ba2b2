// Package personalia provides a Go SDK for the Personalia content
// personalization API.
//
// Personalia renders documents and images from templates. A request is
// submitted with field values, processed asynchronously, and its result is
// fetched by request ID. The SDK handles the polling and turns the
// provider's numeric error ids into errors that say whether retrying can
// help and what to fix.
//
// # Basic Usage
//
//	client, err := personalia.NewClient(
//		personalia.WithAPIKey(os.Getenv("PERSONALIA_API_KEY")),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	content, err := client.Content().CreateAndWait(ctx, &types.CreateContentRequest{
//		TemplateID: "0ab2e03f-c183-4cdf-bb2c-3bc6c316b80e",
//		Fields:     map[string]any{"FirstName": "Ada"},
//		Output:     &types.Output{Format: types.FormatPDF, Quality: types.QualityPrint},
//	})
//
// # Polling
//
// CreateAndWait and Wait check the request status every Interval until it
// completes, fails, or MaxAttempts checks have reported it still working.
// Defaults are 30 attempts 2 seconds apart; change them per client with
// WithPolling or per call with poll.WithMaxAttempts and poll.WithInterval.
// A 404 while polling means the request is not indexed yet and is retried.
//
// # Error Handling
//
// Every error returned after submission names the request ID:
//
//	content, err := client.Content().CreateAndWait(ctx, req)
//	switch {
//	case err == nil:
//	case personalia.IsBudgetExhausted(err):
//		log.Printf("still running, fetch %s later", personalia.JobHandleOf(err))
//	case personalia.IsPermanent(err):
//		// fix the request; the message carries the remediation
//	default:
//		// transient; safe to retry
//	}
//
// Classified errors and budget errors implement GRPCStatus, so services
// that wrap the SDK can return them from gRPC handlers unchanged.
package personalia

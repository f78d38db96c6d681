package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	articleDomain "github.com/memorylib/integrator/internal/article/domain"
	articleUseCase "github.com/memorylib/integrator/internal/article/usecase"
)

// RunIntegrate performs a single integration for the given document id and
// prints the result. Intended for operational replays of a delivery without
// going through the subscription. Supports both text/JSON output formats.
//
// Returns an error only for the failed outcome, so scripts can retry on a
// non-zero exit. Rejected instructions are a definitive answer and exit zero.
func RunIntegrate(
	ctx context.Context,
	integrationUseCase articleUseCase.IntegrationUseCase,
	logger *slog.Logger,
	writer io.Writer,
	rawID string,
	format string,
) error {
	logger.Info("integrating document", slog.String("document_id", rawID))

	result := integrationUseCase.Integrate(ctx, rawID)

	// Output result based on format
	if format == "json" {
		outputIntegrateJSON(writer, rawID, result)
	} else {
		outputIntegrateText(writer, rawID, result)
	}

	logger.Info("integration finished",
		slog.String("document_id", rawID),
		slog.String("outcome", result.Outcome.String()),
		slog.Int("attempts", result.Attempts),
	)

	if result.Outcome == articleDomain.OutcomeFailed {
		return fmt.Errorf("integration failed: %w", result.Err)
	}

	return nil
}

// outputIntegrateText outputs the result in human-readable text format.
func outputIntegrateText(writer io.Writer, rawID string, result *articleDomain.IntegrationResult) {
	switch result.Outcome {
	case articleDomain.OutcomeMoved:
		fmt.Fprintf(writer, "Document %q archived after %d attempt(s)\n", rawID, result.Attempts)
	case articleDomain.OutcomeAlreadyMoved:
		fmt.Fprintf(writer, "Document %q is already archived\n", rawID)
	case articleDomain.OutcomeRejected:
		fmt.Fprintf(writer, "Document %q rejected: %s\n", rawID, result.Reason())
	case articleDomain.OutcomeFailed:
		fmt.Fprintf(writer, "Document %q failed after %d attempt(s): %s\n", rawID, result.Attempts, result.Reason())
	}
}

// outputIntegrateJSON outputs the result in JSON format for machine consumption.
func outputIntegrateJSON(writer io.Writer, rawID string, result *articleDomain.IntegrationResult) {
	payload := map[string]interface{}{
		"document_id": rawID,
		"outcome":     result.Outcome.String(),
		"attempts":    result.Attempts,
	}
	if reason := result.Reason(); reason != "" {
		payload["reason"] = reason
	}

	jsonBytes, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Fprintln(writer, string(jsonBytes))
}

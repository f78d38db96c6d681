package dto

import (
	articleDomain "github.com/memorylib/integrator/internal/article/domain"
)

// IntegrationResponse reports how an integration request ended.
type IntegrationResponse struct {
	DocumentID string `json:"document_id,omitempty"`
	Outcome    string `json:"outcome"`
	Attempts   int    `json:"attempts,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// MapResultToResponse converts a domain integration result to an API response.
func MapResultToResponse(result *articleDomain.IntegrationResult) IntegrationResponse {
	return IntegrationResponse{
		DocumentID: result.DocumentID.String(),
		Outcome:    result.Outcome.String(),
		Attempts:   result.Attempts,
		Reason:     result.Reason(),
	}
}

// StatusResponse reports how many articles sit in each store.
type StatusResponse struct {
	Staged   int64 `json:"staged"`
	Archived int64 `json:"archived"`
}

// MapSnapshotToResponse converts a domain status snapshot to an API response.
func MapSnapshotToResponse(snapshot *articleDomain.StatusSnapshot) StatusResponse {
	return StatusResponse{
		Staged:   snapshot.Staged,
		Archived: snapshot.Archived,
	}
}

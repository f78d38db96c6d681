// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/memorylib/integrator/internal/validation"
)

// PushMessage is the message section of a push delivery envelope. Data
// carries the base64-encoded document id.
type PushMessage struct {
	Data      string `json:"data"`
	MessageID string `json:"messageId"`
}

// PushRequest is the envelope a push subscription posts for each delivery.
type PushRequest struct {
	Message      PushMessage `json:"message"`
	Subscription string      `json:"subscription"`
}

// Validate checks if the push envelope carries decodable message data.
func (r *PushRequest) Validate() error {
	if err := validation.Validate(r.Message.Data,
		validation.Required,
		customValidation.Base64,
	); err != nil {
		return validation.Errors{"message.data": err}
	}
	return nil
}

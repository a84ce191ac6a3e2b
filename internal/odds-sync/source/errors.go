// Package source implementa as fontes do carregamento inicial (bulk):
// o HTTP do fornecedor e a réplica Postgres.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

// Kind é a categoria de falha exposta ao usuário
type Kind string

const (
	KindNetwork         Kind = "network"
	KindDecoding        Kind = "decoding"
	KindInvalidResponse Kind = "invalid_response"
	KindTimeout         Kind = "timeout"
)

// APIError carrega a categoria e o erro original (que nunca chega à UI)
type APIError struct {
	Kind   Kind
	Status int // status HTTP quando Kind == KindInvalidResponse
	Err    error
}

func (e *APIError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// UserMessage devolve o texto estável, legível, de cada categoria
func (e *APIError) UserMessage() string {
	switch e.Kind {
	case KindNetwork:
		return "Unable to reach the server. Check your connection and try again."
	case KindDecoding:
		return "Received data in an unexpected format."
	case KindInvalidResponse:
		return "The server returned an invalid response."
	case KindTimeout:
		return "The request timed out. Please try again."
	default:
		return "Something went wrong."
	}
}

// Classify converte qualquer erro em *APIError. Erros já classificados passam direto.
func Classify(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{Kind: KindTimeout, Err: err}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &APIError{Kind: KindDecoding, Err: err}
	}

	return &APIError{Kind: KindNetwork, Err: err}
}

// UserMessage é um atalho para Classify(err).UserMessage() ("" para nil)
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return Classify(err).UserMessage()
}

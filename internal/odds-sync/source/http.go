package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

// Rotas do fornecedor para o carregamento inicial
const (
	PathMatches = "/v1/supplier/matches"
	PathOdds    = "/v1/supplier/odds"
)

// HTTP busca partidas e odds no endpoint REST do fornecedor
type HTTP struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTP cria o cliente com timeout por requisição
func NewHTTP(base string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		BaseURL: strings.TrimRight(base, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// FetchMatches retorna todas as partidas
func (c *HTTP) FetchMatches(ctx context.Context) ([]events.Match, error) {
	var out []events.Match
	if err := c.getJSON(ctx, PathMatches, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchOdds retorna as odds atuais de todas as partidas
func (c *HTTP) FetchOdds(ctx context.Context) ([]events.Odds, error) {
	var out []events.Odds
	if err := c.getJSON(ctx, PathOdds, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTP) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return &APIError{Kind: KindNetwork, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return Classify(err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, res.Body)
		return &APIError{
			Kind:   KindInvalidResponse,
			Status: res.StatusCode,
			Err:    fmt.Errorf("GET %s http %d", path, res.StatusCode),
		}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return &APIError{Kind: KindDecoding, Err: err}
		}
		return Classify(err)
	}
	return nil
}

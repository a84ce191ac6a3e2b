package reconnect

import (
	"math"
	"time"
)

// Config define a política de backoff exponencial da reconexão
type Config struct {
	InitialDelay time.Duration // atraso antes da primeira tentativa
	Multiplier   float64       // fator aplicado a cada falha
	MaxDelay     time.Duration // teto do atraso
	MaxAttempts  int           // 0 = ilimitado

	// AttemptTimeout limita cada tentativa de reconexão (0 = sem limite)
	AttemptTimeout time.Duration
	// CountdownTick é o intervalo de republicação do nextRetryIn (0 = sem contagem)
	CountdownTick time.Duration
}

// DefaultConfig: 1s, x2, teto de 30s, tentativas ilimitadas
func DefaultConfig() Config {
	return Config{
		InitialDelay:   time.Second,
		Multiplier:     2,
		MaxDelay:       30 * time.Second,
		MaxAttempts:    0,
		AttemptTimeout: 10 * time.Second,
		CountdownTick:  time.Second,
	}
}

// TestingConfig usa atrasos curtos para testes e demos
func TestingConfig() Config {
	return Config{
		InitialDelay:   100 * time.Millisecond,
		Multiplier:     2,
		MaxDelay:       500 * time.Millisecond,
		MaxAttempts:    5,
		AttemptTimeout: time.Second,
		CountdownTick:  100 * time.Millisecond,
	}
}

// Delay calcula min(InitialDelay * Multiplier^attempt, MaxDelay)
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))
	if c.MaxDelay > 0 && (math.IsInf(d, 1) || math.IsNaN(d) || d > float64(c.MaxDelay)) {
		return c.MaxDelay
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

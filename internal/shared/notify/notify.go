// Package notify implementa um fan-out publish/subscribe que preserva a ordem
// de publicação por assinante. Publish nunca bloqueia: cada assinante tem uma
// fila própria drenada por uma goroutine.
package notify

import "sync"

// Hub distribui valores do tipo T para todos os assinantes
type Hub[T any] struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscriber[T]
	next   uint64
	closed bool
}

type subscriber[T any] struct {
	mu     sync.Mutex
	queue  []T
	signal chan struct{}
	out    chan T
	done   chan struct{}
	finish chan struct{}
	once   sync.Once
	fonce  sync.Once
}

// New cria um hub vazio
func New[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[uint64]*subscriber[T])}
}

// Subscribe registra um assinante. O canal é fechado após o cancelamento
// (ou Close do hub); o cancel é idempotente.
func (h *Hub[T]) Subscribe() (<-chan T, func()) {
	s := &subscriber[T]{
		signal: make(chan struct{}, 1),
		out:    make(chan T),
		done:   make(chan struct{}),
		finish: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.out)
		return s.out, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = s
	h.mu.Unlock()

	go s.pump()

	return s.out, func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		s.stop()
	}
}

// Publish enfileira v para todos os assinantes atuais
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		s.push(v)
	}
}

// Len devolve o número de assinantes ativos
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close cancela todos os assinantes; novos Subscribe recebem canal fechado
func (h *Hub[T]) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*subscriber[T])
	h.closed = true
	h.mu.Unlock()
	for _, s := range subs {
		s.stop()
	}
}

// Drain fecha o hub como Close, mas cada assinante ainda recebe o que já
// estava enfileirado antes do canal fechar. Cancelar a assinatura interrompe a entrega.
func (h *Hub[T]) Drain() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*subscriber[T])
	h.closed = true
	h.mu.Unlock()
	for _, s := range subs {
		s.fonce.Do(func() { close(s.finish) })
	}
}

func (s *subscriber[T]) push(v T) {
	s.mu.Lock()
	s.queue = append(s.queue, v)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber[T]) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber[T]) pump() {
	defer close(s.out)
	for {
		last := false
		select {
		case <-s.done:
			return
		case <-s.signal:
		case <-s.finish:
			last = true
		}

		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, v := range batch {
			select {
			case s.out <- v:
			case <-s.done:
				return
			}
		}
		if last {
			return
		}
	}
}

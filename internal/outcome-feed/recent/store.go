package recent

import (
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/radieske/crylot/pkg/contracts/events"
)

// Store mantém os últimos resultados em memória (LRU por requestId), para
// clientes que conectam depois da resolução
type Store struct {
	c *lru.Cache
}

func New(size int) (*Store, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "recent outcomes cache")
	}
	return &Store{c: c}, nil
}

func (s *Store) Record(ev events.BetResolved) { s.c.Add(ev.RequestID, ev) }

func (s *Store) Get(requestID string) (events.BetResolved, bool) {
	v, ok := s.c.Get(requestID)
	if !ok {
		return events.BetResolved{}, false
	}
	return v.(events.BetResolved), true
}

// Latest retorna até n resultados, do mais novo para o mais antigo.
// player vazio não filtra.
func (s *Store) Latest(n int, player string) []events.BetResolved {
	keys := s.c.Keys() // do mais antigo para o mais novo
	out := make([]events.BetResolved, 0, n)
	for i := len(keys) - 1; i >= 0 && len(out) < n; i-- {
		v, ok := s.c.Peek(keys[i])
		if !ok {
			continue
		}
		ev := v.(events.BetResolved)
		if player != "" && !strings.EqualFold(ev.Player, player) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (s *Store) Len() int { return s.c.Len() }

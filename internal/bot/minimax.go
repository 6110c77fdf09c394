package bot

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync/atomic"

	"ctchen222/nxn-tic-tac-toe/internal/game"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

const (
	scoreInf = math.MaxInt32

	// ctx is polled once every cancelCheckInterval positions.
	cancelCheckInterval = 1 << 12
)

type ttFlag uint8

const (
	ttExact ttFlag = iota
	ttLower
	ttUpper
)

type ttEntry struct {
	score int
	flag  ttFlag
}

// centralOrders lists cell indices nearest-to-center first, ties by index.
var centralOrders = func() map[int][]int {
	orders := make(map[int][]int, game.MaxSize-game.MinSize+1)
	for n := game.MinSize; n <= game.MaxSize; n++ {
		order := make([]int, n*n)
		for i := range order {
			order[i] = i
		}
		dist := func(i int) int {
			dr, dc := 2*(i/n)-(n-1), 2*(i%n)-(n-1)
			return dr*dr + dc*dc
		}
		sort.SliceStable(order, func(a, b int) bool { return dist(order[a]) < dist(order[b]) })
		orders[n] = order
	}
	return orders
}()

// search is the working state of one minimax run. Marks are placed and removed
// on a single buffer; every placement is undone before its caller continues.
type search struct {
	ctx      context.Context
	board    *game.Board
	ai       game.PlayerMark
	winBase  int
	maxDepth int
	order    []int
	filled   int
	key      uint64
	pow3     []uint64
	table    map[uint64]ttEntry
	nodes    int64
	err      error
}

func newSearch(ctx context.Context, b *game.Board, ai game.PlayerMark, maxDepth int) *search {
	s := &search{
		ctx:      ctx,
		board:    b.Clone(),
		ai:       ai,
		// The classic 3x3 scoring is 10-depth. size²+1 equals 10 there and keeps
		// every win positive on 4x4 and 5x5, where 10-depth would go negative.
		winBase:  len(b.Cells) + 1,
		maxDepth: maxDepth,
		order:    centralOrders[b.Size],
		pow3:     make([]uint64, len(b.Cells)),
		table:    make(map[uint64]ttEntry),
	}
	p := uint64(1)
	for i, c := range s.board.Cells {
		s.pow3[i] = p
		p *= 3
		if c != game.None {
			s.filled++
			s.key += digit(c) * s.pow3[i]
		}
	}
	return s
}

// digit is the base-3 value of a mark in the position key.
func digit(m game.PlayerMark) uint64 {
	if m == game.PlayerX {
		return 1
	}
	return 2
}

func (s *search) place(i int, m game.PlayerMark) {
	s.board.Cells[i] = m
	s.key += digit(m) * s.pow3[i]
	s.filled++
}

func (s *search) undo(i int, m game.PlayerMark) {
	s.board.Cells[i] = game.None
	s.key -= digit(m) * s.pow3[i]
	s.filled--
}

// child plays mark at i, scores the resulting position and restores the buffer.
func (s *search) child(depth, i int, m game.PlayerMark, alpha, beta int) int {
	s.place(i, m)
	defer s.undo(i, m)
	return s.minimax(depth, i, m, alpha, beta)
}

// minimax scores the position reached by mover playing last. A win for the
// automated side scores winBase-depth, a loss depth-winBase, a draw 0.
func (s *search) minimax(depth, last int, mover game.PlayerMark, alpha, beta int) int {
	s.nodes++
	if s.nodes%cancelCheckInterval == 0 && s.err == nil {
		s.err = s.ctx.Err()
	}
	if s.err != nil {
		return 0
	}

	// The parent position was not terminal, so only a line through last can be new.
	if game.CompletesLine(s.board, last, mover) {
		if mover == s.ai {
			return s.winBase - depth
		}
		return depth - s.winBase
	}
	if s.filled == len(s.board.Cells) {
		return 0
	}
	if s.maxDepth > 0 && depth >= s.maxDepth {
		return 0
	}

	alphaOrig, betaOrig := alpha, beta
	if e, ok := s.table[s.key]; ok {
		switch e.flag {
		case ttExact:
			return e.score
		case ttLower:
			alpha = max(alpha, e.score)
		case ttUpper:
			beta = min(beta, e.score)
		}
		if alpha >= beta {
			return e.score
		}
	}

	next := game.Opponent(mover)
	maximizing := next == s.ai
	best := scoreInf
	if maximizing {
		best = -scoreInf
	}

	for _, i := range s.order {
		if s.board.Cells[i] != game.None {
			continue
		}
		score := s.child(depth+1, i, next, alpha, beta)
		if maximizing {
			best = max(best, score)
			alpha = max(alpha, best)
		} else {
			best = min(best, score)
			beta = min(beta, best)
		}
		if alpha >= beta {
			break
		}
	}
	if s.err != nil {
		return 0
	}

	flag := ttExact
	if best <= alphaOrig {
		flag = ttUpper
	} else if best >= betaOrig {
		flag = ttLower
	}
	s.table[s.key] = ttEntry{score: best, flag: flag}
	return best
}

// hardMove returns the candidate with the highest minimax score, lowest index on ties.
func (s *Searcher) hardMove(ctx context.Context, board *game.Board, ai game.PlayerMark) (int, error) {
	empty := board.EmptyCells()
	maxDepth := s.depthLimits[board.Size]

	var nodes atomic.Int64
	defer func() {
		if s.searchNodes != nil {
			s.searchNodes.Record(ctx, nodes.Load(), metric.WithAttributes(attribute.Int("board.size", board.Size)))
		}
		slog.DebugContext(ctx, "Hard search finished", "bot.mark", ai, "board.size", board.Size, "search.nodes", nodes.Load(), "search.max_depth", maxDepth)
	}()

	if s.parallelism <= 1 || len(empty) < 2 {
		sr := newSearch(ctx, board, ai, maxDepth)
		best, bestScore := -1, -scoreInf
		for _, i := range empty {
			// Candidates that cannot beat bestScore come back as upper bounds, which keeps
			// the first-found index on ties.
			score := sr.child(0, i, ai, bestScore, scoreInf)
			if sr.err != nil {
				nodes.Store(sr.nodes)
				return -1, sr.err
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		nodes.Store(sr.nodes)
		return best, nil
	}

	scores := make([]int, len(empty))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for k, i := range empty {
		g.Go(func() error {
			sr := newSearch(gctx, board, ai, maxDepth)
			scores[k] = sr.child(0, i, ai, -scoreInf, scoreInf)
			nodes.Add(sr.nodes)
			return sr.err
		})
	}
	if err := g.Wait(); err != nil {
		return -1, err
	}

	best := 0
	for k := range scores {
		if scores[k] > scores[best] {
			best = k
		}
	}
	return empty[best], nil
}

package nativetest

import (
	"sync"

	"github.com/starwell/voidvault-bridge/pkg/native"
	"github.com/starwell/voidvault-bridge/pkg/policy"
)

// outputAlphabet is what the simulated generator draws characters from. It
// mixes classes so normalization has something to do.
const outputAlphabet = "aZ3$kQ9{mW1!xB7~"

// Generator simulates the generator process: a counter and rules table that
// outlives channels, plus one session per channel. Use Responder to attach it
// to a Channel.
type Generator struct {
	mu       sync.Mutex
	counters map[string]uint16
	rules    map[string]storedRules
}

type storedRules struct {
	maxLength uint16
	charTypes uint8
}

func NewGenerator() *Generator {
	return &Generator{
		counters: make(map[string]uint16),
		rules:    make(map[string]storedRules),
	}
}

// SetStoredCounter seeds the counter table.
func (g *Generator) SetStoredCounter(domain string, n uint16) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[domain] = n
}

// StoredCounter reads the counter table.
func (g *Generator) StoredCounter(domain string) (uint16, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.counters[domain]
	return n, ok
}

// SetStoredRules seeds the rules table.
func (g *Generator) SetStoredRules(domain string, maxLength uint16, charTypes uint8) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules[domain] = storedRules{maxLength: maxLength, charTypes: charTypes}
}

func (g *Generator) rulesFor(domain string) storedRules {
	if r, ok := g.rules[domain]; ok {
		return r
	}
	return storedRules{maxLength: 0, charTypes: policy.AllClassesMask}
}

// Output computes the simulated password for typed characters at counter.
func Output(typed []rune, counter uint16) string {
	out := make([]rune, len(typed))
	for i, r := range typed {
		out[i] = rune(outputAlphabet[(int(r)+i+int(counter))%len(outputAlphabet)])
	}
	return string(out)
}

// Responder returns a per-channel session that answers like the real
// generator does.
func (g *Generator) Responder() func(native.Request) []native.Message {
	var (
		mu          sync.Mutex
		domain      string
		initialized bool
		saved       uint16
		active      uint16
		preview     bool
		typed       []rune
	)

	return func(req native.Request) []native.Message {
		mu.Lock()
		defer mu.Unlock()
		g.mu.Lock()
		defer g.mu.Unlock()

		switch req.Type {
		case native.TypeHello:
			return []native.Message{native.Ready{CharTypes: policy.AllClassesMask}}
		case native.TypeActivate:
			if req.Domain == "" {
				return []native.Message{native.Error{Message: "Missing domain"}}
			}
			counter, ok := g.counters[req.Domain]
			if !ok {
				g.counters[req.Domain] = 0
			}
			domain, initialized = req.Domain, true
			saved, active, preview, typed = counter, counter, false, nil
			r := g.rulesFor(req.Domain)
			return []native.Message{native.Ready{SavedCounter: saved, ActiveCounter: active, MaxLength: r.maxLength, CharTypes: r.charTypes}}
		case native.TypeActivatePreview:
			if req.Domain == "" {
				return []native.Message{native.Error{Message: "Missing domain"}}
			}
			counter := g.counters[req.Domain]
			next := counter
			if next < policy.MaxCounter {
				next++
			}
			domain, initialized = req.Domain, true
			saved, active, preview, typed = counter, next, true, nil
			r := g.rulesFor(req.Domain)
			return []native.Message{native.Preview{SavedCounter: saved, ActiveCounter: active, MaxLength: r.maxLength, CharTypes: r.charTypes}}
		case native.TypeCommitIncrement:
			if !preview {
				return []native.Message{native.Error{Message: "Not in preview mode"}}
			}
			g.counters[req.Domain] = active
			saved, preview = active, false
			return []native.Message{native.Committed{Counter: active}}
		case native.TypeCancelPreview:
			if !preview {
				return []native.Message{native.Error{Message: "Not in preview mode"}}
			}
			active, preview, typed = saved, false, nil
			return []native.Message{native.Cancelled{Counter: saved}}
		case native.TypeReset:
			typed = nil
			return []native.Message{native.ResetAck{}}
		case native.TypeSetCounter:
			if req.Counter == nil || req.Domain == "" {
				return []native.Message{native.Error{Message: "Missing domain"}}
			}
			g.counters[req.Domain] = *req.Counter
			if initialized && req.Domain == domain {
				saved, active, preview, typed = *req.Counter, *req.Counter, false, nil
			}
			return []native.Message{native.Success{}}
		case native.TypeGetCounter:
			n, ok := g.counters[req.Domain]
			if !ok {
				return []native.Message{native.CounterValue{}}
			}
			return []native.Message{native.CounterValue{Counter: &n}}
		case native.TypeSetRules:
			if req.MaxLength == nil || req.CharTypes == nil {
				return []native.Message{native.Error{Message: "Missing rules"}}
			}
			g.rules[req.Domain] = storedRules{maxLength: *req.MaxLength, charTypes: *req.CharTypes}
			return []native.Message{native.Success{}}
		case native.TypeFinalize:
			initialized = false
			return nil
		case "":
			if req.CharCode <= 0 {
				return nil
			}
			typed = append(typed, req.CharCode)
			return []native.Message{native.Output{Text: Output(typed, active)}}
		default:
			return []native.Message{native.Error{Message: "Unknown request"}}
		}
	}
}

// Dialer returns a Dialer whose channels are all answered by g.
func (g *Generator) Dialer() *Dialer {
	return &Dialer{Setup: func(ch *Channel) {
		ch.Responder = g.Responder()
	}}
}

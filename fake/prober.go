// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/momentics/coreparker/affinity"
)

// Prober accepts masks whose width is in Accept. It records every probe.
type Prober struct {
	mu     sync.Mutex
	Accept map[int]bool
	Probed []uint64
}

// NewProber returns a prober accepting the given core counts.
func NewProber(accept ...int) *Prober {
	p := &Prober{Accept: make(map[int]bool)}
	for _, n := range accept {
		p.Accept[n] = true
	}
	return p
}

// Probe implements api.MaskProber.
func (p *Prober) Probe(mask uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Probed = append(p.Probed, mask)
	if p.Accept[bits.OnesCount64(mask)] {
		return nil
	}
	return fmt.Errorf("%w: fake prober refused %#x", affinity.ErrMaskRejected, mask)
}

// Package handler implements consumers of classified frames.
package handler

import (
	"firestige.xyz/fabrictap/internal/core"
)

// Handler consumes classified frames. Handle runs on the dispatch worker
// goroutine; a slow handler only costs queue drops, never capture stalls.
type Handler interface {
	Handle(f core.ClassifiedFrame)
}

// Func adapts a function to Handler.
type Func func(f core.ClassifiedFrame)

func (fn Func) Handle(f core.ClassifiedFrame) { fn(f) }

// Multi fans one frame out to every handler in order.
func Multi(hs ...Handler) Handler {
	list := make([]Handler, 0, len(hs))
	for _, h := range hs {
		if h != nil {
			list = append(list, h)
		}
	}
	if len(list) == 1 {
		return list[0]
	}
	return multi(list)
}

type multi []Handler

func (m multi) Handle(f core.ClassifiedFrame) {
	for _, h := range m {
		h.Handle(f)
	}
}

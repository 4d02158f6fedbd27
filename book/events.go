package book

// Listener receives an Engine's fill, cancel, and reject notifications
// as they happen, independent of verbose logging. A single Listener is
// wired in with SetListener; notify/notifyReject call it inline, on
// whatever goroutine drove the mutation.
type Listener interface {
	OnFill(id OrderID, price, qty float64)
	OnCancel(id OrderID)
	OnReject(id OrderID, reason error)
}

// SetListener wires l in to receive this Engine's lifecycle
// notifications. A nil Listener disables dispatch.
func (e *Engine) SetListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = l
}

// notify emits one structured lifecycle line when the engine is
// verbose, carrying ticker, state, type, id, side, qty, price, and time
// as structured key-values instead of a hand-built string, then fans
// FILLED/PARTIALLY FILLED/CANCELED states out to the listener.
func (e *Engine) notify(state string, o *Order, qty float64) {
	if e.verbose && e.logger != nil {
		e.logger.Info(state,
			"ticker", e.ticker,
			"type", o.Type.String(),
			"id", o.ID,
			"side", o.Side.String(),
			"qty", qty,
			"price", o.Price,
			"time", o.Timestamp,
		)
	}
	if e.listener == nil {
		return
	}
	switch state {
	case "CANCELED":
		e.listener.OnCancel(o.ID)
	case "FILLED", "PARTIALLY FILLED":
		e.listener.OnFill(o.ID, o.Price, qty)
	}
}

func (e *Engine) notifyReject(o *Order, reason error) {
	if e.verbose && e.logger != nil {
		e.logger.Info("REJECTED",
			"ticker", e.ticker,
			"type", o.Type.String(),
			"id", o.ID,
			"side", o.Side.String(),
			"qty", o.Qty,
			"price", o.Price,
			"time", o.Timestamp,
			"reason", reason.Error(),
		)
	}
	if e.listener != nil {
		e.listener.OnReject(o.ID, reason)
	}
}

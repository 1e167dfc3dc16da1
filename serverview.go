package liveboard

import (
	"context"
	"errors"
	"time"

	"github.com/jpalmerr/liveboard/internal/hub"
	"github.com/jpalmerr/liveboard/internal/server"
)

// boardView adapts a Board to what the HTTP server reads.
type boardView struct {
	b *Board
}

func (v boardView) Panels() []server.PanelInfo {
	panels := v.b.Panels()
	out := make([]server.PanelInfo, len(panels))
	for i, p := range panels {
		info := server.PanelInfo{
			Name:     p.name,
			Interval: p.interval.String(),
			TTL:      p.ttl.String(),
			Persist:  p.persist,
		}
		if at, ok := v.b.cache.UpdatedAt(p.name); ok {
			info.UpdatedAt = &at
		}
		out[i] = info
	}
	return out
}

func (v boardView) Panel(ctx context.Context, name string) (server.PanelView, error) {
	snap, err := v.b.GetPanel(ctx, name)
	if err != nil {
		if errors.Is(err, ErrUnknownPanel) {
			return server.PanelView{}, server.ErrNotFound
		}
		return server.PanelView{}, err
	}
	return server.PanelView{
		Name:      snap.Name,
		Outcome:   string(snap.Outcome),
		Payload:   snap.Payload,
		UpdatedAt: snap.UpdatedAt,
	}, nil
}

func (v boardView) History(ctx context.Context, name string, window time.Duration, limit int) ([]server.HistoryEntry, error) {
	records, err := v.b.History(ctx, name, window, limit)
	switch {
	case errors.Is(err, ErrUnknownPanel):
		return nil, server.ErrNotFound
	case errors.Is(err, ErrHistoryDisabled):
		return nil, server.ErrUnavailable
	case err != nil:
		return nil, err
	}

	out := make([]server.HistoryEntry, len(records))
	for i, r := range records {
		out[i] = server.HistoryEntry{
			ID:        r.ID,
			FetchedAt: r.FetchedAt,
			Payload:   r.Payload,
		}
	}
	return out, nil
}

func (v boardView) Subscribe() (<-chan hub.Event, func()) {
	sub := v.b.Subscribe()
	return sub.C(), func() { v.b.Unsubscribe(sub) }
}

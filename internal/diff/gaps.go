package diff

import (
	"time"

	appLog "bookwatch/internal/log"
	"bookwatch/internal/model"
)

// resolveGap decides what a too-short run belongs to:
//
//	preceding  succeeding  result
//	yes        yes         isolated blocked-off period
//	yes        no          preceding booking extended forward
//	no         yes         succeeding booking extended backward
//	no         no          standalone guest booking
//
// Only guest bookings that end (or start) exactly next to the gap count as
// neighbors.
func (p *pass) resolveGap(g span) {
	before := model.AddDays(g.first, -1)
	after := model.AddDays(g.last, 1)

	prev := p.neighbor(before, func(b *model.Booking) bool { return b.LastNight.Equal(before) })
	next := p.neighbor(after, func(b *model.Booking) bool { return b.FirstNight.Equal(after) })

	switch {
	case prev != nil && next != nil:
		appLog.Debug("diff: gap between two bookings, blocked-off",
			"first", model.DateKey(g.first), "last", model.DateKey(g.last))
		p.add(g, true)

	case prev != nil:
		old := prev.LastNight
		prev.LastNight = g.last
		p.claim(prev)
		p.emit(model.ChangeExtended, prev, &model.FieldChange{OldLastNight: &old})

	case next != nil:
		old := next.FirstNight
		next.FirstNight = g.first
		p.claim(next)
		p.emit(model.ChangeExtended, next, &model.FieldChange{OldFirstNight: &old})

	default:
		appLog.Debug("diff: orphaned short run, standalone booking",
			"first", model.DateKey(g.first), "last", model.DateKey(g.last), "min_nights", g.minNights)
		p.add(g, false)
	}
}

func (p *pass) neighbor(d time.Time, adjacent func(*model.Booking) bool) *model.Booking {
	b := p.claimedBy(d)
	if b == nil || b.IsBlockedOff || !adjacent(b) {
		return nil
	}
	return b
}

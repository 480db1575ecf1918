package core

import (
	"strconv"

	"nftmarket/core/types"
)

var eventCountKey = []byte("core/events/count")

func eventKey(seq uint64) []byte {
	return []byte("core/events/" + strconv.FormatUint(seq, 10))
}

// storedEvent is the RLP form of a committed event. Attributes are flattened
// into sorted key/value lists so the encoding is deterministic.
type storedEvent struct {
	Sequence uint64
	Type     string
	Keys     []string
	Values   []string
}

// LoggedEvent is a committed event with its position in the log.
type LoggedEvent struct {
	Sequence uint64
	Event    *types.Event
}

func encodeEvent(seq uint64, evt *types.Event) storedEvent {
	keys := evt.SortedKeys()
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = evt.Attr(k)
	}
	return storedEvent{Sequence: seq, Type: evt.Type, Keys: keys, Values: values}
}

func (s storedEvent) decode() LoggedEvent {
	attrs := make(map[string]string, len(s.Keys))
	for i, k := range s.Keys {
		if i < len(s.Values) {
			attrs[k] = s.Values[i]
		}
	}
	return LoggedEvent{Sequence: s.Sequence, Event: &types.Event{Type: s.Type, Attributes: attrs}}
}

func (p *Processor) eventCount() (uint64, error) {
	var count uint64
	if _, err := p.state.KVGet(eventCountKey, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// appendEvents writes the buffered events to the log. Sequence numbers start
// at 1 and are never reused.
func (p *Processor) appendEvents(evts []*types.Event) error {
	if len(evts) == 0 {
		return nil
	}
	count, err := p.eventCount()
	if err != nil {
		return err
	}
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		count++
		record := encodeEvent(count, evt)
		if err := p.state.KVPut(eventKey(count), &record); err != nil {
			return err
		}
	}
	return p.state.KVPut(eventCountKey, count)
}

// Events returns up to limit committed events starting at sequence from.
// A zero limit returns every remaining event.
func (p *Processor) Events(from, limit uint64) ([]LoggedEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	count, err := p.eventCount()
	if err != nil {
		return nil, err
	}
	if from == 0 {
		from = 1
	}
	out := make([]LoggedEvent, 0)
	for seq := from; seq <= count; seq++ {
		if limit > 0 && uint64(len(out)) >= limit {
			break
		}
		var record storedEvent
		ok, err := p.state.KVGet(eventKey(seq), &record)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, record.decode())
	}
	return out, nil
}

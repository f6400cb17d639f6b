package engine

import (
	"strconv"
	"strings"
)

// EventKind identifies a parsed UCI protocol event.
type EventKind int

const (
	EventDepth    EventKind = iota // search reached a new depth
	EventScore                     // centipawn or mate score update
	EventPV                        // principal variation update
	EventStats                     // node count / nps / elapsed time counters
	EventBestMove                  // bestmove terminator
)

// Event is a single protocol event to be folded into an in-progress
// analysis. Only the fields for its Kind are meaningful; Depth is set on
// score and pv events too, carrying the depth the info line reported.
type Event struct {
	Kind  EventKind
	Depth int

	// EventScore
	CP     int
	MateIn int
	Mate   bool

	// EventPV
	PV []string

	// EventStats
	Nodes  int64
	NPS    int64
	TimeMs int64

	// EventBestMove
	BestMove string
	Ponder   string
}

// ParseLine tokenizes one line of engine output into protocol events.
// Lines other than info/bestmove produce no events. Malformed fields
// within an info line are dropped individually so the fields that did
// parse still apply.
func ParseLine(line string) []Event {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "bestmove":
		if len(fields) < 2 {
			return nil
		}
		ev := Event{Kind: EventBestMove, BestMove: fields[1]}
		for i := 2; i+1 < len(fields); i++ {
			if fields[i] == "ponder" {
				ev.Ponder = fields[i+1]
			}
		}
		return []Event{ev}
	case "info":
		return parseInfo(fields[1:])
	}
	return nil
}

// parseInfo walks the tokens of an info line and emits depth, score,
// stats, and pv events in that order.
func parseInfo(fields []string) []Event {
	depth := -1
	var cp, mateIn int
	var hasCP, hasMate bool
	var nodes, nps, timeMs int64
	var hasStats bool
	var pv []string

	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if v, ok := intField(fields, i+1); ok {
				depth = v
			}
			i++
		case "seldepth", "multipv", "hashfull", "tbhits", "currmovenumber":
			i++ // single-value fields we don't track
		case "currmove":
			i++
		case "nodes":
			if v, ok := int64Field(fields, i+1); ok {
				nodes = v
				hasStats = true
			}
			i++
		case "nps":
			if v, ok := int64Field(fields, i+1); ok {
				nps = v
				hasStats = true
			}
			i++
		case "time":
			if v, ok := int64Field(fields, i+1); ok {
				timeMs = v
				hasStats = true
			}
			i++
		case "score":
			if i+2 < len(fields) {
				switch fields[i+1] {
				case "cp":
					if v, ok := intField(fields, i+2); ok {
						cp = v
						hasCP = true
						hasMate = false
					}
				case "mate":
					if v, ok := intField(fields, i+2); ok {
						mateIn = v
						hasMate = true
						hasCP = false
					}
				}
				i += 2
			}
		case "pv":
			// pv consumes the rest of the line
			if i+1 < len(fields) {
				pv = append([]string(nil), fields[i+1:]...)
			}
			i = len(fields)
		}
	}

	var events []Event
	if depth >= 0 {
		events = append(events, Event{Kind: EventDepth, Depth: depth})
	}
	if hasCP || hasMate {
		events = append(events, Event{
			Kind:   EventScore,
			Depth:  depth,
			CP:     cp,
			MateIn: mateIn,
			Mate:   hasMate,
		})
	}
	if hasStats {
		events = append(events, Event{
			Kind:   EventStats,
			Depth:  depth,
			Nodes:  nodes,
			NPS:    nps,
			TimeMs: timeMs,
		})
	}
	if len(pv) > 0 {
		events = append(events, Event{Kind: EventPV, Depth: depth, PV: pv})
	}
	return events
}

func intField(fields []string, i int) (int, bool) {
	if i >= len(fields) {
		return 0, false
	}
	v, err := strconv.Atoi(fields[i])
	if err != nil {
		return 0, false
	}
	return v, true
}

func int64Field(fields []string, i int) (int64, bool) {
	if i >= len(fields) {
		return 0, false
	}
	v, err := strconv.ParseInt(fields[i], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

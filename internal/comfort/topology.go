package comfort

import "sort"

// Topology maps a room id to its neighbours in declaration order
type Topology map[string][]string

// Symmetric returns a copy where every edge exists in both directions.
// Declared neighbours keep their order; mirrored ones are appended after them.
func (t Topology) Symmetric() Topology {
	out := make(Topology, len(t))
	add := func(from, to string) {
		for _, existing := range out[from] {
			if existing == to {
				return
			}
		}
		out[from] = append(out[from], to)
	}

	rooms := make([]string, 0, len(t))
	for from := range t {
		rooms = append(rooms, from)
	}
	sort.Strings(rooms)

	for _, from := range rooms {
		for _, to := range t[from] {
			add(from, to)
		}
	}
	for _, from := range rooms {
		for _, to := range t[from] {
			add(to, from)
		}
	}
	return out
}

// Airflow describes how a room's neighbours can help ventilate it
type Airflow struct {
	// CrossVentilating is true when this window and at least one neighbour window are open
	CrossVentilating bool

	// OpenNeighbor is the first neighbour with an open window
	OpenNeighbor *RoomReading

	// WindowNeighbor is the first neighbour with a closed window that could be opened
	WindowNeighbor *RoomReading

	// AssistNeighbor is the first neighbour with ventilation assist and a closed window
	AssistNeighbor *RoomReading
}

// DetectAirflow inspects the neighbours of roomID. The first match in declaration order wins.
func DetectAirflow(roomID string, rooms []RoomReading, topology Topology) Airflow {
	byID := make(map[string]*RoomReading, len(rooms))
	for i := range rooms {
		byID[rooms[i].ID] = &rooms[i]
	}

	var flow Airflow
	self, ok := byID[roomID]
	if !ok {
		return flow
	}

	for _, neighbourID := range topology[roomID] {
		n, ok := byID[neighbourID]
		if !ok {
			continue
		}
		if n.HasWindow && n.WindowOpen {
			if flow.OpenNeighbor == nil {
				flow.OpenNeighbor = n
			}
			continue
		}
		if n.HasWindow && flow.WindowNeighbor == nil {
			flow.WindowNeighbor = n
		}
		if n.HasVentilationAssist && flow.AssistNeighbor == nil {
			flow.AssistNeighbor = n
		}
	}

	flow.CrossVentilating = self.WindowOpen && flow.OpenNeighbor != nil
	return flow
}

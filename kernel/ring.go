package kernel

// insert appends t at the ring tail, or makes it root and running when the
// ring is empty.
func (s *Scheduler) insert(t *Task) {
	s.taskCount++
	if s.root == nil {
		s.root = t
		s.running = t
		return
	}
	tail := s.root
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = t
	t.prev = tail
}

// remove unlinks t and releases its stack.
//
// Removing root empties the scheduler. Removing the running task moves
// running to its successor, or to its predecessor when t was the tail.
func (s *Scheduler) remove(t *Task) {
	if t == s.root {
		s.root = nil
		s.running = nil
		s.taskCount = 0
	} else {
		prev := t.prev
		prev.next = t.next
		if t.next != nil {
			t.next.prev = prev
		}
		if t == s.running {
			if t.next != nil {
				s.running = t.next
			} else {
				s.running = prev
			}
		}
		s.taskCount--
	}
	t.next = nil
	t.prev = nil
	s.pool.free(t.stack)
	t.stack = nil
	s.deleted++

	s.log.Debug("task removed", "task", t.id, "live", s.taskCount)
}

// successor returns the task after t, wrapping to root at the tail.
func (s *Scheduler) successor(t *Task) *Task {
	if t.next != nil {
		return t.next
	}
	return s.root
}

// lookup finds a live task by ID.
func (s *Scheduler) lookup(id TaskID) *Task {
	for t := s.root; t != nil; t = t.next {
		if t.id == id {
			return t
		}
	}
	return nil
}

// Snapshot is a quiescent view of the ring.
type Snapshot struct {
	Root     TaskID
	Running  TaskID
	Count    int
	Forward  []TaskID
	Backward []TaskID
	Status   map[TaskID]Status
}

// Snapshot walks the ring from root via next and back from the tail via prev.
func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{Count: s.taskCount, Status: make(map[TaskID]Status)}
	if s.root == nil {
		return snap
	}
	snap.Root = s.root.id
	if s.running != nil {
		snap.Running = s.running.id
	}
	var tail *Task
	for t := s.root; t != nil; t = t.next {
		snap.Forward = append(snap.Forward, t.id)
		snap.Status[t.id] = t.status
		tail = t
		if len(snap.Forward) > s.taskCount {
			// A cycle; stop so callers can detect it by length.
			break
		}
	}
	for t := tail; t != nil; t = t.prev {
		snap.Backward = append(snap.Backward, t.id)
		if len(snap.Backward) > s.taskCount {
			break
		}
	}
	return snap
}

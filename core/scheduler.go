package core

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// TimerQueue is a list of timers sorted by WakeTime. It is owned by the
// foreground loop; handlers run from Dispatch, never from interrupt context.
type TimerQueue struct {
	head *Timer
}

// timerBefore compares tick values across 32-bit wraparound
func timerBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// Schedule adds a timer to the queue
func (q *TimerQueue) Schedule(t *Timer) {
	q.Cancel(t)
	q.insert(t)
}

// insert inserts a timer in sorted order by WakeTime
func (q *TimerQueue) insert(t *Timer) {
	if q.head == nil || timerBefore(t.WakeTime, q.head.WakeTime) {
		t.Next = q.head
		q.head = t
		return
	}

	current := q.head
	for current.Next != nil && !timerBefore(t.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// Cancel removes a timer if it is scheduled
func (q *TimerQueue) Cancel(t *Timer) {
	if q.head == t {
		q.head = t.Next
		t.Next = nil
		return
	}
	for current := q.head; current != nil; current = current.Next {
		if current.Next == t {
			current.Next = t.Next
			t.Next = nil
			return
		}
	}
}

// Dispatch runs every timer whose WakeTime is not after now
func (q *TimerQueue) Dispatch(now uint32) {
	for q.head != nil && !timerBefore(now, q.head.WakeTime) {
		timer := q.head
		q.head = timer.Next
		timer.Next = nil // Clear Next pointer to avoid circular references

		if timer.Handler(timer) == SF_RESCHEDULE {
			q.insert(timer)
		}
	}
}

// NextWake returns the WakeTime of the earliest timer
func (q *TimerQueue) NextWake() (uint32, bool) {
	if q.head == nil {
		return 0, false
	}
	return q.head.WakeTime, true
}

// Len returns the number of scheduled timers
func (q *TimerQueue) Len() int {
	n := 0
	for t := q.head; t != nil; t = t.Next {
		n++
	}
	return n
}

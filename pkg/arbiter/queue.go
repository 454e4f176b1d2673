package arbiter

// fifo is an unbounded FIFO of requests with at most one parked consumer.
// It is not safe for concurrent use; the Arbiter's mutex guards it.
type fifo struct {
	items  []*Request
	waiter chan delivery
}

type delivery struct {
	req *Request
	err error
}

// push hands req to the parked consumer if any, and reports whether it did.
func (q *fifo) push(req *Request) bool {
	if q.waiter != nil && len(q.items) == 0 {
		q.waiter <- delivery{req: req}
		q.waiter = nil
		return true
	}
	q.items = append(q.items, req)
	return false
}

func (q *fifo) pop() *Request {
	if len(q.items) == 0 {
		return nil
	}
	req := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return req
}

// park registers a consumer; the returned channel receives exactly one delivery.
func (q *fifo) park() chan delivery {
	q.waiter = make(chan delivery, 1)
	return q.waiter
}

// abort fails the parked consumer, if any, and reports whether there was one.
func (q *fifo) abort(err error) bool {
	if q.waiter == nil {
		return false
	}
	q.waiter <- delivery{err: err}
	q.waiter = nil
	return true
}

func (q *fifo) drain() []*Request {
	items := q.items
	q.items = nil
	return items
}

func (q *fifo) len() int {
	return len(q.items)
}

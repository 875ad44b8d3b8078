package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	nodeBits        = 10
	stepBits        = 12
	nodeMax         = -1 ^ (-1 << nodeBits)
	stepMask        = -1 ^ (-1 << stepBits)
	timeShift       = nodeBits + stepBits
	nodeShift       = stepBits
	Epoch     int64 = 1704067200000 // 2024-01-01 00:00:00 UTC
)

// Node generates message ids that sort by creation time.
type Node struct {
	mu    sync.Mutex
	last  int64
	node  int64
	step  int64
	clock func() int64
}

func NewNode(node int64) (*Node, error) {
	return newNode(node, func() int64 { return time.Now().UnixMilli() })
}

func newNode(node int64, clock func() int64) (*Node, error) {
	if node < 0 || node > nodeMax {
		return nil, errors.New("node number must be between 0 and 1023")
	}
	return &Node{node: node, clock: clock}, nil
}

func (n *Node) Generate() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock()
	if now < n.last {
		// clock moved backwards: keep issuing from the last seen millisecond
		now = n.last
	}

	if now == n.last {
		n.step = (n.step + 1) & stepMask
		if n.step == 0 {
			for now <= n.last {
				now = n.clock()
			}
		}
	} else {
		n.step = 0
	}

	n.last = now
	return ((now - Epoch) << timeShift) | (n.node << nodeShift) | n.step
}

// Time returns the creation time embedded in id.
func Time(id int64) time.Time {
	return time.UnixMilli((id >> timeShift) + Epoch).UTC()
}

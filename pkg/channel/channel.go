// Package channel implements the bounded IPC message channels.
//
// A channel is a circular buffer of at most MaxMessages messages, each at
// most MaxMessageSize bytes. Channels never block: sending to a full
// channel and receiving from an empty one both return immediately, and
// retry responsibility stays with the caller.
package channel

import "vkern/pkg/kerr"

// Channel capacity bounds.
const (
	// MaxMessages is the number of messages one channel can queue.
	MaxMessages = 32
	// MaxMessageSize is the largest message payload in bytes.
	MaxMessageSize = 4096
	// MaxChannels is the capacity of the channel table.
	MaxChannels = 64
)

// message is one queued payload. The backing array is fixed so queue
// slots are reused in place.
type message struct {
	data [MaxMessageSize]byte
	size uint64
}

// Channel is a bounded circular message queue.
type Channel struct {
	// ID is the channel's non-zero handle.
	ID uint64
	// Owner is the id of the creating process.
	Owner uint64

	messages [MaxMessages]message
	readPos  int
	writePos int
	count    int

	allocated bool
}

// Send enqueues data. A full channel returns WouldBlock and leaves the
// queue untouched; an oversized payload is rejected outright.
func (c *Channel) Send(data []byte) error {
	if uint64(len(data)) > MaxMessageSize {
		return kerr.InvalidArgument
	}
	if c.count == MaxMessages {
		return kerr.WouldBlock
	}
	m := &c.messages[c.writePos]
	m.size = uint64(copy(m.data[:], data))
	c.writePos = (c.writePos + 1) % MaxMessages
	c.count++
	return nil
}

// Recv dequeues the oldest message into buf, truncating to len(buf), and
// returns the number of bytes written. An empty channel returns zero
// bytes and no error.
func (c *Channel) Recv(buf []byte) (uint64, error) {
	if c.count == 0 {
		return 0, nil
	}
	m := &c.messages[c.readPos]
	n := copy(buf, m.data[:m.size])
	c.readPos = (c.readPos + 1) % MaxMessages
	c.count--
	return uint64(n), nil
}

// Len returns the number of queued messages.
func (c *Channel) Len() int {
	return c.count
}

// Table holds the fixed set of channel slots. Handles are allocated
// monotonically and never reused while the referent is live.
type Table struct {
	slots  [MaxChannels]Channel
	nextID uint64
}

// NewTable creates an empty channel table.
func NewTable() *Table {
	return &Table{nextID: 1}
}

// Create allocates a channel owned by the given process and returns its
// handle.
func (t *Table) Create(owner uint64) (uint64, error) {
	for i := range t.slots {
		if !t.slots[i].allocated {
			id := t.nextID
			t.nextID++
			t.slots[i] = Channel{ID: id, Owner: owner, allocated: true}
			return id, nil
		}
	}
	return 0, kerr.OutOfMemory
}

// Get returns the channel with the given handle.
func (t *Table) Get(id uint64) (*Channel, error) {
	if id == 0 {
		return nil, kerr.InvalidHandle
	}
	for i := range t.slots {
		if t.slots[i].allocated && t.slots[i].ID == id {
			return &t.slots[i], nil
		}
	}
	return nil, kerr.InvalidHandle
}

// Close frees the channel with the given handle, dropping any queued
// messages.
func (t *Table) Close(id uint64) error {
	ch, err := t.Get(id)
	if err != nil {
		return err
	}
	*ch = Channel{}
	return nil
}

// ReleaseOwned frees every channel owned by the given process and
// returns the number reclaimed.
func (t *Table) ReleaseOwned(pid uint64) int {
	released := 0
	for i := range t.slots {
		if t.slots[i].allocated && t.slots[i].Owner == pid {
			t.slots[i] = Channel{}
			released++
		}
	}
	return released
}

// Count returns the number of live channels.
func (t *Table) Count() int {
	n := 0
	for i := range t.slots {
		if t.slots[i].allocated {
			n++
		}
	}
	return n
}

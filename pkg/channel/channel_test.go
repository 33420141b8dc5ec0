package channel

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"vkern/pkg/kerr"
)

// TestChannelFIFO tests first-in first-out delivery.
func TestChannelFIFO(t *testing.T) {
	tbl := NewTable()
	id, err := tbl.Create(1)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	ch, _ := tbl.Get(id)

	if err := ch.Send([]byte("A")); err != nil {
		t.Fatalf("Send(A) error = %v", err)
	}
	if err := ch.Send([]byte("B")); err != nil {
		t.Fatalf("Send(B) error = %v", err)
	}

	buf := make([]byte, 16)
	n, err := ch.Recv(buf)
	if err != nil || string(buf[:n]) != "A" {
		t.Errorf("Recv() = %q, %v, want \"A\"", buf[:n], err)
	}
	n, err = ch.Recv(buf)
	if err != nil || string(buf[:n]) != "B" {
		t.Errorf("Recv() = %q, %v, want \"B\"", buf[:n], err)
	}
}

// TestChannelFullLeavesQueueUnchanged tests that a rejected send leaves
// the queue untouched.
func TestChannelFullLeavesQueueUnchanged(t *testing.T) {
	tbl := NewTable()
	id, _ := tbl.Create(1)
	ch, _ := tbl.Get(id)

	for i := 0; i < MaxMessages; i++ {
		if err := ch.Send([]byte(fmt.Sprintf("msg-%d", i))); err != nil {
			t.Fatalf("Send(%d) error = %v", i, err)
		}
	}

	if err := ch.Send([]byte("overflow")); !errors.Is(err, kerr.WouldBlock) {
		t.Fatalf("Send(full) error = %v, want %v", err, kerr.WouldBlock)
	}
	if ch.Len() != MaxMessages {
		t.Errorf("Len() = %d, want %d after rejected send", ch.Len(), MaxMessages)
	}

	// Contents are intact and still in order.
	buf := make([]byte, 64)
	for i := 0; i < MaxMessages; i++ {
		n, _ := ch.Recv(buf)
		want := fmt.Sprintf("msg-%d", i)
		if string(buf[:n]) != want {
			t.Fatalf("Recv() = %q, want %q", buf[:n], want)
		}
	}
}

// TestChannelEmptyRecv tests the non-blocking empty receive.
func TestChannelEmptyRecv(t *testing.T) {
	tbl := NewTable()
	id, _ := tbl.Create(1)
	ch, _ := tbl.Get(id)

	buf := make([]byte, 8)
	n, err := ch.Recv(buf)
	if err != nil {
		t.Fatalf("Recv(empty) error = %v", err)
	}
	if n != 0 {
		t.Errorf("Recv(empty) = %d bytes, want 0", n)
	}
}

// TestChannelTruncation tests receive into a short buffer.
func TestChannelTruncation(t *testing.T) {
	tbl := NewTable()
	id, _ := tbl.Create(1)
	ch, _ := tbl.Get(id)

	ch.Send([]byte("hello world"))

	buf := make([]byte, 5)
	n, err := ch.Recv(buf)
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if n != 5 || !bytes.Equal(buf, []byte("hello")) {
		t.Errorf("Recv() = %q (%d bytes), want %q", buf[:n], n, "hello")
	}
}

// TestChannelOversizedSend tests payload size validation.
func TestChannelOversizedSend(t *testing.T) {
	tbl := NewTable()
	id, _ := tbl.Create(1)
	ch, _ := tbl.Get(id)

	err := ch.Send(make([]byte, MaxMessageSize+1))
	if !errors.Is(err, kerr.InvalidArgument) {
		t.Errorf("Send(oversized) error = %v, want %v", err, kerr.InvalidArgument)
	}
}

// TestChannelWrapAround tests the circular buffer across many cycles.
func TestChannelWrapAround(t *testing.T) {
	tbl := NewTable()
	id, _ := tbl.Create(1)
	ch, _ := tbl.Get(id)

	buf := make([]byte, 16)
	for round := 0; round < 3*MaxMessages; round++ {
		msg := fmt.Sprintf("r%d", round)
		if err := ch.Send([]byte(msg)); err != nil {
			t.Fatalf("Send(%d) error = %v", round, err)
		}
		n, _ := ch.Recv(buf)
		if string(buf[:n]) != msg {
			t.Fatalf("round %d: Recv() = %q, want %q", round, buf[:n], msg)
		}
	}
}

// TestTableHandles tests handle allocation and lookup.
func TestTableHandles(t *testing.T) {
	tbl := NewTable()

	id1, err := tbl.Create(1)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	id2, _ := tbl.Create(2)

	if id1 == 0 || id2 == 0 {
		t.Error("Create() returned a zero handle")
	}
	if id1 == id2 {
		t.Errorf("Create() reused handle %d", id1)
	}

	if _, err := tbl.Get(0); !errors.Is(err, kerr.InvalidHandle) {
		t.Errorf("Get(0) error = %v, want %v", err, kerr.InvalidHandle)
	}
	if _, err := tbl.Get(9999); !errors.Is(err, kerr.InvalidHandle) {
		t.Errorf("Get(9999) error = %v, want %v", err, kerr.InvalidHandle)
	}
}

// TestTableHandleNotReused tests that closed handles are never reissued.
func TestTableHandleNotReused(t *testing.T) {
	tbl := NewTable()

	id1, _ := tbl.Create(1)
	tbl.Close(id1)

	id2, _ := tbl.Create(1)
	if id2 == id1 {
		t.Errorf("Create() reissued closed handle %d", id1)
	}
	if _, err := tbl.Get(id1); !errors.Is(err, kerr.InvalidHandle) {
		t.Errorf("Get(closed) error = %v, want %v", err, kerr.InvalidHandle)
	}
}

// TestTableCapacity tests slot exhaustion.
func TestTableCapacity(t *testing.T) {
	tbl := NewTable()

	for i := 0; i < MaxChannels; i++ {
		if _, err := tbl.Create(1); err != nil {
			t.Fatalf("Create(%d) error = %v", i, err)
		}
	}
	if _, err := tbl.Create(1); !errors.Is(err, kerr.OutOfMemory) {
		t.Errorf("Create(full table) error = %v, want %v", err, kerr.OutOfMemory)
	}
}

// TestTableReleaseOwned tests the exit-time ownership sweep.
func TestTableReleaseOwned(t *testing.T) {
	tbl := NewTable()

	tbl.Create(3)
	tbl.Create(3)
	keep, _ := tbl.Create(4)

	if released := tbl.ReleaseOwned(3); released != 2 {
		t.Errorf("ReleaseOwned(3) = %d, want 2", released)
	}
	if tbl.Count() != 1 {
		t.Errorf("Count() = %d, want 1", tbl.Count())
	}
	if _, err := tbl.Get(keep); err != nil {
		t.Errorf("Get(survivor) error = %v", err)
	}
}

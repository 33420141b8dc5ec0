package kernel

import (
	"vkern/pkg/channel"
	"vkern/pkg/kerr"
)

// sysChannelCreate allocates a channel owned by the calling process.
func (k *Kernel) sysChannelCreate() (uint64, error) {
	return k.channels.Create(k.sched.Current)
}

// sysChannelSend reads length bytes from guest memory and enqueues them.
// A full channel returns WouldBlock with nothing consumed.
func (k *Kernel) sysChannelSend(id, ptr, length uint64) (uint64, error) {
	if length > channel.MaxMessageSize {
		return 0, kerr.InvalidArgument
	}
	data, err := k.readUser(ptr, length)
	if err != nil {
		return 0, err
	}
	ch, err := k.channels.Get(id)
	if err != nil {
		return 0, err
	}
	if err := ch.Send(data); err != nil {
		return 0, err
	}
	return length, nil
}

// sysChannelRecv dequeues the oldest message into guest memory,
// truncating to length, and returns the bytes written. An empty channel
// returns zero.
func (k *Kernel) sysChannelRecv(id, ptr, length uint64) (uint64, error) {
	if err := checkUserRange(ptr, length); err != nil {
		return 0, err
	}
	ch, err := k.channels.Get(id)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, length)
	n, err := ch.Recv(buf)
	if err != nil || n == 0 {
		return 0, err
	}
	return k.writeUser(ptr, buf[:n])
}

// Package user holds the static user roster and its capability bitmap.
//
// The roster is seeded once at boot and never grows: root plus one
// default non-root user. Capabilities gate what a process acting for a
// user may ask the kernel to do.
package user

import "vkern/pkg/kerr"

// Capability is a bitmap of operations a user may perform.
type Capability uint64

// Capability bits.
const (
	// CapSpawn allows creating processes.
	CapSpawn Capability = 1 << 0
	// CapKill allows signalling arbitrary processes.
	CapKill Capability = 1 << 1
	// CapMapFixed allows mappings at caller-chosen addresses.
	CapMapFixed Capability = 1 << 2
	// CapStorageWrite allows mutating the file store.
	CapStorageWrite Capability = 1 << 3
	// CapChannels allows creating IPC channels.
	CapChannels Capability = 1 << 4

	// CapAll grants every capability.
	CapAll = CapSpawn | CapKill | CapMapFixed | CapStorageWrite | CapChannels
)

// Has reports whether every bit of want is granted.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// User is one roster entry.
type User struct {
	// UID is the user id.
	UID uint64
	// GID is the primary group id.
	GID uint64
	// Name is the login name.
	Name string
	// Home is the home directory name in the file store.
	Home string
	// Caps is the granted capability bitmap.
	Caps Capability
}

// Roster is the fixed set of users known to the kernel.
type Roster struct {
	users []User
}

// DefaultUID is the uid of the default non-root user.
const DefaultUID uint64 = 1000

// NewRoster seeds the boot-time roster: root with every capability and
// one default user without kill or fixed-address mappings.
func NewRoster() *Roster {
	return &Roster{
		users: []User{
			{UID: 0, GID: 0, Name: "root", Home: "root", Caps: CapAll},
			{
				UID:  DefaultUID,
				GID:  DefaultUID,
				Name: "user",
				Home: "home/user",
				Caps: CapSpawn | CapStorageWrite | CapChannels,
			},
		},
	}
}

// ByUID returns the user with the given uid.
func (r *Roster) ByUID(uid uint64) (User, error) {
	for _, u := range r.users {
		if u.UID == uid {
			return u, nil
		}
	}
	return User{}, kerr.UserNotFound
}

// ByName returns the user with the given login name.
func (r *Roster) ByName(name string) (User, error) {
	if name == "" {
		return User{}, kerr.InvalidUser
	}
	for _, u := range r.users {
		if u.Name == name {
			return u, nil
		}
	}
	return User{}, kerr.UserNotFound
}

// Count returns the roster size.
func (r *Roster) Count() int {
	return len(r.users)
}

// Package auth holds the client credential surface: the credential bundle
// a connecting client presents and the client-type policy deciding whether
// a session may write, prefers replicas, or counts as an admin session.
package auth

import (
	"strings"

	"gopkg.in/src-d/go-errors.v1"
)

// Permission holds permissions required by a query or granted to a client.
type Permission int

const (
	// ReadPerm means that it reads.
	ReadPerm Permission = 1 << iota
	// WritePerm means that it writes.
	WritePerm
)

var (
	// AllPermissions hold all defined permissions.
	AllPermissions = ReadPerm | WritePerm
	// DefaultPermissions are the permissions granted when not defined.
	DefaultPermissions = ReadPerm

	// PermissionNames is used to translate from human to machine
	// representations.
	PermissionNames = map[string]Permission{
		"read":  ReadPerm,
		"write": WritePerm,
	}

	// ErrNotAuthorized is returned when the client is not allowed to use
	// a permission.
	ErrNotAuthorized = errors.NewKind("not authorized")
	// ErrNoPermission is returned when the client lacks needed
	// permissions.
	ErrNoPermission = errors.NewKind("client does not have permission: %s")
)

// String returns all the permissions set to on.
func (p Permission) String() string {
	var str []string
	for k, v := range PermissionNames {
		if p&v != 0 {
			str = append(str, k)
		}
	}
	return strings.Join(str, ", ")
}

// ClientType identifies the kind of connecting client. The type decides
// write access, replica preference and admin status.
type ClientType int

const (
	// ClientUnknown is an unidentified client.
	ClientUnknown ClientType = iota - 1
	// ClientSystemInternal is the server's own internal session.
	ClientSystemInternal
	// ClientDefault is a regular application session.
	ClientDefault
	// ClientShell is the interactive shell.
	ClientShell
	// ClientReadOnlyShell is the read-only interactive shell.
	ClientReadOnlyShell
	// ClientReadWriteBroker is a broker session with write access.
	ClientReadWriteBroker
	// ClientReadOnlyBroker is a read-only broker session.
	ClientReadOnlyBroker
	// ClientSlaveOnlyBroker is a broker pinned to slave nodes.
	ClientSlaveOnlyBroker
	// ClientReadWriteAdmin is an admin utility with write access.
	ClientReadWriteAdmin
	// ClientReadOnlyAdmin is a read-only admin utility.
	ClientReadOnlyAdmin
	// ClientAdminShell is the admin shell.
	ClientAdminShell
	// ClientLogCopier ships replication logs.
	ClientLogCopier
	// ClientRWBrokerReplicaOnly is a writing broker pinned to replicas.
	ClientRWBrokerReplicaOnly
	// ClientROBrokerReplicaOnly is a reading broker pinned to replicas.
	ClientROBrokerReplicaOnly
	// ClientSOBrokerReplicaOnly is a slave-only broker pinned to
	// replicas.
	ClientSOBrokerReplicaOnly
	// ClientAdminShellWriteOnSlave is an admin shell that may write on a
	// slave.
	ClientAdminShellWriteOnSlave
	// ClientMigrator is the rebalance migrator.
	ClientMigrator
	// ClientReplBroker is the replication broker.
	ClientReplBroker
)

var clientTypeNames = map[ClientType]string{
	ClientSystemInternal:         "system",
	ClientDefault:                "default",
	ClientShell:                  "shell",
	ClientReadOnlyShell:          "read_only_shell",
	ClientReadWriteBroker:        "read_write_broker",
	ClientReadOnlyBroker:         "read_only_broker",
	ClientSlaveOnlyBroker:        "slave_only_broker",
	ClientReadWriteAdmin:         "read_write_admin",
	ClientReadOnlyAdmin:          "read_only_admin",
	ClientAdminShell:             "admin_shell",
	ClientLogCopier:              "log_copier",
	ClientRWBrokerReplicaOnly:    "read_write_replica_only_broker",
	ClientROBrokerReplicaOnly:    "read_replica_only_broker",
	ClientSOBrokerReplicaOnly:    "slave_replica_only_broker",
	ClientAdminShellWriteOnSlave: "admin_shell_write_on_slave",
	ClientMigrator:               "migrator",
	ClientReplBroker:             "replication_broker",
}

func (t ClientType) String() string {
	if name, ok := clientTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// CanWrite reports whether sessions of this type may run modification
// queries.
func (t ClientType) CanWrite() bool {
	switch t {
	case ClientSystemInternal, ClientDefault, ClientShell,
		ClientReadWriteBroker, ClientReadWriteAdmin, ClientAdminShell,
		ClientRWBrokerReplicaOnly, ClientAdminShellWriteOnSlave,
		ClientMigrator, ClientReplBroker:
		return true
	}
	return false
}

// PrefersReplica reports whether sessions of this type should connect to
// slave or replica nodes when available.
func (t ClientType) PrefersReplica() bool {
	switch t {
	case ClientSlaveOnlyBroker, ClientRWBrokerReplicaOnly,
		ClientROBrokerReplicaOnly, ClientSOBrokerReplicaOnly:
		return true
	}
	return false
}

// IsAdmin reports whether sessions of this type count as admin sessions.
func (t ClientType) IsAdmin() bool {
	switch t {
	case ClientReadWriteAdmin, ClientReadOnlyAdmin, ClientAdminShell,
		ClientAdminShellWriteOnSlave:
		return true
	}
	return false
}

// Permissions returns the permissions implied by the client type.
func (t ClientType) Permissions() Permission {
	if t.CanWrite() {
		return AllPermissions
	}
	return DefaultPermissions
}

// Credentials is the bundle a connecting client presents.
type Credentials struct {
	ClientType         ClientType
	ClientInfo         string
	DBName             string
	DBUser             string
	DBPassword         string
	ProgramName        string
	LoginName          string
	HostName           string
	PreferredHosts     []string
	ConnectOrderRandom bool
	ProcessID          int
}

// Allowed checks the credentials against a needed permission. It returns
// ErrNotAuthorized wrapping the missing permissions when the client type
// does not grant them.
func (c Credentials) Allowed(p Permission) error {
	granted := c.ClientType.Permissions()
	if granted&p == p {
		return nil
	}

	// permissions needed but not granted to the client
	p2 := (^granted) & p
	return ErrNotAuthorized.Wrap(ErrNoPermission.New(p2))
}

package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientTypePolicy(t *testing.T) {
	testCases := []struct {
		typ      ClientType
		canWrite bool
		replica  bool
		admin    bool
	}{
		{ClientDefault, true, false, false},
		{ClientReadOnlyShell, false, false, false},
		{ClientReadWriteBroker, true, false, false},
		{ClientSlaveOnlyBroker, false, true, false},
		{ClientReadWriteAdmin, true, false, true},
		{ClientReadOnlyAdmin, false, false, true},
		{ClientRWBrokerReplicaOnly, true, true, false},
		{ClientMigrator, true, false, false},
		{ClientLogCopier, false, false, false},
	}

	for _, tt := range testCases {
		t.Run(tt.typ.String(), func(t *testing.T) {
			require := require.New(t)
			require.Equal(tt.canWrite, tt.typ.CanWrite())
			require.Equal(tt.replica, tt.typ.PrefersReplica())
			require.Equal(tt.admin, tt.typ.IsAdmin())
		})
	}
}

func TestCredentials_Allowed(t *testing.T) {
	assert := require.New(t)

	rw := Credentials{ClientType: ClientReadWriteBroker, DBUser: "app"}
	assert.NoError(rw.Allowed(ReadPerm))
	assert.NoError(rw.Allowed(WritePerm))
	assert.NoError(rw.Allowed(AllPermissions))

	ro := Credentials{ClientType: ClientReadOnlyBroker, DBUser: "report"}
	assert.NoError(ro.Allowed(ReadPerm))

	err := ro.Allowed(WritePerm)
	assert.Error(err)
	assert.True(ErrNotAuthorized.Is(err))
}

func TestClientType_UnknownString(t *testing.T) {
	assert := require.New(t)
	assert.Equal("unknown", ClientUnknown.String())
	assert.False(ClientUnknown.CanWrite())
}

package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "Admin", want: RoleAdmin},
		{in: "teacher", want: RoleTeacher},
		{in: " STUDENT ", want: RoleStudent},
		{in: "Registrar", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRole_JSON(t *testing.T) {
	var id Identity
	require.NoError(t, json.Unmarshal([]byte(`{"id":"u1","email":"a@b.c","role":"Teacher"}`), &id))
	assert.Equal(t, RoleTeacher, id.Role)

	err := json.Unmarshal([]byte(`{"id":"u1","role":"HR"}`), &id)
	require.Error(t, err)

	out, err := json.Marshal(Identity{ID: "u2", Role: RoleStudent})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"role":"Student"`)

	_, err = json.Marshal(Identity{ID: "u3"})
	require.Error(t, err, "zero role must not serialize")
}

func TestRoleSet(t *testing.T) {
	s := NewRoleSet(RoleAdmin, RoleStudent, Role(0), Role(42))
	assert.True(t, s.Contains(RoleAdmin))
	assert.True(t, s.Contains(RoleStudent))
	assert.False(t, s.Contains(RoleTeacher))
	assert.False(t, s.Contains(Role(0)))
	assert.Equal(t, []Role{RoleAdmin, RoleStudent}, s.Slice())
	assert.True(t, NewRoleSet().Empty())
	assert.False(t, s.Empty())
}

func TestState_Variants(t *testing.T) {
	var zero State
	assert.True(t, zero.IsUnresolved())
	assert.Equal(t, PhaseUnresolved, Unresolved().Phase())

	anon := Anonymous()
	assert.True(t, anon.IsAnonymous())
	_, ok := anon.Identity()
	assert.False(t, ok)
	_, ok = anon.Credential()
	assert.False(t, ok)

	id := Identity{ID: "u1", Role: RoleAdmin}
	st := Authenticated(id, "t1")
	assert.True(t, st.IsAuthenticated())
	gotID, ok := st.Identity()
	require.True(t, ok)
	assert.Equal(t, id.ID, gotID.ID)
	cred, ok := st.Credential()
	require.True(t, ok)
	assert.Equal(t, "t1", cred.Token())
	assert.Equal(t, "authenticated(Admin:u1)", st.String())
}

func TestCredential_RedactsInFormatting(t *testing.T) {
	c := Credential("secret-token")
	assert.Equal(t, "[redacted]", fmt.Sprint(c))
	assert.Equal(t, "secret-token", c.Token())
	assert.True(t, Credential("  ").IsZero())
}

func TestAuthError(t *testing.T) {
	base := errors.New("dial tcp: refused")
	err := fmt.Errorf("login: %w", &AuthError{Kind: KindNetworkFailure, Err: base})

	assert.True(t, IsKind(err, KindNetworkFailure))
	assert.False(t, IsKind(err, KindInvalidCredential))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, GenericFailureMessage, UserMessage(err))

	detailed := &AuthError{Kind: KindInvalidCredential, Status: 401, Detail: "Invalid credentials"}
	assert.Equal(t, "Invalid credentials", UserMessage(detailed))
	assert.Equal(t, "invalid_credential (status 401): Invalid credentials", detailed.Error())
	assert.Equal(t, GenericFailureMessage, UserMessage(errors.New("other")))
}

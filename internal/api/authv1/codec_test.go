package authv1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestCodecIsRegistered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)
	assert.Equal(t, CodecName, c.Name())
}

func TestCodec_WireNames(t *testing.T) {
	b, err := Codec{}.Marshal(&ChangePasswordRequest{CurrentPassword: "a", NewPassword: "b"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"current_password":"a","new_password":"b"}`, string(b))

	var out LoginResponse
	require.NoError(t, Codec{}.Unmarshal([]byte(`{"message":"ok","access_token":"t"}`), &out))
	assert.Equal(t, LoginResponse{Message: "ok", AccessToken: "t"}, out)
}

func TestCodec_EmptyPayload(t *testing.T) {
	var out PingRequest
	assert.NoError(t, Codec{}.Unmarshal(nil, &out))
}

func TestCodec_BadPayload(t *testing.T) {
	var out LoginRequest
	assert.Error(t, Codec{}.Unmarshal([]byte("{"), &out))
}

func TestServiceDesc(t *testing.T) {
	assert.Equal(t, "/gophauth.v1.AuthService/Login", FullMethod(MethodLogin))

	names := make([]string, 0, len(ServiceDesc.Methods))
	for _, m := range ServiceDesc.Methods {
		names = append(names, m.MethodName)
	}
	assert.ElementsMatch(t, []string{
		MethodPing, MethodRegister, MethodLogin, MethodChangePassword, MethodWhoAmI, MethodStrength,
	}, names)
}

package user

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetTokens(t *testing.T) {
	timeout := 3 * 24 * time.Hour
	tokens := newResetTokens("secret", timeout)
	now := time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)
	tokens.now = func() time.Time { return now }

	usr := User{
		ID:        "4b6bc3b1-5d39-4a54-b2cc-9d1b1f1f2d01",
		Name:      "Aarav Sharma",
		Username:  "202301000001",
		LastLogin: now.Add(-time.Hour),
	}
	require.NoError(t, usr.SetPassword("pwd"))

	valid := tokens.make(usr)
	hour := now.Unix() / 3600
	stale := tokens.makeAt(usr, hour-int64(timeout/time.Hour)-1)
	edge := tokens.makeAt(usr, hour-int64(timeout/time.Hour))

	changedPwd := usr
	require.NoError(t, changedPwd.SetPassword("new-pwd"))
	loggedIn := usr
	loggedIn.LastLogin = now

	tests := []struct {
		name    string
		tokens  *resetTokens
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "no separator", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "no signature", usr: usr, token: strconv.FormatInt(hour, 36) + ".", wantErr: errInvalidToken},
		{name: "bad hour", usr: usr, token: "!!.sig", wantErr: errInvalidToken},
		{name: "forged signature", usr: usr, token: strconv.FormatInt(hour, 36) + ".sig", wantErr: errInvalidToken},
		{name: "expired", usr: usr, token: stale, wantErr: errTokenExpired},
		{name: "last valid hour", usr: usr, token: edge},
		{name: "password changed", usr: changedPwd, token: valid, wantErr: errInvalidToken},
		{name: "logged in since", usr: loggedIn, token: valid, wantErr: errInvalidToken},
		{name: "other secret key", tokens: newResetTokens("other", timeout), usr: usr, token: valid, wantErr: errInvalidToken},
		{name: "valid", usr: usr, token: valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := tokens
			if tt.tokens != nil {
				rt = tt.tokens
				rt.now = tokens.now
			}
			assert.Equal(t, tt.wantErr, rt.verify(tt.usr, tt.token))
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "4b6bc3b1-5d39-4a54-b2cc-9d1b1f1f2d01"}
	id, err := decodeUID(EncodeUID(usr))
	assert.NoError(t, err)
	assert.Equal(t, usr.ID, id)

	_, err = decodeUID("%%%")
	assert.Error(t, err)
}

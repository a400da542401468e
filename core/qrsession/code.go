package qrsession

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

const (
	payloadScheme = "classcue"
	payloadHost   = "attend"
)

var (
	salt = []byte("classcue.core.qrsession.code")

	errMalformedPayload = errors.New("malformed payload")
)

// codeToken signs the window of a session. Tokens are truncated to keep QR codes small.
func codeToken(secret, sessionID string, window int64) string {
	key := sha256.Sum256(append(salt, secret...))
	h := hmac.New(sha256.New, key[:])
	h.Write([]byte(sessionID))
	h.Write([]byte{':'})
	h.Write([]byte(strconv.FormatInt(window, 10)))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)[:16])
}

func checkToken(secret, sessionID string, window int64, token string) bool {
	if window < 0 {
		return false
	}
	want := codeToken(secret, sessionID, window)
	return subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 1
}

// encodePayload returns "classcue://attend?s=<session id>&t=<token>".
func encodePayload(sessionID, token string) string {
	u := url.URL{
		Scheme:   payloadScheme,
		Host:     payloadHost,
		RawQuery: url.Values{"s": {sessionID}, "t": {token}}.Encode(),
	}
	return u.String()
}

func decodePayload(payload string) (sessionID, token string, err error) {
	u, err := url.Parse(payload)
	if err != nil {
		return "", "", errMalformedPayload
	}
	if u.Scheme != payloadScheme || u.Host != payloadHost {
		return "", "", errMalformedPayload
	}
	q := u.Query()
	sessionID, token = q.Get("s"), q.Get("t")
	if sessionID == "" || token == "" {
		return "", "", errMalformedPayload
	}
	return sessionID, token, nil
}

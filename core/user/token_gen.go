package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	resetSalt = []byte("classcue/password-reset")

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID encodes the user ID carried by password reset links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", errors.Wrap(err, "decoding uid")
	}
	return string(id), nil
}

// resetTokens signs password reset tokens of the form "<issue hour, base36>.<signature>".
// A token is bound to the user's password hash and last login: it dies as soon as either changes.
type resetTokens struct {
	key     [sha256.Size]byte
	timeout time.Duration
	now     func() time.Time
}

func newResetTokens(secretKey string, timeout time.Duration) *resetTokens {
	return &resetTokens{
		key:     sha256.Sum256(append(append([]byte{}, resetSalt...), secretKey...)),
		timeout: timeout,
		now:     time.Now,
	}
}

func (rt *resetTokens) make(usr User) string {
	return rt.makeAt(usr, rt.now().Unix()/3600)
}

func (rt *resetTokens) makeAt(usr User, hour int64) string {
	return strconv.FormatInt(hour, 36) + "." + rt.sign(usr, hour)
}

func (rt *resetTokens) verify(usr User, token string) error {
	hourPart, sig, ok := strings.Cut(token, ".")
	if !ok || sig == "" {
		return errInvalidToken
	}
	hour, err := strconv.ParseInt(hourPart, 36, 64)
	if err != nil || hour < 0 {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(rt.sign(usr, hour))) {
		return errInvalidToken
	}
	if time.Duration(rt.now().Unix()/3600-hour)*time.Hour > rt.timeout {
		return errTokenExpired
	}
	return nil
}

func (rt *resetTokens) sign(usr User, hour int64) string {
	h := hmac.New(sha256.New, rt.key[:])
	h.Write([]byte(usr.ID))
	h.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		h.Write([]byte(usr.LastLogin.UTC().Format(time.RFC3339)))
	}
	h.Write([]byte(strconv.FormatInt(hour, 10)))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

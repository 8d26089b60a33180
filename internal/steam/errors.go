package steam

import (
	"errors"
	"fmt"
)

// Kind classifies a capability failure independently of the transport.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidPassword
	KindTwoFactorAlreadyEnabled
	KindInvalidCode
	KindAccessDenied
	KindExpired
	KindNotLoggedIn
	KindRateLimited
	KindTransport
)

var kindNames = map[Kind]string{
	KindUnknown:                 "unknown",
	KindInvalidPassword:         "invalid password",
	KindTwoFactorAlreadyEnabled: "two-factor already enabled",
	KindInvalidCode:             "invalid code",
	KindAccessDenied:            "access denied",
	KindExpired:                 "expired",
	KindNotLoggedIn:             "not logged in",
	KindRateLimited:             "rate limited",
	KindTransport:               "transport",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "steam: " + e.Kind.String()
	}
	return "steam: " + e.Kind.String() + ": " + e.Message
}

func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Package validator gates every send attempt with a syntax check followed by
// a mail-exchange lookup of the recipient's domain.
package validator

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/unclebandit/scoutier-backend/internal/model"
)

// MaxAddressLength is the longest address accepted (RFC 5321 path limit).
const MaxAddressLength = 254

var addressPattern = regexp.MustCompile(
	`^[a-zA-Z0-9!#$%&'*+/=?^_{|}~-]+(?:\.[a-zA-Z0-9!#$%&'*+/=?^_{|}~-]+)*` +
		`@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`,
)

// MXResolver is the subset of *net.Resolver the validator needs.
type MXResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// InvalidError is returned for an address that must not be sent to.
type InvalidError struct {
	Address string
	Reason  string
	Detail  string
}

func (e *InvalidError) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

type Validator struct {
	resolver MXResolver
}

// New returns a Validator using r for domain lookups. A nil r uses net.DefaultResolver.
func New(r MXResolver) *Validator {
	if r == nil {
		r = net.DefaultResolver
	}
	return &Validator{resolver: r}
}

// CheckSyntax runs only the first stage.
func CheckSyntax(address string) error {
	if len(address) > MaxAddressLength {
		return &InvalidError{Address: address, Reason: model.ReasonInvalidSyntax,
			Detail: fmt.Sprintf("address longer than %d characters", MaxAddressLength)}
	}
	if !addressPattern.MatchString(address) {
		return &InvalidError{Address: address, Reason: model.ReasonInvalidSyntax,
			Detail: "address is not a valid email"}
	}
	return nil
}

// Validate returns nil when address is well formed and its domain publishes
// at least one usable MX record. Otherwise it returns an *InvalidError.
// Resolution errors are treated as "no route", never as a crash.
func (v *Validator) Validate(ctx context.Context, address string) error {
	if err := CheckSyntax(address); err != nil {
		return err
	}

	domain := address[strings.LastIndexByte(address, '@')+1:]
	records, err := v.resolver.LookupMX(ctx, domain)
	if err != nil {
		return &InvalidError{Address: address, Reason: model.ReasonNoMXRecord,
			Detail: fmt.Sprintf("mx lookup for %s failed: %v", domain, err)}
	}
	for _, mx := range records {
		// RFC 7505 null MX: the domain explicitly accepts no mail.
		if mx != nil && mx.Host != "." && mx.Host != "" {
			return nil
		}
	}
	return &InvalidError{Address: address, Reason: model.ReasonNoMXRecord,
		Detail: fmt.Sprintf("domain %s has no mail exchanger", domain)}
}

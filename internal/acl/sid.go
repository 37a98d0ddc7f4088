package acl

import "fmt"

// Sid is a security identity: either a principal (an individual) or a granted
// authority (a group or role).
type Sid struct {
	Authority string
	Principal bool
}

// PrincipalSid returns the Sid of an individual.
func PrincipalSid(name string) Sid {
	return Sid{Authority: name, Principal: true}
}

// AuthoritySid returns the Sid of a group or role.
func AuthoritySid(name string) Sid {
	return Sid{Authority: name}
}

func (s Sid) String() string {
	if s.Principal {
		return fmt.Sprintf("principal:%s", s.Authority)
	}
	return fmt.Sprintf("authority:%s", s.Authority)
}

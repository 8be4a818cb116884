package taskstore

import "github.com/dori/weekplan/internal/model"

// StaticSession is a Session pinned to one identity (nil means signed out)
type StaticSession struct {
	Identity *model.Identity
}

// Current returns the pinned identity
func (s StaticSession) Current() *model.Identity {
	return s.Identity
}

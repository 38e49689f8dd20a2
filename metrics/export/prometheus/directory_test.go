package prometheus

import (
	"context"

	"github.com/fusione/authcore"
)

type nopDirectory struct{}

func (nopDirectory) FindByEmail(context.Context, string) (*authcore.UserRecord, error) {
	return nil, authcore.ErrUserNotFound
}

func (nopDirectory) FindByID(context.Context, string) (*authcore.UserRecord, error) {
	return nil, authcore.ErrUserNotFound
}

func (nopDirectory) Save(context.Context, authcore.UserRecord) error { return nil }

func (nopDirectory) UpdatePasswordHash(context.Context, string, string) error { return nil }

package api

import (
	"context"

	"caseflow/pkg/authtoken"
)

type ctxKey string

const ctxKeyStaff ctxKey = "staff"

func WithStaff(ctx context.Context, s *authtoken.Staff) context.Context {
	return context.WithValue(ctx, ctxKeyStaff, s)
}

func StaffFromContext(ctx context.Context) *authtoken.Staff {
	v := ctx.Value(ctxKeyStaff)
	if v == nil {
		return nil
	}
	s, _ := v.(*authtoken.Staff)
	return s
}

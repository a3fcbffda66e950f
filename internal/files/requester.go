package files

import (
	"context"

	"github.com/code19m/errx"
	"github.com/spf13/cast"

	"github.com/rise-and-shine/filesmanager/meta"
)

// requesterID returns the authenticated user id, 0 for anonymous requests.
func requesterID(ctx context.Context) int64 {
	return cast.ToInt64(meta.Find(ctx, meta.RequestUserID))
}

func mustRequesterID(ctx context.Context) (int64, error) {
	id := requesterID(ctx)
	if id == 0 {
		return 0, errx.New("authentication required",
			errx.WithCode(CodeUnauthorized),
			errx.WithType(errx.T_Authentication),
		)
	}
	return id, nil
}

package ports

import (
	"context"

	"epistat/domain/core"
)

// SessionRepository binds a browser session to the dataset it uploaded
type SessionRepository interface {
	Bind(ctx context.Context, sessionID core.SessionID, datasetID core.DatasetID) error
	DatasetFor(ctx context.Context, sessionID core.SessionID) (core.DatasetID, error)
	Clear(ctx context.Context, sessionID core.SessionID) error
}

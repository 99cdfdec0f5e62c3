package domain

import "time"

// RefreshSession is the persisted record backing a refresh token. A row
// exists exactly as long as its token has not been revoked or rotated
// away; the session id travels inside the refresh token's "id" claim and
// is the handle used for rotation and logout.
type RefreshSession struct {
	ID        int64
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

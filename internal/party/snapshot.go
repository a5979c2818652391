package party

import "context"

// Snapshotter is the registry's persistence hook. Implementations store a
// full copy of the party set after every committed mutation and hand it back
// at boot. The registry never reads through the snapshotter on the request
// path; it is a durability aid, not a database.
type Snapshotter interface {
	Save(ctx context.Context, parties []*RemoteParty) error
	Load(ctx context.Context) ([]*RemoteParty, error)
}

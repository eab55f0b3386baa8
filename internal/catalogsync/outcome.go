package catalogsync

import (
	"fmt"

	"github.com/talkincode/shopsync/internal/domain"
)

// Outcome is the result of one workflow run. The local and remote sides
// fail independently; the caller decides what to show.
type Outcome struct {
	Action    string
	Product   *domain.Product
	Count     int
	LocalErr  error
	RemoteErr error
}

// OK reports whether both sides succeeded
func (o Outcome) OK() bool {
	return o.LocalErr == nil && o.RemoteErr == nil
}

// Err returns the local error first, then the remote one
func (o Outcome) Err() error {
	if o.LocalErr != nil {
		return o.LocalErr
	}
	return o.RemoteErr
}

// Message renders a one-line operator message
func (o Outcome) Message() string {
	subject := o.Action
	if o.Product != nil && o.Product.Name != "" {
		subject = fmt.Sprintf("%s %q", o.Action, o.Product.Name)
	}
	switch {
	case o.LocalErr != nil:
		return fmt.Sprintf("%s failed: %v", subject, o.LocalErr)
	case o.RemoteErr != nil:
		if o.Action == domain.ActionCreate && o.Product != nil && !o.Product.Synced() {
			return fmt.Sprintf("%s: remote sync failed: %v", subject, o.RemoteErr)
		}
		return fmt.Sprintf("%s saved locally, remote sync failed: %v", subject, o.RemoteErr)
	case o.Action == domain.ActionBulkUpload || o.Action == domain.ActionWipeRemote:
		return fmt.Sprintf("%s done: %d products", o.Action, o.Count)
	default:
		return fmt.Sprintf("%s done", subject)
	}
}

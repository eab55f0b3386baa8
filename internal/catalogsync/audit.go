package catalogsync

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AuditReport lists where the local catalog and the remote mirror disagree.
// It is read-only; nothing is repaired.
type AuditReport struct {
	LocalCount    int       `json:"local_count"`
	RemoteCount   int       `json:"remote_count"`
	Unsynced      []string  `json:"unsynced"`       // local skus without a remote id
	MissingRemote []int64   `json:"missing_remote"` // local remote ids absent remotely
	UnknownRemote []int64   `json:"unknown_remote"` // remote ids no local record points at
	CheckedAt     time.Time `json:"checked_at"`
}

// InSync reports whether no divergence was found
func (r *AuditReport) InSync() bool {
	return len(r.Unsynced) == 0 && len(r.MissingRemote) == 0 && len(r.UnknownRemote) == 0
}

// Audit compares the local catalog against the remote catalog by remote id
func (s *Service) Audit(ctx context.Context) (*AuditReport, error) {
	products, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	remoteProducts, err := s.client.FetchAllProducts(ctx)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{
		LocalCount:    len(products),
		RemoteCount:   len(remoteProducts),
		Unsynced:      []string{},
		MissingRemote: []int64{},
		UnknownRemote: []int64{},
		CheckedAt:     time.Now(),
	}

	remoteIDs := make(map[int64]struct{}, len(remoteProducts))
	for _, rp := range remoteProducts {
		remoteIDs[rp.ID] = struct{}{}
	}
	localIDs := make(map[int64]struct{}, len(products))
	for _, p := range products {
		if !p.Synced() {
			report.Unsynced = append(report.Unsynced, p.SKU)
			continue
		}
		localIDs[p.RemoteID] = struct{}{}
		if _, ok := remoteIDs[p.RemoteID]; !ok {
			report.MissingRemote = append(report.MissingRemote, p.RemoteID)
		}
	}
	for _, rp := range remoteProducts {
		if _, ok := localIDs[rp.ID]; !ok {
			report.UnknownRemote = append(report.UnknownRemote, rp.ID)
		}
	}

	zap.L().Info("catalog audit",
		zap.String("namespace", "catalogsync"),
		zap.Int("local", report.LocalCount),
		zap.Int("remote", report.RemoteCount),
		zap.Int("unsynced", len(report.Unsynced)),
		zap.Int("missing_remote", len(report.MissingRemote)),
		zap.Int("unknown_remote", len(report.UnknownRemote)),
	)
	return report, nil
}

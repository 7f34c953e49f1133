// Package store persists the peer address book: which peers we know and
// where to dial them. It backs the QUIC transport's address resolution.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rudransh-shrivastava/gossip-it/internal/db"
)

var ErrPeerNotFound = errors.New("peer not found")

type PeerStore struct {
	DB *gorm.DB
}

func NewPeerStore(gdb *gorm.DB) *PeerStore {
	return &PeerStore{DB: gdb}
}

// Upsert records or refreshes the dial address for a peer.
func (ps *PeerStore) Upsert(peerID, addr string) error {
	peer := db.Peer{PeerID: peerID, Addr: addr, LastSeen: time.Now().Unix()}
	return ps.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "peer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"addr", "last_seen"}),
	}).Create(&peer).Error
}

// Resolve returns the dial address for a peer. Satisfies the QUIC
// transport's AddrResolver.
func (ps *PeerStore) Resolve(_ context.Context, peerID string) (string, error) {
	var peer db.Peer
	err := ps.DB.First(&peer, "peer_id = ?", peerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: %s", ErrPeerNotFound, peerID)
	}
	if err != nil {
		return "", err
	}
	return peer.Addr, nil
}

// Touch refreshes a peer's last-seen timestamp.
func (ps *PeerStore) Touch(peerID string) error {
	return ps.DB.Model(&db.Peer{}).
		Where("peer_id = ?", peerID).
		Update("last_seen", time.Now().Unix()).Error
}

func (ps *PeerStore) List() ([]db.Peer, error) {
	var peers []db.Peer
	err := ps.DB.Order("last_seen desc").Find(&peers).Error
	return peers, err
}

func (ps *PeerStore) Forget(peerID string) error {
	return ps.DB.Where("peer_id = ?", peerID).Delete(&db.Peer{}).Error
}

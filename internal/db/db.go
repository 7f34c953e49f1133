// Package db owns the sqlite schema for the peer address book.
package db

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type Peer struct {
	ID       uint   `gorm:"primaryKey"`
	PeerID   string `gorm:"uniqueIndex"`
	Addr     string
	LastSeen int64
}

func New(path string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt: true,
	})
	if err != nil {
		return nil, err
	}

	if err := gdb.AutoMigrate(&Peer{}); err != nil {
		return nil, err
	}
	return gdb, nil
}
